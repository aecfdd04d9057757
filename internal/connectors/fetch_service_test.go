package connectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finreports/internal"
	"finreports/internal/config"
	"finreports/internal/storage"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
	err      error
}

func (f fakeConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return f.messages, f.err
}

func TestFetchAndStore(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	report := []byte("Subject: Relatorio\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"B\"\r\n" +
		"\r\n" +
		"--B\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"segue\r\n" +
		"--B\r\n" +
		"Content-Type: text/csv\r\n" +
		"Content-Disposition: attachment; filename=\"jan-2024.csv\"\r\n" +
		"\r\n" +
		"Item,Valor\r\nTotal,10\r\n" +
		"--B--\r\n")
	chat := []byte("Subject: Oi\r\n\r\nbody")
	conn := fakeConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<1@x>", Subject: "Relatorio", From: "fin@x", ReceivedAt: "2024-01-01T00:00:00Z", Raw: report},
		{Provider: "imap", MessageID: "<2@x>", Subject: "Relatorio", From: "fin@x", ReceivedAt: "2024-01-02T00:00:00Z", Raw: report},
		{Provider: "imap", MessageID: "<3@x>", Subject: "Oi", From: "amigo@x", ReceivedAt: "2024-01-03T00:00:00Z", Raw: chat},
	}}

	rawDir := filepath.Join(dir, "raw")
	svc := NewFetchService(db, rawDir, conn, nil)
	res, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 3, Stored: 3, Queued: 2, Skipped: 1}, res)

	entries, err := os.ReadDir(rawDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "identical payloads share one file")

	pending, err := db.ListMailsByStatus(internal.MailStatusFetched, "", 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "<1@x>", pending[0].MessageID)
	assert.FileExists(t, pending[0].RawRef)

	skipped, err := db.ListMailsByStatus(internal.MailStatusSkipped, "", 10)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, "<3@x>", skipped[0].MessageID)

	_, err = NewFetchService(db, rawDir, fakeConnector{err: errors.New("offline")}, nil).FetchAndStore(context.Background(), "INBOX", 10)
	assert.EqualError(t, err, "offline")
}

func TestQueueStatus(t *testing.T) {
	html := []byte("Subject: Fatura\r\nMIME-Version: 1.0\r\nContent-Type: text/html\r\n\r\n<table><tr><td>Total</td><td>10</td></tr></table>")
	assert.Equal(t, internal.MailStatusFetched, queueStatus(html))
	assert.Equal(t, internal.MailStatusSkipped, queueStatus([]byte("Subject: Oi\r\n\r\ntudo bem?")))
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("pop3", config.Config{})
	assert.Error(t, err)
}
