package imap

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"

	"finreports/internal/config"
)

func TestToFetched(t *testing.T) {
	msg := &imap.Message{
		Uid:          42,
		InternalDate: time.Date(2024, 2, 1, 9, 30, 0, 0, time.FixedZone("BRT", -3*3600)),
		Envelope: &imap.Envelope{
			Subject: "Relatório fevereiro",
			From:    []*imap.Address{{PersonalName: "Financeiro", MailboxName: "fin", HostName: "example.com"}},
		},
	}

	got := toFetched(msg, []byte("raw"))
	assert.Equal(t, Provider, got.Provider)
	assert.Equal(t, "imap-42", got.MessageID)
	assert.Equal(t, "Relatório fevereiro", got.Subject)
	assert.Equal(t, "Financeiro <fin@example.com>", got.From)
	assert.Equal(t, "2024-02-01T12:30:00Z", got.ReceivedAt)
}

func TestFormatAddresses(t *testing.T) {
	addrs := []*imap.Address{
		{MailboxName: "a", HostName: "x.com"},
		nil,
		{PersonalName: "B", MailboxName: "b", HostName: "y.com"},
	}
	assert.Equal(t, "a@x.com, B <b@y.com>", formatAddresses(addrs))
	assert.Empty(t, formatAddresses(nil))
}

func TestReportCriteria(t *testing.T) {
	c := reportCriteria()
	assert.Equal(t, []string{imap.SeenFlag}, c.WithoutFlags)
	assert.Equal(t, "multipart/mixed", c.Header.Get("Content-Type"))
}

func TestNewConnectorRequiresHost(t *testing.T) {
	_, err := NewConnector(config.Config{})
	assert.EqualError(t, err, "missing required env var: IMAP_HOST")
}
