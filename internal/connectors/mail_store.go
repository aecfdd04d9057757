package connectors

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"

	"finreports/internal"
	"finreports/internal/loader"
	"finreports/internal/storage"
)

// MailStoreService keeps each raw mail once, as <sha256>.eml, and queues it
// for report mining. Mails with neither a loadable attachment nor an HTML
// table are recorded as skipped straight away.
type MailStoreService struct {
	db         *storage.DB
	rawMailDir string
}

func NewMailStoreService(db *storage.DB, rawMailDir string) *MailStoreService {
	return &MailStoreService{db: db, rawMailDir: rawMailDir}
}

func (s *MailStoreService) Store(msg internal.FetchedMailMessage) (internal.MailRow, error) {
	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.MailRow{}, err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.MailRow{}, fmt.Errorf("write raw mail: %w", err)
		}
	}

	return s.db.UpsertMail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, queueStatus(msg.Raw))
}

// queueStatus decides whether a mail may hold a report. Unparseable mails
// stay queued so processing records the failure against them.
func queueStatus(raw []byte) string {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return internal.MailStatusFetched
	}
	attachments, err := loader.MailAttachments(raw)
	if err != nil || len(attachments) > 0 {
		return internal.MailStatusFetched
	}
	if strings.Contains(strings.ToLower(env.HTML), "<table") {
		return internal.MailStatusFetched
	}
	return internal.MailStatusSkipped
}
