// Package connectors pulls report mails from a provider into the raw mail
// store.
package connectors

import (
	"context"
	"fmt"

	"finreports/internal"
	"finreports/internal/config"
	"finreports/internal/connectors/gmail"
	"finreports/internal/connectors/imap"
)

type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

// New returns the connector for provider ("imap" or "gmail").
func New(provider string, cfg config.Config) (MailConnector, error) {
	switch provider {
	case imap.Provider:
		return imap.NewConnector(cfg)
	case gmail.Provider:
		return gmail.NewConnector(cfg)
	}
	return nil, fmt.Errorf("unknown mail provider %q", provider)
}
