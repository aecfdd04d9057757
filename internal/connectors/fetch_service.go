package connectors

import (
	"context"
	"log/slog"

	"finreports/internal"
	"finreports/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	logger    *slog.Logger
}

// FetchResult counts one fetch run. Queued mails wait for report mining;
// Skipped mails carried nothing loadable.
type FetchResult struct {
	Fetched int
	Stored  int
	Queued  int
	Skipped int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, logger *slog.Logger) *FetchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		logger:    logger,
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		row, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		res.Stored++
		switch row.Status {
		case internal.MailStatusFetched:
			res.Queued++
		case internal.MailStatusSkipped:
			res.Skipped++
		}
		s.logger.Debug("mail stored", "provider", row.Provider, "id", row.ID, "subject", row.Subject, "status", row.Status)
	}

	return res, nil
}
