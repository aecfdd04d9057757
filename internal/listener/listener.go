// Package listener polls a mailbox and mines report attachments into a
// session on a fixed interval.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"finreports/internal"
	"finreports/internal/config"
	"finreports/internal/connectors"
	"finreports/internal/pipeline"
	"finreports/internal/storage"
)

// SessionMetadataKey remembers the session created for the listener when none
// is configured.
const SessionMetadataKey = "mail_listener_session"

type fetcher interface {
	FetchAndStore(ctx context.Context, label string, max int) (connectors.FetchResult, error)
}

type Service struct {
	db         *storage.DB
	cfg        config.Config
	processing *pipeline.ProcessingService
	logger     *slog.Logger

	fetcherFor func(provider string) (fetcher, error)
}

func NewService(db *storage.DB, cfg config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		db:         db,
		cfg:        cfg,
		processing: pipeline.NewProcessingService(db, cfg.ProcessWorkers, logger),
		logger:     logger,
	}
	s.fetcherFor = func(provider string) (fetcher, error) {
		conn, err := connectors.New(provider, cfg)
		if err != nil {
			return nil, err
		}
		return connectors.NewFetchService(db, cfg.RawMailDir, conn, logger), nil
	}
	return s
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(max(s.cfg.MailListenerIntervalSec, 1)) * time.Second
	for {
		if err := s.RunCycle(ctx); err != nil {
			s.logger.Error("listener cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle fetches new mail, mines pending mails into the listener session
// and, when enabled, exports the session results.
func (s *Service) RunCycle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return nil
	}
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))

	f, err := s.fetcherFor(provider)
	if err != nil {
		return err
	}
	fetched, err := f.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	session, err := ResolveSession(s.db, s.cfg.MailListenerSession)
	if err != nil {
		return err
	}

	res, err := s.processing.ProcessPendingMail(session.ID, provider, s.cfg.MailListenerProcessBatch)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}

	if s.cfg.MailListenerAutoExport && res.Results > 0 {
		if err := s.exportSession(session); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}

	s.logger.Info("listener cycle done",
		"provider", provider,
		"session", session.ID,
		"fetched", fetched.Fetched,
		"queued", fetched.Queued,
		"processed", res.Processed,
		"skipped", res.Skipped+fetched.Skipped,
		"failed", res.Failed,
		"results", res.Results,
	)
	return nil
}

// ResolveSession returns the configured session, or the one the listener
// created on an earlier run, creating it if needed.
func ResolveSession(db *storage.DB, configured string) (internal.Session, error) {
	if configured != "" {
		return db.GetSession(configured)
	}

	stored, err := db.GetMetadata(SessionMetadataKey)
	if err != nil {
		return internal.Session{}, err
	}
	if stored != nil {
		session, err := db.GetSession(*stored)
		if err == nil && session.Status == internal.SessionActive {
			return session, nil
		}
	}

	session, err := db.CreateSession("Mail reports", "Reports mined by the mail listener")
	if err != nil {
		return internal.Session{}, err
	}
	if err := db.SetMetadata(SessionMetadataKey, session.ID); err != nil {
		return internal.Session{}, err
	}
	return session, nil
}

func (s *Service) exportSession(session internal.Session) error {
	results, err := s.db.ListResults(session.ID)
	if err != nil {
		return err
	}
	outputPath := filepath.Join(s.cfg.OutputDir, "listener", sanitizeFileName(session.ID)+".xlsx")
	return pipeline.ExportResultsXLSX(results, outputPath)
}

func sanitizeFileName(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
