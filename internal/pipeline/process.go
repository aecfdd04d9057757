package pipeline

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/jhillyerd/enmime"
	"golang.org/x/sync/errgroup"

	"finreports/internal"
	"finreports/internal/loader"
	"finreports/internal/quality"
)

// Repository is the session store the pipeline writes to.
type Repository interface {
	CreateSession(title, description string) (internal.Session, error)
	GetSession(id string) (internal.Session, error)
	AppendResult(sessionID string, r internal.ExtractionResult) (int64, error)
	ListResults(sessionID string) ([]internal.ExtractionResult, error)
	UpdateResultQuality(id int64, warnings []string, tier internal.QualityTier) error
}

// MailRepository adds the fetched-mail queue to Repository.
type MailRepository interface {
	Repository
	ListMailsByStatus(status, provider string, limit int) ([]internal.MailRow, error)
	UpdateMailStatus(mailID int, status string) error
	ClearMailResults(mailID int) error
	AppendMailResult(sessionID string, mailID int, r internal.ExtractionResult) (int64, error)
}

type runRecorder interface {
	InsertRun(traceID, sessionID string, timings map[string]float64, counts map[string]int) error
}

// Document is one input file of a batch.
type Document struct {
	Path       string
	SourceName string
	Sheet      string
}

type ProcessingService struct {
	repo    Repository
	workers int
	logger  *slog.Logger
	now     func() time.Time
}

func NewProcessingService(repo Repository, workers int, logger *slog.Logger) *ProcessingService {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &ProcessingService{repo: repo, workers: workers, logger: logger, now: time.Now}
}

// ProcessFiles mines every document concurrently and appends the results to
// the session in input order. With allSheets each sheet of a document yields
// its own result. Failed documents are recorded, not returned as errors.
func (s *ProcessingService) ProcessFiles(sessionID string, docs []Document, allSheets bool) ([]internal.ExtractionResult, error) {
	if _, err := s.repo.GetSession(sessionID); err != nil {
		return nil, err
	}

	start := s.now()
	perDoc := make([][]internal.ExtractionResult, len(docs))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, doc := range docs {
		g.Go(func() error {
			perDoc[i] = s.processOne(doc, allSheets)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]internal.ExtractionResult, 0, len(docs))
	counts := map[string]int{}
	for _, results := range perDoc {
		for _, r := range results {
			id, err := s.repo.AppendResult(sessionID, r)
			if err != nil {
				return out, fmt.Errorf("store result for %s: %w", r.SourceName, err)
			}
			r.ID = id
			s.logResult(r)
			counts[string(r.QualityTier)]++
			out = append(out, r)
		}
	}

	s.recordRun(sessionID, start, counts)
	return out, nil
}

func (s *ProcessingService) processOne(doc Document, allSheets bool) []internal.ExtractionResult {
	sourceName := doc.SourceName
	if sourceName == "" {
		sourceName = doc.Path
	}
	now := s.now()

	if !allSheets {
		return []internal.ExtractionResult{ProcessDocument(doc.Path, sourceName, doc.Sheet, now)}
	}

	sheets, err := loader.ListSheets(doc.Path)
	if err != nil {
		return []internal.ExtractionResult{failedResult(sourceName, "", err, now)}
	}
	if len(sheets) == 0 {
		return []internal.ExtractionResult{failedResult(sourceName, "", loader.ErrEmptyTable, now)}
	}
	out := make([]internal.ExtractionResult, 0, len(sheets))
	for _, sheet := range sheets {
		out = append(out, ProcessDocument(doc.Path, sourceName, sheet, now))
	}
	return out
}

func (s *ProcessingService) logResult(r internal.ExtractionResult) {
	if !r.Succeeded {
		s.logger.Warn("document failed", "source", r.SourceName, "sheet", r.SheetIdentifier, "error", derefString(r.ErrorMessage))
		return
	}
	s.logger.Info("document processed",
		"source", r.SourceName,
		"sheet", r.SheetIdentifier,
		"total", r.TotalValue,
		"tier", r.QualityTier,
		"warnings", len(r.Warnings),
	)
}

// Revalidate re-scores the stored results of a session and reports how many
// changed tier or warnings.
func (s *ProcessingService) Revalidate(sessionID string) (int, error) {
	results, err := s.repo.ListResults(sessionID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	changed := 0
	for _, r := range results {
		v := quality.Validate(r, now)
		if v.QualityTier == r.QualityTier && slices.Equal(v.Warnings, r.Warnings) {
			continue
		}
		if err := s.repo.UpdateResultQuality(r.ID, v.Warnings, v.QualityTier); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

type MailProcessResult struct {
	Processed int
	Skipped   int
	Failed    int
	Results   int
}

// ProcessPendingMail mines the attachments of fetched mails into a session.
// Mails that do not look like financial reports, or carry nothing loadable,
// are marked skipped. A mail that cannot be read is stored as a failed result
// and marked skipped so it does not block later mails; only repository errors
// are returned.
func (s *ProcessingService) ProcessPendingMail(sessionID, provider string, limit int) (MailProcessResult, error) {
	repo, ok := s.repo.(MailRepository)
	if !ok {
		return MailProcessResult{}, errors.New("repository does not store mails")
	}
	if _, err := repo.GetSession(sessionID); err != nil {
		return MailProcessResult{}, err
	}

	pending, err := repo.ListMailsByStatus(internal.MailStatusFetched, provider, limit)
	if err != nil {
		return MailProcessResult{}, err
	}

	start := s.now()
	var res MailProcessResult
	counts := map[string]int{}
	for _, mail := range pending {
		results, err := s.processMail(mail)
		status := internal.MailStatusProcessed
		switch {
		case err != nil:
			s.logger.Warn("mail unreadable", "id", mail.ID, "raw", mail.RawRef, "error", err)
			results = []internal.ExtractionResult{failedResult(mailSourceName(mail), "", err, s.now())}
			status = internal.MailStatusSkipped
			res.Failed++
		case len(results) == 0:
			status = internal.MailStatusSkipped
			res.Skipped++
		default:
			res.Processed++
		}

		if err := repo.ClearMailResults(mail.ID); err != nil {
			return res, err
		}
		for _, r := range results {
			if _, err := repo.AppendMailResult(sessionID, mail.ID, r); err != nil {
				return res, err
			}
			s.logResult(r)
			counts[string(r.QualityTier)]++
			res.Results++
		}
		if err := repo.UpdateMailStatus(mail.ID, status); err != nil {
			return res, err
		}
	}

	counts["mails"] = res.Processed
	counts["skipped"] = res.Skipped
	counts["failed"] = res.Failed
	s.recordRun(sessionID, start, counts)
	return res, nil
}

func mailSourceName(mail internal.MailRow) string {
	if mail.Subject != "" {
		return mail.Subject + ".eml"
	}
	return fmt.Sprintf("mail-%d.eml", mail.ID)
}

func (s *ProcessingService) processMail(mail internal.MailRow) ([]internal.ExtractionResult, error) {
	raw, err := os.ReadFile(mail.RawRef)
	if err != nil {
		return nil, err
	}
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	attachments, err := loader.MailAttachments(raw)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, a.FileName)
	}
	subject := firstNonEmpty(env.GetHeader("Subject"), mail.Subject)
	detect := DetectReportMail(subject, env.Text, names)
	if !detect.IsReport {
		s.logger.Info("mail skipped", "id", mail.ID, "subject", subject, "score", detect.Score)
		return nil, nil
	}

	now := s.now()
	if len(attachments) == 0 {
		// Report sent as an HTML table in the body.
		t, _, err := loader.LoadBytes("mail.eml", raw, "")
		if err != nil {
			return nil, nil
		}
		return []internal.ExtractionResult{ProcessTable(t, firstNonEmpty(subject, fmt.Sprintf("mail-%d", mail.ID))+".eml", "", now)}, nil
	}

	out := make([]internal.ExtractionResult, 0, len(attachments))
	for _, a := range attachments {
		t, sheets, err := loader.LoadBytes(a.FileName, a.Content, "")
		if err != nil {
			out = append(out, failedResult(a.FileName, "", err, now))
			continue
		}
		out = append(out, ProcessTable(t, a.FileName, resolvedSheet("", sheets), now))
	}
	return out, nil
}

func (s *ProcessingService) recordRun(sessionID string, start time.Time, counts map[string]int) {
	rec, ok := s.repo.(runRecorder)
	if !ok {
		return
	}
	timings := map[string]float64{"totalMs": float64(s.now().Sub(start).Milliseconds())}
	if err := rec.InsertRun(traceID(), sessionID, timings, counts); err != nil {
		s.logger.Warn("record run failed", "error", err)
	}
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
