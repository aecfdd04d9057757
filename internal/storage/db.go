package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"finreports/internal"
)

var ErrSessionNotFound = errors.New("session not found")

// ActiveSessionLimit caps ListActiveSessions.
const ActiveSessionLimit = 20

const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

type DB struct {
	conn *sql.DB
	now  func() time.Time
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, now: time.Now}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT,
  createdAt TEXT NOT NULL,
  updatedAt TEXT NOT NULL,
  status TEXT DEFAULT 'active'
);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status, updatedAt);

CREATE TABLE IF NOT EXISTS mails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS processed_files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  sessionId TEXT NOT NULL,
  mailId INTEGER,
  sourceName TEXT NOT NULL,
  sheet TEXT NOT NULL DEFAULT '',
  totalValue REAL NOT NULL DEFAULT 0,
  emissionDate TEXT,
  dueDate TEXT,
  periodMonth INTEGER,
  periodYear INTEGER,
  succeeded INTEGER NOT NULL,
  errorMessage TEXT,
  warningsJson TEXT NOT NULL DEFAULT '[]',
  qualityTier TEXT NOT NULL,
  processedAt TEXT NOT NULL,
  FOREIGN KEY(sessionId) REFERENCES sessions(id),
  FOREIGN KEY(mailId) REFERENCES mails(id)
);
CREATE INDEX IF NOT EXISTS idx_processed_files_session ON processed_files(sessionId);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  sessionId TEXT,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) timestamp() string {
	return d.now().UTC().Format(timestampLayout)
}

func (d *DB) CreateSession(title, description string) (internal.Session, error) {
	ts := d.timestamp()
	s := internal.Session{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		CreatedAt:   ts,
		UpdatedAt:   ts,
		Status:      internal.SessionActive,
	}
	_, err := d.conn.Exec(`
INSERT INTO sessions (id, title, description, createdAt, updatedAt, status)
VALUES (?, ?, ?, ?, ?, ?)
`, s.ID, s.Title, s.Description, s.CreatedAt, s.UpdatedAt, string(s.Status))
	if err != nil {
		return internal.Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

func (d *DB) GetSession(id string) (internal.Session, error) {
	var s internal.Session
	var description, status sql.NullString
	err := d.conn.QueryRow(`
SELECT id, title, description, createdAt, updatedAt, status
FROM sessions WHERE id = ?
`, id).Scan(&s.ID, &s.Title, &description, &s.CreatedAt, &s.UpdatedAt, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return internal.Session{}, err
	}
	s.Description = description.String
	s.Status = internal.SessionStatus(status.String)
	return s, nil
}

// ListActiveSessions returns the most recently updated active sessions with
// their file count and the sum of succeeded totals.
func (d *DB) ListActiveSessions() ([]internal.SessionSummary, error) {
	rows, err := d.conn.Query(`
SELECT
  s.id, s.title, s.description, s.createdAt, s.updatedAt, s.status,
  COUNT(f.id),
  COALESCE(SUM(CASE WHEN f.succeeded = 1 THEN f.totalValue ELSE 0 END), 0)
FROM sessions s
LEFT JOIN processed_files f ON f.sessionId = s.id
WHERE s.status = ?
GROUP BY s.id
ORDER BY s.updatedAt DESC, s.rowid DESC
LIMIT ?
`, string(internal.SessionActive), ActiveSessionLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.SessionSummary
	for rows.Next() {
		var sum internal.SessionSummary
		var description, status sql.NullString
		if err := rows.Scan(
			&sum.ID, &sum.Title, &description, &sum.CreatedAt, &sum.UpdatedAt, &status,
			&sum.FileCount, &sum.TotalSum,
		); err != nil {
			return nil, err
		}
		sum.Description = description.String
		sum.Status = internal.SessionStatus(status.String)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteSession marks the session deleted; its results are kept.
func (d *DB) DeleteSession(id string) error {
	res, err := d.conn.Exec(`UPDATE sessions SET status = ?, updatedAt = ? WHERE id = ?`,
		string(internal.SessionDeleted), d.timestamp(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// RepairSessionStatus marks sessions without a status active and reports how
// many were changed.
func (d *DB) RepairSessionStatus() (int64, error) {
	res, err := d.conn.Exec(`UPDATE sessions SET status = ? WHERE status IS NULL OR status = ''`,
		string(internal.SessionActive))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) AppendResult(sessionID string, r internal.ExtractionResult) (int64, error) {
	return d.appendResult(sessionID, nil, r)
}

// AppendMailResult records a result produced from a fetched mail, so that
// reprocessing the mail can replace it.
func (d *DB) AppendMailResult(sessionID string, mailID int, r internal.ExtractionResult) (int64, error) {
	return d.appendResult(sessionID, &mailID, r)
}

func (d *DB) appendResult(sessionID string, mailID *int, r internal.ExtractionResult) (int64, error) {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return 0, err
	}
	processedAt := r.ProcessedAt
	if processedAt.IsZero() {
		processedAt = d.now()
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`UPDATE sessions SET updatedAt = ? WHERE id = ?`, d.timestamp(), sessionID)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	res, err = tx.Exec(`
INSERT INTO processed_files (
  sessionId, mailId, sourceName, sheet, totalValue, emissionDate, dueDate,
  periodMonth, periodYear, succeeded, errorMessage, warningsJson, qualityTier, processedAt
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, sessionID, mailID, r.SourceName, r.SheetIdentifier, r.TotalValue, r.EmissionDate, r.DueDate,
		r.PeriodMonth, r.PeriodYear, boolToInt(r.Succeeded), r.ErrorMessage, string(warningsJSON), string(r.QualityTier),
		processedAt.UTC().Format(timestampLayout))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// ListResults returns a session's results in insertion order.
func (d *DB) ListResults(sessionID string) ([]internal.ExtractionResult, error) {
	rows, err := d.conn.Query(`
SELECT id, sourceName, sheet, totalValue, emissionDate, dueDate, periodMonth, periodYear,
       succeeded, errorMessage, warningsJson, qualityTier, processedAt
FROM processed_files WHERE sessionId = ? ORDER BY id ASC
`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.ExtractionResult{}
	for rows.Next() {
		var r internal.ExtractionResult
		var warningsJSON, tier, processedAt string
		if err := rows.Scan(
			&r.ID, &r.SourceName, &r.SheetIdentifier, &r.TotalValue, &r.EmissionDate, &r.DueDate,
			&r.PeriodMonth, &r.PeriodYear, &r.Succeeded, &r.ErrorMessage, &warningsJSON, &tier, &processedAt,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(warningsJSON), &r.Warnings)
		r.QualityTier = internal.QualityTier(tier)
		r.ProcessedAt, _ = time.Parse(timestampLayout, processedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) UpdateResultQuality(id int64, warnings []string, tier internal.QualityTier) error {
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`UPDATE processed_files SET warningsJson = ?, qualityTier = ? WHERE id = ?`,
		string(warningsJSON), string(tier), id)
	return err
}

// ClearMailResults drops the results previously produced from a mail.
func (d *DB) ClearMailResults(mailID int) error {
	_, err := d.conn.Exec(`DELETE FROM processed_files WHERE mailId = ?`, mailID)
	return err
}

func (d *DB) UpsertMail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.MailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO mails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.MailRow{}, err
	}

	row, err := d.GetMailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.MailRow{}, err
	}
	if row == nil {
		return internal.MailRow{}, errors.New("failed to upsert mail")
	}
	return *row, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

const mailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

func scanMail(scan func(...any) error) (internal.MailRow, error) {
	var row internal.MailRow
	var subject, sender, receivedAt sql.NullString
	err := scan(&row.ID, &row.Provider, &row.MessageID, &subject, &sender, &receivedAt, &row.Hash, &row.Status, &row.RawRef)
	row.Subject = subject.String
	row.Sender = sender.String
	row.ReceivedAt = receivedAt.String
	return row, err
}

func (d *DB) GetMailByProviderMessageID(provider, messageID string) (*internal.MailRow, error) {
	row, err := scanMail(d.conn.QueryRow(`SELECT `+mailColumns+` FROM mails WHERE provider = ? AND messageId = ?`,
		provider, messageID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetMailByID(id int) (*internal.MailRow, error) {
	row, err := scanMail(d.conn.QueryRow(`SELECT `+mailColumns+` FROM mails WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListMailsByStatus returns the oldest mails in status. An empty provider
// matches every provider; the limit applies after the provider filter.
func (d *DB) ListMailsByStatus(status, provider string, limit int) ([]internal.MailRow, error) {
	rows, err := d.conn.Query(`SELECT `+mailColumns+` FROM mails
WHERE status = ? AND (? = '' OR provider = ?)
ORDER BY receivedAt ASC, id ASC LIMIT ?`,
		status, provider, provider, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.MailRow
	for rows.Next() {
		row, err := scanMail(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateMailStatus(mailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE mails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, mailID)
	return err
}

func (d *DB) InsertRun(traceID, sessionID string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, sessionId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`,
		traceID, sessionID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
