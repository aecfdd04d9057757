package internal

import "time"

type QualityTier string

const (
	QualityGood    QualityTier = "good"
	QualityWarning QualityTier = "warning"
	QualityPoor    QualityTier = "poor"
	QualityError   QualityTier = "error"
)

// QualityTiers lists every tier in display order.
var QualityTiers = []QualityTier{QualityGood, QualityWarning, QualityPoor, QualityError}

// ExtractionResult is the outcome of mining one document (or one sheet of it).
// EmissionDate and DueDate hold canonical YYYY-MM-DD dates.
type ExtractionResult struct {
	ID              int64       `json:"id,omitempty"`
	SourceName      string      `json:"sourceName"`
	SheetIdentifier string      `json:"sheet"`
	TotalValue      float64     `json:"totalValue"`
	EmissionDate    *string     `json:"emissionDate"`
	DueDate         *string     `json:"dueDate"`
	PeriodMonth     *int        `json:"periodMonth"`
	PeriodYear      *int        `json:"periodYear"`
	Succeeded       bool        `json:"succeeded"`
	ErrorMessage    *string     `json:"errorMessage"`
	Warnings        []string    `json:"warnings"`
	QualityTier     QualityTier `json:"qualityTier"`
	ProcessedAt     time.Time   `json:"processedAt"`
}

type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionDeleted SessionStatus = "deleted"
)

type Session struct {
	ID          string
	Title       string
	Description string
	CreatedAt   string
	UpdatedAt   string
	Status      SessionStatus
}

type SessionSummary struct {
	Session
	FileCount int
	TotalSum  float64
}

// Mail queue states. A fetched mail waits for processing; processed mails
// yielded at least one result; skipped mails were not reports or could not be
// read.
const (
	MailStatusFetched   = "fetched"
	MailStatusProcessed = "processed"
	MailStatusSkipped   = "skipped"
)

type MailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
