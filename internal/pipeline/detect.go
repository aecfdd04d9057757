package pipeline

import (
	"path/filepath"
	"regexp"
	"strings"

	"finreports/internal/util"
)

type DetectResult struct {
	IsReport bool
	Score    float64
	Reason   string
}

// Accent-folded, lowercase.
var detectKeywords = []string{
	"relatorio", "fatura", "boleto", "extrato", "demonstrativo", "balancete",
	"fechamento", "financeiro", "cobranca", "nota fiscal", "vencimento",
	"report", "invoice", "statement", "billing",
}

var reportAttachmentExts = map[string]bool{
	".xlsx": true, ".xlsm": true, ".csv": true, ".pdf": true, ".html": true, ".htm": true,
}

var reAmount = regexp.MustCompile(`(?i)(r\$|us\$|\$|€)\s?\d`)

// Scores are kept in points out of 100 so threshold comparisons are exact.
const (
	subjectKeywordPoints = 20
	bodyKeywordPoints    = 10
	amountPoints         = 10
	attachmentPoints     = 35

	// DetectReportThreshold is the score at or above which a mail is treated
	// as a financial report.
	DetectReportThreshold = 45
)

// DetectReportMail scores a mail on report keywords, currency amounts in the
// body, and spreadsheet-like attachments.
func DetectReportMail(subject, text string, attachmentNames []string) DetectResult {
	subject = util.NormalizeLabel(subject)
	text = util.NormalizeLabel(text)

	points := 0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			points += subjectKeywordPoints
		}
		if strings.Contains(text, kw) {
			points += bodyKeywordPoints
		}
	}

	if reAmount.MatchString(text) {
		points += amountPoints
	}

	for _, name := range attachmentNames {
		if reportAttachmentExts[strings.ToLower(filepath.Ext(name))] {
			points += attachmentPoints
			break
		}
	}

	points = min(points, 100)

	isReport := points >= DetectReportThreshold
	reason := "rules_negative"
	if isReport {
		reason = "rules_positive"
	}

	return DetectResult{IsReport: isReport, Score: float64(points) / 100, Reason: reason}
}
