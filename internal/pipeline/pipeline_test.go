package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"finreports/internal"
	"finreports/internal/storage"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func mkXLSX(t *testing.T, path string, sheets map[string][][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	first := true
	for name, rows := range sheets {
		if first {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				t.Fatal(err)
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatal(err)
		}
		for r, row := range rows {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				if err := f.SetCellValue(name, cell, v); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newService(t *testing.T) (*ProcessingService, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	svc := NewProcessingService(db, 2, nil)
	svc.now = func() time.Time { return testNow }
	return svc, db
}

func TestProcessDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.xlsx")
	mkXLSX(t, path, map[string][][]any{"Resumo": {
		{"Item", "Valor", "Vencimento"},
		{"Serviço A", 1500, "20/03/2024"},
		{"Serviço B", 1500},
		{"Total", 3000},
	}})

	r := ProcessDocument(path, "Relatorio Marco 2024.xlsx", "", testNow)
	if !r.Succeeded {
		t.Fatalf("failed: %v", derefString(r.ErrorMessage))
	}
	if r.SheetIdentifier != "Resumo" {
		t.Fatalf("sheet=%q", r.SheetIdentifier)
	}
	if r.TotalValue != 3000 {
		t.Fatalf("total=%v", r.TotalValue)
	}
	if r.DueDate == nil || *r.DueDate != "2024-03-20" {
		t.Fatalf("due=%v", r.DueDate)
	}
	if r.EmissionDate != nil {
		t.Fatalf("emission=%v", *r.EmissionDate)
	}
	if r.PeriodMonth == nil || *r.PeriodMonth != 3 || r.PeriodYear == nil || *r.PeriodYear != 2024 {
		t.Fatalf("period=%v/%v", r.PeriodMonth, r.PeriodYear)
	}
	if r.QualityTier != internal.QualityGood {
		t.Fatalf("tier=%s warnings=%v", r.QualityTier, r.Warnings)
	}
}

func TestProcessDocumentUnreadable(t *testing.T) {
	path := writeFile(t, t.TempDir(), "legacy.xls", "\xd0\xcf\x11\xe0")

	r := ProcessDocument(path, "legacy.xls", "", testNow)
	if r.Succeeded {
		t.Fatal("expected failure")
	}
	if r.QualityTier != internal.QualityError {
		t.Fatalf("tier=%s", r.QualityTier)
	}
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "unsupported file format") {
		t.Fatalf("warnings=%v", r.Warnings)
	}
}

func TestProcessFilesKeepsInputOrder(t *testing.T) {
	svc, db := newService(t)
	session, err := db.CreateSession("batch", "")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	docs := []Document{
		{Path: writeFile(t, dir, "a.csv", "Item;Valor\nServiço;1.500,00\nTotal;1.500,00\n"), SourceName: "fatura-01-2024.csv"},
		{Path: filepath.Join(dir, "missing.csv"), SourceName: "missing.csv"},
		{Path: writeFile(t, dir, "c.csv", "Item,Valor\nTotal,250\n"), SourceName: "fatura-02-2024.csv"},
	}

	results, err := svc.ProcessFiles(session.ID, docs, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("len=%d", len(results))
	}

	stored, err := db.ListResults(session.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"fatura-01-2024.csv", "missing.csv", "fatura-02-2024.csv"}
	for i, r := range stored {
		if r.SourceName != want[i] {
			t.Fatalf("stored[%d]=%s want %s", i, r.SourceName, want[i])
		}
	}
	if stored[0].TotalValue != 1500 || stored[0].QualityTier != internal.QualityGood {
		t.Fatalf("first=%+v", stored[0])
	}
	if stored[1].Succeeded || stored[1].QualityTier != internal.QualityError {
		t.Fatalf("missing file should fail: %+v", stored[1])
	}
	if stored[2].QualityTier != internal.QualityWarning {
		t.Fatalf("low total should warn: %+v", stored[2])
	}

	if _, err := svc.ProcessFiles("nope", docs, false); err == nil {
		t.Fatal("expected unknown session error")
	}
}

func TestProcessFilesAllSheets(t *testing.T) {
	svc, db := newService(t)
	session, err := db.CreateSession("sheets", "")
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "book.xlsx")
	mkXLSX(t, path, map[string][][]any{
		"Jan": {{"Item", "Valor"}, {"Total", 2000}},
		"Fev": {{"Item", "Valor"}, {"Total", 4000}},
	})

	results, err := svc.ProcessFiles(session.ID, []Document{{Path: path, SourceName: "book 2024.xlsx"}}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("len=%d", len(results))
	}
	sum := results[0].TotalValue + results[1].TotalValue
	if sum != 6000 {
		t.Fatalf("sum=%v", sum)
	}
}

func TestRevalidate(t *testing.T) {
	svc, db := newService(t)
	session, err := db.CreateSession("s", "")
	if err != nil {
		t.Fatal(err)
	}
	stale := internal.ExtractionResult{SourceName: "a.csv", TotalValue: 0, Succeeded: true, QualityTier: internal.QualityGood}
	if _, err := db.AppendResult(session.ID, stale); err != nil {
		t.Fatal(err)
	}

	changed, err := svc.Revalidate(session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if changed != 1 {
		t.Fatalf("changed=%d", changed)
	}
	stored, _ := db.ListResults(session.ID)
	if stored[0].QualityTier != internal.QualityWarning {
		t.Fatalf("tier=%s", stored[0].QualityTier)
	}

	changed, err = svc.Revalidate(session.ID)
	if err != nil || changed != 0 {
		t.Fatalf("second pass changed=%d err=%v", changed, err)
	}
}

const reportMail = "From: financeiro@example.com\r\n" +
	"To: reports@example.com\r\n" +
	"Subject: =?utf-8?q?Relat=C3=B3rio_financeiro?=\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"XYZ\"\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Segue o fechamento.\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/csv; name=\"relatorio-janeiro-2024.csv\"\r\n" +
	"Content-Disposition: attachment; filename=\"relatorio-janeiro-2024.csv\"\r\n" +
	"\r\n" +
	"Item,Valor\r\n" +
	"Total,1500\r\n" +
	"--XYZ--\r\n"

const lunchMail = "From: colega@example.com\r\n" +
	"To: reports@example.com\r\n" +
	"Subject: Almoco sexta\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Vamos?\r\n"

func TestProcessPendingMail(t *testing.T) {
	svc, db := newService(t)
	session, err := db.CreateSession("mail", "")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	report, err := db.UpsertMail("imap", "<r@x>", "Relatório financeiro", "financeiro@example.com", "2024-01-31T10:00:00Z", "h1", writeFile(t, dir, "r.eml", reportMail), internal.MailStatusFetched)
	if err != nil {
		t.Fatal(err)
	}
	lunch, err := db.UpsertMail("imap", "<l@x>", "Almoco sexta", "colega@example.com", "2024-01-31T11:00:00Z", "h2", writeFile(t, dir, "l.eml", lunchMail), internal.MailStatusFetched)
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.ProcessPendingMail(session.ID, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if res != (MailProcessResult{Processed: 1, Skipped: 1, Results: 1}) {
		t.Fatalf("res=%+v", res)
	}

	stored, _ := db.ListResults(session.ID)
	if len(stored) != 1 || stored[0].SourceName != "relatorio-janeiro-2024.csv" || stored[0].TotalValue != 1500 {
		t.Fatalf("stored=%+v", stored)
	}
	if got, _ := db.GetMailByID(report.ID); got.Status != internal.MailStatusProcessed {
		t.Fatalf("report status=%s", got.Status)
	}
	if got, _ := db.GetMailByID(lunch.ID); got.Status != internal.MailStatusSkipped {
		t.Fatalf("lunch status=%s", got.Status)
	}
}

func TestProcessPendingMailUnreadableMailDoesNotBlockQueue(t *testing.T) {
	svc, db := newService(t)
	session, err := db.CreateSession("mail", "")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	broken, err := db.UpsertMail("imap", "<gone@x>", "Fatura antiga", "financeiro@example.com", "2024-01-01T08:00:00Z", "h0", filepath.Join(dir, "missing.eml"), internal.MailStatusFetched)
	if err != nil {
		t.Fatal(err)
	}
	report, err := db.UpsertMail("imap", "<r@x>", "Relatório financeiro", "financeiro@example.com", "2024-01-31T10:00:00Z", "h1", writeFile(t, dir, "r.eml", reportMail), internal.MailStatusFetched)
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.ProcessPendingMail(session.ID, "imap", 10)
	if err != nil {
		t.Fatal(err)
	}
	if res != (MailProcessResult{Processed: 1, Failed: 1, Results: 2}) {
		t.Fatalf("res=%+v", res)
	}

	if got, _ := db.GetMailByID(broken.ID); got.Status != internal.MailStatusSkipped {
		t.Fatalf("broken status=%s", got.Status)
	}
	if got, _ := db.GetMailByID(report.ID); got.Status != internal.MailStatusProcessed {
		t.Fatalf("report status=%s", got.Status)
	}

	stored, _ := db.ListResults(session.ID)
	if len(stored) != 2 {
		t.Fatalf("stored=%+v", stored)
	}
	if stored[0].SourceName != "Fatura antiga.eml" || stored[0].Succeeded || stored[0].QualityTier != internal.QualityError {
		t.Fatalf("failed mail result=%+v", stored[0])
	}
	if stored[1].TotalValue != 1500 {
		t.Fatalf("report result=%+v", stored[1])
	}

	again, err := svc.ProcessPendingMail(session.ID, "imap", 10)
	if err != nil {
		t.Fatal(err)
	}
	if again != (MailProcessResult{}) {
		t.Fatalf("queue should be drained: %+v", again)
	}
}

func TestProcessPendingMailProviderFilter(t *testing.T) {
	svc, db := newService(t)
	session, err := db.CreateSession("mail", "")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	if _, err := db.UpsertMail("gmail", "g1", "Almoco sexta", "colega@example.com", "2024-01-01T08:00:00Z", "g", writeFile(t, dir, "l.eml", lunchMail), internal.MailStatusFetched); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertMail("imap", "<r@x>", "Relatório financeiro", "financeiro@example.com", "2024-01-31T10:00:00Z", "h1", writeFile(t, dir, "r.eml", reportMail), internal.MailStatusFetched); err != nil {
		t.Fatal(err)
	}

	res, err := svc.ProcessPendingMail(session.ID, "imap", 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 1 || res.Skipped != 0 {
		t.Fatalf("res=%+v", res)
	}
}

func TestDetectReportMail(t *testing.T) {
	cases := []struct {
		subject, text string
		attachments   []string
		want          bool
	}{
		{"Relatório financeiro", "", []string{"jan.xlsx"}, true},
		{"Fatura e boleto de março", "Valor total R$ 1.500,00", nil, true},
		{"Almoço", "Vamos?", nil, false},
		{"Fotos", "", []string{"praia.jpg"}, false},
		{"", "segue planilha", []string{"dados.csv"}, false},
	}
	for _, tc := range cases {
		got := DetectReportMail(tc.subject, tc.text, tc.attachments)
		if got.IsReport != tc.want {
			t.Fatalf("%q: got %+v", tc.subject, got)
		}
	}
}
