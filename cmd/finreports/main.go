package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"finreports/internal/config"
	"finreports/internal/connectors"
	"finreports/internal/filter"
	"finreports/internal/ingest"
	"finreports/internal/listener"
	"finreports/internal/loader"
	"finreports/internal/logging"
	"finreports/internal/metrics"
	"finreports/internal/pipeline"
	"finreports/internal/storage"
	"finreports/internal/table"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	// Table commands work on files only.
	switch cmd {
	case "sheets":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "input file")
		_ = fs.Parse(args)
		requireFlag("--file", *file)
		sheets, err := loader.ListSheets(*file)
		must(err)
		for _, s := range sheets {
			if s == "" {
				s = "(default)"
			}
			fmt.Println(s)
		}
		return
	case "schema":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "input file")
		sheet := fs.String("sheet", "", "sheet name")
		_ = fs.Parse(args)
		requireFlag("--file", *file)
		t := loadTable(*file, *sheet, "")
		for _, col := range table.InferSchema(t) {
			fmt.Printf("%s\t%s\n", col.Name, col.Type)
		}
		return
	case "preview":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "input file")
		sheet := fs.String("sheet", "", "sheet name")
		filters := fs.String("filters", "", `JSON filter list, e.g. [{"column":"Valor","op":"gt","value":100}]`)
		rows := fs.Int("rows", cfg.PreviewRows, "rows to show")
		_ = fs.Parse(args)
		requireFlag("--file", *file)
		t := loadTable(*file, *sheet, *filters)
		printTable(t.Head(*rows))
		fmt.Printf("%d rows\n", t.NumRows())
		return
	case "export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "input file")
		sheet := fs.String("sheet", "", "sheet name")
		filters := fs.String("filters", "", "JSON filter list")
		out := fs.String("out", "", "output .csv or .xlsx path")
		_ = fs.Parse(args)
		requireFlag("--file", *file)
		requireFlag("--out", *out)
		t := loadTable(*file, *sheet, *filters)
		switch strings.ToLower(filepath.Ext(*out)) {
		case ".csv":
			must(pipeline.ExportTableCSV(t, *out))
		case ".xlsx":
			must(pipeline.ExportTableXLSX(t, *out))
		default:
			must(fmt.Errorf("unsupported output format: %s", *out))
		}
		fmt.Printf("exported %d rows to %s\n", t.NumRows(), *out)
		return
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	processing := pipeline.NewProcessingService(db, cfg.ProcessWorkers, logger)

	switch cmd {
	case "session:create":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		title := fs.String("title", "", "session title")
		description := fs.String("description", "", "session description")
		_ = fs.Parse(args)
		if strings.TrimSpace(*title) == "" {
			*title = "Session " + time.Now().Format("2006-01-02 15:04")
		}
		s, err := db.CreateSession(*title, *description)
		must(err)
		fmt.Printf("session created id=%s title=%q\n", s.ID, s.Title)
	case "session:list":
		sessions, err := db.ListActiveSessions()
		must(err)
		p := message.NewPrinter(language.BrazilianPortuguese)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tFILES\tTOTAL\tUPDATED")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.ID, s.Title, s.FileCount, p.Sprintf("R$ %.2f", s.TotalSum), s.UpdatedAt)
		}
		must(w.Flush())
	case "session:delete":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "session id")
		_ = fs.Parse(args)
		requireFlag("--id", *id)
		must(db.DeleteSession(*id))
		fmt.Printf("session deleted id=%s\n", *id)
	case "session:repair":
		n, err := db.RepairSessionStatus()
		must(err)
		fmt.Printf("sessions repaired=%d\n", n)
	case "session:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "session id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(args)
		requireFlag("--id", *id)
		if *out == "" {
			*out = filepath.Join(cfg.OutputDir, *id+".xlsx")
		}
		results, err := db.ListResults(*id)
		must(err)
		must(pipeline.ExportResultsXLSX(results, *out))
		fmt.Printf("exported %d results to %s\n", len(results), *out)
	case "session:revalidate":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "session id")
		_ = fs.Parse(args)
		requireFlag("--id", *id)
		n, err := processing.Revalidate(*id)
		must(err)
		fmt.Printf("revalidated session=%s changed=%d\n", *id, n)
	case "process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		session := fs.String("session", "", "session id")
		sheet := fs.String("sheet", "", "sheet name (default first)")
		allSheets := fs.Bool("all-sheets", false, "one result per sheet")
		_ = fs.Parse(args)
		requireFlag("--session", *session)
		if fs.NArg() == 0 {
			must(fmt.Errorf("no input files"))
		}
		docs := make([]pipeline.Document, 0, fs.NArg())
		for _, path := range fs.Args() {
			docs = append(docs, pipeline.Document{Path: path, SourceName: filepath.Base(path), Sheet: *sheet})
		}
		results, err := processing.ProcessFiles(*session, docs, *allSheets)
		must(err)
		for _, r := range results {
			fmt.Printf("%s\t%s\t%.2f\t%s\n", r.SourceName, r.SheetIdentifier, r.TotalValue, r.QualityTier)
		}
	case "metrics", "chart":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		session := fs.String("session", "", "session id")
		year := fs.Int("year", 0, "period year filter")
		month := fs.Int("month", 0, "period month filter")
		_ = fs.Parse(args)
		requireFlag("--session", *session)
		results, err := db.ListResults(*session)
		must(err)
		var out any
		if cmd == "metrics" {
			out = metrics.Compute(results, optionalInt(*year), optionalInt(*month))
		} else {
			out = metrics.ChartSeries(results, optionalInt(*year), optionalInt(*month))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		must(enc.Encode(out))
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(args)
		conn, err := connectors.New(strings.ToLower(*provider), cfg)
		must(err)
		result, err := connectors.NewFetchService(db, cfg.RawMailDir, conn, logger).FetchAndStore(context.Background(), *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d queued=%d skipped=%d\n", *provider, result.Fetched, result.Queued, result.Skipped)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		session := fs.String("session", cfg.MailListenerSession, "session id")
		provider := fs.String("provider", "", "only mails from this provider")
		batch := fs.Int("batch", cfg.MailListenerProcessBatch, "batch size")
		_ = fs.Parse(args)
		s, err := listener.ResolveSession(db, *session)
		must(err)
		res, err := processing.ProcessPendingMail(s.ID, strings.ToLower(*provider), *batch)
		must(err)
		fmt.Printf("processed mails=%d skipped=%d failed=%d results=%d session=%s\n", res.Processed, res.Skipped, res.Failed, res.Results, s.ID)
	case "mail:listen":
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		must(listener.NewService(db, cfg, logger).Run(ctx))
	case "inbox:watch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		session := fs.String("session", "", "session id")
		dir := fs.String("dir", cfg.InboxDir, "inbox directory")
		scan := fs.Bool("scan-existing", cfg.InboxScanExisting, "process files already present")
		_ = fs.Parse(args)
		requireFlag("--session", *session)
		_, err := db.GetSession(*session)
		must(err)
		must(os.MkdirAll(*dir, 0o755))
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		inbox := ingest.NewInbox(processing, *session, logger)
		must(inbox.Run(ctx, ingest.WatchConfig{Roots: []string{*dir}, InitialScan: *scan, Debounce: 500 * time.Millisecond}))
	default:
		usage()
		os.Exit(1)
	}
}

func loadTable(path, sheet, filters string) table.Table {
	t, _, err := loader.Load(path, sheet)
	must(err)
	t = table.CoerceDates(t)
	return filter.Apply(t, filter.ParseSpecs(filters))
}

func printTable(t table.Table) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(t.Headers(), "\t"))
	for r := 0; r < t.NumRows(); r++ {
		fmt.Fprintln(w, strings.Join(t.Row(r), "\t"))
	}
	must(w.Flush())
}

func optionalInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func requireFlag(name, value string) {
	if strings.TrimSpace(value) == "" {
		must(fmt.Errorf("%s is required", name))
	}
}

func usage() {
	fmt.Println("usage: finreports <command>")
	fmt.Println("commands:")
	fmt.Println("  sheets --file=report.xlsx")
	fmt.Println("  schema --file=report.xlsx [--sheet=...]")
	fmt.Println("  preview --file=report.xlsx [--sheet=...] [--filters=JSON] [--rows=50]")
	fmt.Println("  export --file=report.xlsx [--sheet=...] [--filters=JSON] --out=filtered.csv|.xlsx")
	fmt.Println("  session:create [--title=...] [--description=...]")
	fmt.Println("  session:list")
	fmt.Println("  session:delete --id=...")
	fmt.Println("  session:repair")
	fmt.Println("  session:export --id=... [--out=results.xlsx]")
	fmt.Println("  session:revalidate --id=...")
	fmt.Println("  process --session=... [--sheet=...] [--all-sheets] FILE...")
	fmt.Println("  metrics --session=... [--year=2024] [--month=3]")
	fmt.Println("  chart --session=... [--year=2024] [--month=3]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process [--session=...] [--provider=gmail|imap] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  inbox:watch --session=... [--dir=./inbox] [--scan-existing]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
