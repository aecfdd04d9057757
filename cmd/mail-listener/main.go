package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finreports/internal/config"
	"finreports/internal/listener"
	"finreports/internal/logging"
	"finreports/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	once := flag.Bool("once", false, "run a single fetch and mining cycle")
	session := flag.String("session", cfg.MailListenerSession, "session receiving mined reports")
	provider := flag.String("provider", cfg.MailListenerProvider, "gmail|imap")
	flag.Parse()
	cfg.MailListenerSession = *session
	cfg.MailListenerProvider = *provider

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	reports, err := listener.ResolveSession(db, cfg.MailListenerSession)
	must(err)
	cfg.MailListenerSession = reports.ID

	svc := listener.NewService(db, cfg, logger)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *once {
		must(svc.RunCycle(ctx))
		return
	}

	logger.Info("mail listener started",
		"provider", cfg.MailListenerProvider,
		"session", reports.ID,
		"interval_sec", cfg.MailListenerIntervalSec,
	)
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
