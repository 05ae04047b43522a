package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/abrezinsky/planningpoker/internal/app"
	"github.com/abrezinsky/planningpoker/internal/browser"
	"github.com/abrezinsky/planningpoker/internal/config"
	"github.com/abrezinsky/planningpoker/internal/logger"
	"github.com/abrezinsky/planningpoker/internal/tracing"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%sError:%s %v\n", red, reset, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 1 && (args[0] == "-version" || args[0] == "--version") {
		fmt.Printf("planningpoker %s\n", version)
		return nil
	}

	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := &crlfWriter{w: os.Stdout}
	appLog := logger.NewWithOptions(out, logger.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			appLog.Warn("Trace exporter shutdown failed", "error", err)
		}
	}()

	a := app.New(cfg, appLog)

	if !cfg.NoBanner {
		printBanner(out, version)
	}
	appLog.Info("Admin password", "password", a.AdminPassword())

	if !cfg.NoKeyboard {
		kb := &keyboard{
			app:      a,
			log:      appLog,
			launcher: browser.New(),
			out:      out,
			quit:     stop,
		}
		restore, err := kb.start(out)
		if err != nil {
			appLog.Debug("Keyboard shortcuts unavailable", "error", err)
		} else {
			defer restore()
			kb.printHelp()
		}
	}

	return a.ListenAndRun(ctx)
}
