// Package main is the entry point for trackshow.
//
// trackshow keeps a personal list of the shows being watched, their progress,
// notes with images and tags. Records are JSON files in the data directory;
// images live in a SQLite database next to them. Configuration is read from
// config.yaml, a .env file in the data directory, then flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maruel/trackshow/internal/applog"
	"github.com/maruel/trackshow/internal/cli"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "trackshow: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	// Replaced once the configuration is loaded.
	logger, _, err := applog.New(applog.Options{})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return cli.Execute(ctx, os.Args[1:])
}
