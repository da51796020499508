// Package cli provides the trackshow command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/maruel/trackshow/internal/applog"
	"github.com/maruel/trackshow/internal/config"
	"github.com/maruel/trackshow/internal/library"
)

var (
	errNotFound  = errors.New("not found")
	errNoHistory = errors.New("history is disabled; set history: true in config.yaml")
)

// app holds the state shared by every command of one invocation.
type app struct {
	configDir string
	dataDir   string
	logLevel  string
	history   bool

	cfg     *config.Config
	lib     *library.Library
	logFile io.Closer
}

// Execute runs the command line with args.
func Execute(ctx context.Context, args []string) error {
	root, a := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	a.close()
	return err
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "trackshow",
		Short: "Track the shows you watch",
		Long: `Track the shows you watch.

Shows, notes, tags and settings are stored as JSON files in the data
directory; images go to a SQLite database next to them. Every command prints
its result as indented JSON.`,
		Version:           version(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	f := root.PersistentFlags()
	f.StringVar(&a.configDir, "config-dir", config.DefaultDir(), "Directory holding config.yaml")
	f.StringVar(&a.dataDir, "data-dir", "", "Data directory (overrides config.yaml)")
	f.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config.yaml)")
	f.BoolVar(&a.history, "history", false, "Record every write as a git commit (overrides config.yaml)")

	root.AddCommand(
		newShowCmd(a),
		newNoteCmd(a),
		newTagCmd(a),
		newSettingsCmd(a),
		newImageCmd(a),
		newAssetsCmd(a),
		newBackupCmd(a),
		newHistoryCmd(a),
		newWatchCmd(a),
	)
	return root, a
}

// setup loads the configuration, in increasing priority: config.yaml, the
// .env file of the data directory, then flags.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = a.dataDir
	}
	env, err := config.ReadEnv(cfg.DataDir)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return err
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("history") {
		cfg.History = a.history
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := applog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger, logFile, err := applog.New(applog.Options{Level: level, Out: cmd.ErrOrStderr(), File: cfg.LogFile})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	a.logFile = logFile
	a.cfg = cfg

	a.lib, err = library.Open(library.Options{DataDir: cfg.DataDir, AssetDB: cfg.AssetDB, History: cfg.History})
	if err != nil {
		return err
	}
	slog.DebugContext(cmd.Context(), "Opened library", "dir", cfg.DataDir, "history", cfg.History)
	return nil
}

func (a *app) close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

// version describes the binary from its embedded build information.
func version() string {
	v, revision, dirty := "dev", "unknown", false
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	v += " (" + info.GoVersion + ", " + revision
	if dirty {
		v += ", modified"
	}
	return v + ")"
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to print result: %w", err)
	}
	return nil
}

// printFound prints v, or returns errNotFound naming what when ok is false.
func printFound(cmd *cobra.Command, what, id string, v any, ok bool) error {
	if !ok {
		return fmt.Errorf("%s %q: %w", what, id, errNotFound)
	}
	return printJSON(cmd, v)
}
