package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/japaniel/syllabler/pkg/config"
	"github.com/japaniel/syllabler/pkg/db"
	"github.com/japaniel/syllabler/pkg/overrides"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

// app carries global flag values and what PersistentPreRunE builds from them.
type app struct {
	configPath    string
	dbPath        string
	overridesPath string
	verbose       bool

	cfg    *config.Config
	logger *zap.Logger
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "syllabler",
		Short: "Rule-based English syllable counter",
		Long: `syllabler counts English syllables with a fixed set of suffix and
vowel-group rules, backed by an editable override table.

It can count words and lines, scan web pages or files for verse forms
such as 5-7-5, and keep scanned sources in a sqlite database.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.dbPath != "" {
				cfg.Database.Path = a.dbPath
			}
			if a.overridesPath != "" {
				cfg.Overrides.Path = a.overridesPath
			}
			a.cfg = cfg

			if a.logger != nil {
				return nil
			}
			zcfg := zap.NewProductionConfig()
			if lvl, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
				zcfg.Level = zap.NewAtomicLevelAt(lvl)
			}
			if a.verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			a.logger, err = zcfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "Path to YAML config file")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "Path to SQLite database (overrides config)")
	root.PersistentFlags().StringVar(&a.overridesPath, "overrides", "", "Path to override CSV (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(a.countCmd())
	root.AddCommand(a.scanCmd())
	root.AddCommand(a.overridesCmd())
	return root
}

// openDB opens the configured database and applies migrations.
func (a *app) openDB() (*sql.DB, error) {
	conn, err := db.Open(a.cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("database ready", zap.String("path", a.cfg.Database.Path))
	return conn, nil
}

// overrideTable builds the table used for counting. Stored overrides from
// conn come first and the CSV file, when present, wins on conflicts.
func (a *app) overrideTable(ctx context.Context, conn *sql.DB) (overrides.Table, error) {
	t := overrides.Table{}
	if conn != nil {
		stored, err := overrides.NewImporter(conn, a.logger).LoadFromDB()
		if err != nil {
			return nil, fmt.Errorf("load stored overrides: %w", err)
		}
		for w, n := range stored {
			t[w] = n
		}
	}

	path := a.cfg.Overrides.Path
	if a.cfg.Overrides.URL != "" {
		if err := overrides.EnsureOverrides(ctx, path, a.cfg.Overrides.URL, a.logger); err != nil {
			a.logger.Warn("could not fetch overrides, continuing without them", zap.Error(err))
		}
	}
	file, err := overrides.LoadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		a.logger.Debug("no override file", zap.String("path", path))
	case err != nil:
		return nil, err
	default:
		for w, n := range file {
			t[w] = n
		}
	}
	a.logger.Debug("overrides loaded", zap.Int("entries", len(t)))
	return t, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := &app{}
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
