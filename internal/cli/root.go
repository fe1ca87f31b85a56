// Package cli implements the personae CLI commands.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rcliao/personae/internal/config"
	"github.com/rcliao/personae/internal/llm"
	"github.com/rcliao/personae/internal/memory"
	"github.com/rcliao/personae/internal/reaction"
	"github.com/rcliao/personae/internal/store"
	"github.com/rcliao/personae/internal/worker"
)

var (
	dbPath     string
	configPath string
	formatFlag string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "personae",
	Short: "Reactive AI persons living in scenes",
	Long: `personae keeps a cast of AI persons, the scenes they share and the messages they
exchange in SQLite. A worker drains the job queue: each delivered message is
read by its recipient, who recalls memories, decides how to react through the
LLM, and forms new memories from what happened.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(getConfigPath())
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Database.Path = dbPath
		}

		zc := zap.NewProductionConfig()
		level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
		zc.Level = level
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $PERSONAE_DB or ~/.personae/personae.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: ~/.personae/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.Database.Path, store.Options{
		Dimensions: cfg.Database.Dimensions,
		Metric:     cfg.Metric(),
	})
}

// newModel builds the LLM client for s, refusing one whose embeddings would
// not fit the store's memory table.
func newModel(s *store.SQLiteStore) (*llm.Client, error) {
	if cfg.LLM.APIKey == "" && cfg.LLM.BaseURL == "" {
		return nil, errors.New("no LLM configured: set " + config.EnvAPIKey + " or llm.base_url")
	}
	m := llm.NewClient(llm.Config{APIKey: cfg.LLM.APIKey, BaseURL: cfg.LLM.BaseURL}, logger)
	if m.Dims() != s.Dimensions() {
		return nil, fmt.Errorf("embedding model produces %d dimensions but the store expects %d (database.dimensions)", m.Dims(), s.Dimensions())
	}
	return m, nil
}

// newWorker wires the memory and reaction engines around s.
func newWorker(s *store.SQLiteStore, opts worker.Options) (*worker.Worker, error) {
	m, err := newModel(s)
	if err != nil {
		return nil, err
	}
	if opts.PollInterval == 0 {
		opts.PollInterval, _ = cfg.PollInterval()
	}
	mem := memory.New(s, m, logger)
	react := reaction.New(m, logger)
	return worker.New(s, mem, react, opts, logger), nil
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
