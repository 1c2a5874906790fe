// Package cli implements the checkpoint-tracker CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/checkpoint-tracker/internal/config"
	"github.com/rcliao/checkpoint-tracker/internal/store"
)

var (
	configPath  string
	dbPath      string
	backendFlag string
	formatFlag  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "checkpoint-tracker",
	Short: "Adaptive interview checkpoint tracking",
	Long:  "Tracks interview sessions against per-category checkpoints and learns which checkpoints lead to decisions.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $CHECKPOINTS_DB or ~/.checkpoint-tracker/checkpoints.db)")
	RootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Store backend: sqlite or badger")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	if backendFlag != "" {
		cfg.Store.Backend = backendFlag
	}
	if err := cfg.Validate(); err != nil {
		exitErr("config", err)
	}
	return cfg
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendBadger:
		return store.NewBadgerStore(store.BadgerConfig{
			Path:     cfg.Store.Path,
			InMemory: cfg.Store.InMemory,
			Logger:   cfg.NewLogger(os.Stderr).With("component", "badger"),
		})
	default:
		return store.NewSQLiteStore(cfg.Store.Path)
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
