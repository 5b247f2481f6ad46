// Package cli contains the nordbok command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nordbok/nordbok/pkg/config"
)

var (
	cfg    *config.Config
	logger *slog.Logger

	workspaceFlag string
)

var rootCmd = &cobra.Command{
	Use:   "nordbok",
	Short: "Import bank statements and SIE files into the bookkeeping ledger",
	Long: `nordbok imports Swedish bank statement exports (CSV/TSV) and SIE
accounting files. Files are analyzed, previewed and committed in separate
steps so nothing lands in the ledger without review.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger = newLogger(cfg.Log)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workspaceFlag, "workspace", "",
		"workspace UUID (defaults to NORDBOK_WORKSPACE)")
}

func newLogger(lc config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func workspaceID() (uuid.UUID, error) {
	raw := workspaceFlag
	if raw == "" {
		raw = os.Getenv("NORDBOK_WORKSPACE")
	}
	if raw == "" {
		return uuid.Nil, fmt.Errorf("no workspace given: use --workspace or NORDBOK_WORKSPACE")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid workspace id %q: %w", raw, err)
	}
	return id, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
