// Package cmd wires configuration, storage and the RAG pipeline into the
// faculty-assistant CLI.
package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/uovfts/faculty-assistant/internal/config"
	"github.com/uovfts/faculty-assistant/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "faculty-assistant",
	Short: "RAG chatbot backend for faculty documents",
	Long: `faculty-assistant answers student questions from indexed faculty
documents: handbooks, exam rules, admission notices.

Run "faculty-assistant serve" to start the HTTP API, or
"faculty-assistant ingest --dir ./documents" to index documents.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() error {
	// .env is a development convenience, absence is fine.
	_ = godotenv.Load()
	return rootCmd.Execute()
}

// loadConfig loads configuration and builds the logger from it.
func loadConfig() (*config.Config, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: parseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(logger)

	return cfg, logger, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
