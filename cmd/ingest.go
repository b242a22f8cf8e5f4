package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/uovfts/faculty-assistant/db"
	"github.com/uovfts/faculty-assistant/internal/embed"
	"github.com/uovfts/faculty-assistant/internal/ingest"
	"github.com/uovfts/faculty-assistant/internal/postgres"
	"github.com/uovfts/faculty-assistant/internal/vectorstore"
)

var (
	ingestDir          string
	ingestRecreate     bool
	ingestRemoveURLs   bool
	ingestRemoveEmails bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index faculty documents into the vector store",
	Long: `Loads every supported document under --dir, cleans and chunks the
text, embeds the chunks and upserts them into PostgreSQL.

Supported formats: txt, md, html, pdf (PDF needs a converter service).
Re-running on the same files updates chunks in place. Use --recreate to
drop previously indexed chunks per file first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest()
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "directory of documents to ingest (required)")
	ingestCmd.Flags().BoolVar(&ingestRecreate, "recreate", false, "delete previously indexed chunks per source file")
	ingestCmd.Flags().BoolVar(&ingestRemoveURLs, "remove-urls", false, "strip URLs from document text")
	ingestCmd.Flags().BoolVar(&ingestRemoveEmails, "remove-emails", false, "strip email addresses from document text")
	_ = ingestCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	// One ingestion at a time. Concurrent runs would interleave upserts for
	// the same sources.
	lock := flock.New(filepath.Join(os.TempDir(), "faculty-assistant-ingest.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another ingestion is already running")
	}
	defer func() { _ = lock.Unlock() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(cfg.URL(), logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.URL())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	chunker, err := ingest.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return err
	}

	embedder := embed.New(embed.Config{
		BaseURL:   cfg.EmbeddingBaseURL,
		APIKey:    cfg.EmbeddingAPIKey,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
	}, logger)

	pipeline := ingest.New(
		ingest.NewLoader(cfg.PDFConverterURL, logger),
		chunker,
		embedder,
		vectorstore.New(pool, logger),
		ingest.Config{
			EmbedBatchSize:  cfg.EmbedBatchSize,
			UpsertBatchSize: cfg.UpsertBatchSize,
			Clean: ingest.CleanOptions{
				RemoveURLs:   ingestRemoveURLs,
				RemoveEmails: ingestRemoveEmails,
			},
		},
		logger,
	)

	stats, err := pipeline.ProcessDirectory(ctx, ingestDir, ingestRecreate)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", ingestDir, err)
	}

	fmt.Printf("Ingested %d files (%d chunks), skipped %d\n", stats.Files, stats.Chunks, stats.Skipped)
	return nil
}
