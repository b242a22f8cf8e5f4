package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/uovfts/faculty-assistant/db"
	"github.com/uovfts/faculty-assistant/internal/api"
	"github.com/uovfts/faculty-assistant/internal/cache"
	"github.com/uovfts/faculty-assistant/internal/embed"
	"github.com/uovfts/faculty-assistant/internal/generator"
	"github.com/uovfts/faculty-assistant/internal/llm"
	"github.com/uovfts/faculty-assistant/internal/observability"
	"github.com/uovfts/faculty-assistant/internal/postgres"
	"github.com/uovfts/faculty-assistant/internal/prompt"
	"github.com/uovfts/faculty-assistant/internal/rag"
	"github.com/uovfts/faculty-assistant/internal/retriever"
	"github.com/uovfts/faculty-assistant/internal/store"
	"github.com/uovfts/faculty-assistant/internal/vectorstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting faculty assistant", "version", AppVersion)

	if err := db.Migrate(cfg.URL(), logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.URL())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	tracing := observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}
	shutdownTracing, err := observability.Setup(ctx, tracing, logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("trace flush failed", "error", err)
		}
	}()

	embedder := embed.New(embed.Config{
		BaseURL:   cfg.EmbeddingBaseURL,
		APIKey:    cfg.EmbeddingAPIKey,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
	}, logger)

	completer := llm.New(llm.Config{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.GroqAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	}, logger)

	counter, err := prompt.NewCounter()
	if err != nil {
		return fmt.Errorf("loading tokenizer: %w", err)
	}
	builder := prompt.NewBuilder(counter, cfg.PromptTokenBudget)

	vectors := vectorstore.New(pool, logger)
	sessions := store.New(pool, logger)

	pipeline := rag.New(
		cache.New[*generator.Answer](cfg.CacheTTL(), cfg.CacheMaxEntries),
		retriever.New(embedder, vectors, cfg.TopK, cfg.SimilarityThreshold, logger),
		generator.New(completer, builder, logger),
		sessions,
		rag.Config{
			HistoryLimit: cfg.HistoryLimit,
			CallTimeout:  cfg.CallTimeout(),
			RetryDelay:   cfg.RetrievalRetryDelay(),
		},
		logger,
	)

	srv := api.NewServer(api.Config{
		Addr:               cfg.HTTPAddr,
		CORSOrigins:        cfg.CORSOrigins,
		TrustProxy:         cfg.TrustProxy,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
	},
		api.NewChatHandler(pipeline, sessions, logger),
		api.NewFeedbackHandler(sessions, logger),
		api.NewHistoryHandler(sessions, logger),
		api.NewHealthHandler(sessions, vectors, AppVersion, logger),
		logger,
	)

	var handler http.Handler = srv.Handler()
	if tracing.Enabled() {
		handler = otelhttp.NewHandler(handler, "faculty-assistant")
	}

	return srv.Run(ctx, handler)
}
