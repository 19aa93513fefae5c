package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/amansir99/trustscan-ai-sub001/internal/adapter"
	"github.com/amansir99/trustscan-ai-sub001/internal/audit"
	"github.com/amansir99/trustscan-ai-sub001/internal/cache"
	"github.com/amansir99/trustscan-ai-sub001/internal/config"
	"github.com/amansir99/trustscan-ai-sub001/internal/observability"
	"github.com/amansir99/trustscan-ai-sub001/internal/queue"
	"github.com/amansir99/trustscan-ai-sub001/internal/ratelimit"
	"github.com/amansir99/trustscan-ai-sub001/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the audit HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logging)

	tracerProvider, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.ShutdownTracing(shutdownCtx, tracerProvider); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	store := cache.NewMemoryStore(cfg.Cache.JanitorInterval)
	defer store.Close()

	extractor := adapter.NewHTTPExtractor(http.DefaultClient, adapter.ExtractorConfig{
		UserAgent:         cfg.Extraction.UserAgent,
		MaxBodyBytes:      cfg.Extraction.MaxBodyBytes,
		RequestsPerSecond: cfg.Extraction.RequestsPerSecond,
		Burst:             cfg.Extraction.Burst,
	})

	analyzer, err := adapter.NewLLMAnalyzer(adapter.AnalyzerConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return fmt.Errorf("initializing analyzer: %w", err)
	}

	orchOpts := []audit.Option{}
	if cfg.LLM.HeuristicFallback {
		orchOpts = append(orchOpts, audit.WithFallbackAnalyzer(adapter.NewHeuristicAnalyzer()))
	}

	if cfg.Ledger.Enabled {
		ledgerClient := &http.Client{Timeout: cfg.Ledger.Timeout}
		orchOpts = append(orchOpts, audit.WithLedger(adapter.NewHTTPLedger(ledgerClient, adapter.LedgerConfig{
			Endpoint: cfg.Ledger.Endpoint,
			APIKey:   cfg.Ledger.APIKey,
		})))
	}

	if cfg.Database.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		reports, err := adapter.NewSQLiteReportStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening report store: %w", err)
		}
		defer reports.Close()
		orchOpts = append(orchOpts, audit.WithReportStore(reports))
	}

	orchestrator := audit.New(audit.Config{
		DefaultTimeout:    cfg.Workflow.DefaultTimeout,
		MaxTimeout:        cfg.Workflow.MaxTimeout,
		DefaultMaxRetries: cfg.Workflow.MaxRetries,
		RetryBaseDelay:    cfg.Workflow.RetryBaseDelay,
		RetryMaxDelay:     cfg.Workflow.RetryMaxDelay,
		ExtractTTL:        cfg.Cache.ExtractTTL,
		AnalyzeTTL:        cfg.Cache.AnalyzeTTL,
		ResultTTL:         cfg.Cache.ResultTTL,
	}, extractor, analyzer, store, logger, orchOpts...)

	q := queue.New(queue.Config{
		MaxQueueSize:    cfg.Queue.MaxQueueSize,
		ConcurrentLimit: cfg.Queue.ConcurrentLimit,
		MaxWait:         cfg.Queue.MaxWait,
	})

	auditLimiter := ratelimit.New(ratelimit.Config{
		MaxRequests: cfg.RateLimit.Audit.MaxRequests,
		Window:      cfg.RateLimit.Audit.Window,
	})
	defer auditLimiter.Close()

	apiLimiter := ratelimit.New(ratelimit.Config{
		MaxRequests: cfg.RateLimit.API.MaxRequests,
		Window:      cfg.RateLimit.API.Window,
	})
	defer apiLimiter.Close()

	var auth adapter.Authenticator
	if cfg.Auth.Enabled {
		auth = adapter.NewStaticAuthenticator(cfg.Auth.Tokens)
	}

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, orchestrator, q, auditLimiter, apiLimiter, auth, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := srv.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return <-errCh
	}
}

// loadConfig loads configuration from the --config flag, the
// TRUSTSCAN_CONFIG environment variable, or the default path, falling
// back to defaults when no file exists.
func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		path = os.Getenv("TRUSTSCAN_CONFIG")
	}

	loader := config.NewLoader(config.NewValidator())
	if path != "" {
		return loader.Load(path)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return config.DefaultConfig(), nil
	}
	return loader.LoadWithDefaults(filepath.Join(home, ".trustscan", "config.yaml"))
}
