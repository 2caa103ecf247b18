package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"paperdesk/internal/app"
	"paperdesk/internal/assistant"
	"paperdesk/internal/config"
	"paperdesk/internal/ingest"
	"paperdesk/internal/server"
	"paperdesk/internal/util"
	"paperdesk/pkg/ai"
	"paperdesk/pkg/storage"
	"paperdesk/pkg/store"
)

const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}
	util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		util.Fatal("failed to open store", "err", err)
	}

	files, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		util.Fatal("failed to init file store", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var archive storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			util.Fatal("failed to init object store", "err", err)
		}
		archive = minioStore
	}

	var cache *ingest.PageCache
	if cfg.RedisAddr != "" {
		cache, err = ingest.NewPageCache(cfg.RedisAddr, cfg.RedisPassword, time.Duration(cfg.CacheTTLMinutes)*time.Minute)
		if err != nil {
			util.Fatal("failed to init page cache", "err", err)
		}
	}

	generator, err := buildGenerator(cfg)
	if err != nil {
		util.Fatal("failed to init generator", "err", err)
	}

	appCore, err := app.New(
		st,
		files,
		archive,
		ingest.NewExtractor(cache),
		assistant.New(generator, assistant.Config{
			Timeout:    time.Duration(cfg.AssistantTimeoutSeconds) * time.Second,
			CharBudget: cfg.ContextCharBudget,
		}),
		app.Config{TopK: cfg.TopK, HistoryLimit: cfg.HistoryLimit},
	)
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("paperdesk server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return runSweeper(ctx, files, cfg)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
	}
}

// runSweeper periodically removes uploaded files past the retention age.
func runSweeper(ctx context.Context, files *storage.FileStore, cfg config.FileConfig) error {
	if cfg.CleanupDays <= 0 {
		return nil
	}
	interval := time.Duration(cfg.SweepMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	maxAge := time.Duration(cfg.CleanupDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := files.Sweep(maxAge); removed > 0 {
				slog.Info("upload sweep complete", "removed", removed)
			}
		}
	}
}

func buildGenerator(cfg config.FileConfig) (ai.TextGenerator, error) {
	switch cfg.Provider {
	case "groq":
		baseURL := cfg.GroqBaseURL
		if baseURL == "" {
			baseURL = defaultGroqBaseURL
		}
		return ai.NewOpenAICompatGenerator(baseURL, cfg.GroqAPIKey, cfg.GenerationModel, cfg.Temperature), nil
	case "gemini":
		client, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		return ai.NewGeminiGenerator(client, cfg.GenerationModel, cfg.Temperature), nil
	case "ollama":
		return ai.NewOllamaGenerator(ai.NewOllamaClient(cfg.OllamaBaseURL), cfg.GenerationModel, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
