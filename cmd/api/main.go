package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"studio/internal/background"
	"studio/internal/http/handlers"
	"studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/orchestrator"
	"studio/internal/providers/analysis"
	"studio/internal/providers/genai"
	"studio/internal/providers/image"
	"studio/internal/providers/qwen"
	"studio/internal/queue"
	"studio/internal/snapshot"
	"studio/internal/storage"
	"studio/internal/studio"
)

func main() {
	// Muat .env (opsional)
	_ = godotenv.Load()

	// Konfigurasi & logger
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// Snapshot store: postgres atau redis
	var store snapshot.Store
	switch cfg.SessionStore {
	case "redis":
		client, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer client.Close()
		store = snapshot.NewRedisStore(client, cfg.SnapshotTTL)
	default:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		pg := snapshot.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare snapshot schema")
		}
		store = pg
	}

	files, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare asset storage")
	}

	// Provider clients per keluarga model
	geminiClient, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}
	geminiGen := image.NewGeminiGenerator(geminiClient)
	qwenClient, err := qwen.NewClient(qwen.Options{
		APIKey:         cfg.DashScopeAPIKey,
		BaseURL:        cfg.DashScopeBaseURL,
		Model:          cfg.DashScopeModel,
		Logger:         &logger,
		RequestTimeout: cfg.ProviderTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build qwen client")
	}

	generators := map[image.Family]image.Generator{
		image.FamilyGemini: geminiGen,
		image.FamilyQwen:   image.NewQwenGenerator(qwenClient, geminiGen),
	}

	jobQueue := queue.New(cfg.GenerateQueueRate, 128, logger)
	defer jobQueue.Close()

	orch := orchestrator.New(orchestrator.Options{
		Generators: generators,
		Resizer:    geminiGen,
		Analyzer:   analysis.NewGeminiAnalyzer(geminiClient),
		Remover: background.NewHTTPRemover(background.Options{
			APIURL: cfg.BackgroundAPIURL,
			APIKey: cfg.BackgroundAPIKey,
			Logger: logger,
		}),
		Files:   files,
		Runner:  jobQueue,
		Timeout: cfg.ProviderTimeout,
		Logger:  logger,
	})

	manager := studio.NewManager()
	saver := snapshot.NewSaver(store, cfg.SnapshotDebounce, logger)

	app := handlers.NewApp(manager, orch, saver, store, files, cfg, logger)
	router := httpapi.NewRouter(app, allowedOrigins())
	server := infra.NewHTTPServer(cfg, router)

	// Pembersihan snapshot kadaluarsa via cron
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.SessionSweepCron, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := store.Purge(sweepCtx, time.Now().Add(-cfg.SessionRetention))
		if err != nil {
			logger.Error().Err(err).Msg("session sweep failed")
			return
		}
		if n > 0 {
			logger.Info().Int("purged", n).Msg("session sweep")
		}
	}); err != nil {
		logger.Fatal().Err(err).Msg("invalid session sweep schedule")
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Start async
	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := saver.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to flush sessions")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins() []string {
	raw := os.Getenv("CORS_ALLOWED_ORIGINS")
	if raw == "" {
		return []string{"http://localhost:3000", "http://localhost:5173"}
	}
	var out []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
