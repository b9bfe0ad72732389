package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blueplan/diary-go/internal/diary/api"
	"github.com/blueplan/diary-go/internal/diary/config"
	contextx "github.com/blueplan/diary-go/internal/diary/context"
	"github.com/blueplan/diary-go/internal/diary/events"
	"github.com/blueplan/diary-go/internal/diary/geo"
	"github.com/blueplan/diary-go/internal/diary/llm"
	logx "github.com/blueplan/diary-go/internal/diary/log"
	"github.com/blueplan/diary-go/internal/diary/orchestrator"
	"github.com/blueplan/diary-go/internal/diary/photos"
	"github.com/blueplan/diary-go/internal/diary/playlist"
	"github.com/blueplan/diary-go/internal/diary/pool"
	"github.com/blueplan/diary-go/internal/diary/session"
	"github.com/blueplan/diary-go/internal/diary/story"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	logger, err := logx.NewLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logx.SetGlobalLogger(logger)
	defer func() { _ = logger.Sync() }()

	ctx := contextx.WithRequestID(context.Background(), "diary-boot")
	logger.Info(ctx, "Starting diary service",
		logx.KV("version", cfg.App.Version),
		logx.KV("environment", cfg.App.Environment))

	llmClient := newLLMClient(ctx, cfg, logger)

	// 照片识别：stub 或 vision
	var descriptor photos.Descriptor = photos.StubDescriptor{}
	if cfg.Photos.Descriptor == "vision" {
		descriptor = photos.NewVisionDescriptor(llmClient)
	}

	geoClient := &http.Client{Timeout: time.Duration(cfg.Geocode.Timeout) * time.Second}
	resolver := geo.NewResolver(
		geo.NewNominatim(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent, geoClient),
		geo.LogReporter{Logger: logger},
		logger,
	)

	var (
		spotify *playlist.Spotify
		tracks  playlist.Source
	)
	if cfg.Spotify.ClientID != "" {
		spotify = playlist.NewSpotify(cfg.Spotify, cfg.API.BaseURL+"/auth/spotify/callback", &http.Client{Timeout: 15 * time.Second})
		tracks = spotify
		logger.Info(ctx, "Spotify authorize URL", logx.KV("url", cfg.API.BaseURL+"/auth/spotify"))
	} else {
		logger.Warn(ctx, "Spotify 未配置，歌单接口不可用")
	}

	rdb, journal := newJournal(ctx, cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	generator := story.NewLLMGenerator(llmClient)
	hub := events.NewHub(32)
	orch := orchestrator.New(orchestrator.Deps{
		Resolver:  resolver,
		Playlist:  playlist.NewFetcher(tracks, logger),
		Photos:    photos.NewIngestor(photos.NewEncoder(cfg.Photos.MaxDimension), descriptor, cfg.Photos.MaxConcurrency, logger),
		Generator: generator,
		Presenter: story.NewPresenter(journal),
		Events:    hub,
		Logger:    logger,
	})
	orch.Photos.MaxUploadBytes = cfg.Photos.MaxUploadBytes

	store := session.NewStore(cfg.Memory.SessionTTLDuration())

	srv := api.NewServer(api.Deps{
		Config:       cfg,
		Logger:       logger,
		Store:        store,
		Orchestrator: orch,
		Hub:          hub,
		Generator:    generator,
		Tracks:       tracks,
		Spotify:      spotify,
		Redis:        rdb,
	})

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepSessions(sweepCtx, store, orch, srv, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Failed to start server", logx.KV("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "Shutting down diary service...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error(ctx, "Error shutting down API server", logx.KV("error", err))
	}
	logger.Info(ctx, "Diary service stopped")
}

// newLLMClient 未配置密钥的提供方回退到 mock
func newLLMClient(ctx context.Context, cfg *config.Config, logger *logx.Logger) llm.Client {
	provider := cfg.LLM.DefaultProvider
	pc, ok := cfg.LLM.Providers[provider]
	if !ok {
		logger.Warn(ctx, "LLM provider not configured, falling back to mock", logx.KV("provider", provider))
		provider, pc = "mock", cfg.LLM.Providers["mock"]
	}
	client, err := llm.NewClient(provider, pc)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}
	logger.Info(ctx, "LLM client ready", logx.KV("provider", provider), logx.KV("model", pc.Model))
	return client
}

func newJournal(ctx context.Context, cfg *config.Config, logger *logx.Logger) (*redis.Client, story.Journal) {
	if cfg.Memory.StoreType != "redis" {
		return nil, story.NewInmemJournal()
	}
	rdb, err := pool.NewRedisClient(ctx, cfg.Memory, pool.DefaultOptions, logger)
	if err != nil {
		logger.Warn(ctx, "Redis 不可用，已保存故事改用内存", logx.KV("error", err))
		return nil, story.NewInmemJournal()
	}
	return rdb, story.NewRedisJournal(rdb, cfg.Memory.SessionTTLDuration())
}

func sweepSessions(ctx context.Context, store *session.Store, orch *orchestrator.Orchestrator, srv *api.Server, logger *logx.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := store.Sweep()
			for _, id := range expired {
				orch.Forget(ctx, id)
			}
			if len(expired) > 0 {
				logger.Info(ctx, "过期会话已清理", logx.KV("count", len(expired)))
			}
			if n := srv.PruneLimiters(); n > 0 {
				logger.Debug(ctx, "空闲限流桶已清理", logx.KV("count", n))
			}
		}
	}
}
