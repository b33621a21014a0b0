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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/docchat/internal/api"
	"github.com/wuwenbin0122/docchat/internal/assistant"
	"github.com/wuwenbin0122/docchat/internal/auth"
	"github.com/wuwenbin0122/docchat/internal/db"
	"github.com/wuwenbin0122/docchat/internal/docs"
	"github.com/wuwenbin0122/docchat/internal/history"
	"github.com/wuwenbin0122/docchat/internal/realtime"
	"github.com/wuwenbin0122/docchat/internal/utils"
)

func main() {
	if err := utils.LoadEnvFiles(); err != nil {
		log.Printf("config: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: failed to build: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	store, closeStore, err := buildHistory(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("history backend", zap.Error(err))
	}
	closers = append(closers, closeStore)

	lookup, closeLookup, err := buildDocs(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("document backend", zap.Error(err))
	}
	closers = append(closers, closeLookup)

	authService, err := auth.NewService(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		logger.Fatal("failed to initialise auth service", zap.Error(err))
	}

	hub := realtime.NewHub(0)
	closers = append(closers, hub.Close)

	handler := api.NewHandler(api.Options{
		Auth:           authService,
		History:        store,
		Docs:           lookup,
		Replier:        buildReplier(cfg.Assistant, logger),
		Hub:            hub,
		AllowedOrigins: cfg.CORSOrigins,
		Logger:         utils.Component(logger, "api").Sugar(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Assistant.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("addr", server.Addr),
			zap.String("history", cfg.HistoryBackend),
			zap.String("docs", cfg.DocsBackend),
			zap.String("assistant", cfg.Assistant.Mode),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server crashed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// websocket streams are hijacked and ignored by Shutdown
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped cleanly")
}

func buildHistory(ctx context.Context, cfg *utils.Config, logger *zap.Logger) (history.Store, func(), error) {
	if cfg.HistoryBackend != utils.HistoryPostgres {
		logger.Info("using in-memory history seeded with welcome chats")
		return history.NewSeededMemory(time.Now().UTC()), func() {}, nil
	}

	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Ping(ctx); err != nil {
		postgres.Close()
		return nil, nil, err
	}
	if err := postgres.EnsureSchema(ctx); err != nil {
		postgres.Close()
		return nil, nil, err
	}
	return postgres, postgres.Close, nil
}

func buildDocs(ctx context.Context, cfg *utils.Config, logger *zap.Logger) (docs.Lookup, func(), error) {
	var (
		lookup  docs.Lookup = docs.NewStaticLookup(nil)
		closers []func()
	)

	if cfg.DocsBackend == utils.DocsMongo {
		mongoStore, err := db.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		if err := mongoStore.EnsureCollections(ctx); err != nil {
			_ = mongoStore.Close(context.Background())
			return nil, nil, err
		}
		lookup = mongoStore
		closers = append(closers, func() {
			if err := mongoStore.Close(context.Background()); err != nil {
				logger.Warn("mongo: close error", zap.Error(err))
			}
		})
	}

	if cfg.Redis.Addr != "" {
		client, err := db.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("document cache disabled", zap.Error(err))
		} else {
			lookup = docs.NewCachedLookup(lookup, docs.NewRedisCache(client), cfg.Redis.DocsTTL, utils.Component(logger, "docs"))
			closers = append(closers, func() { _ = client.Close() })
		}
	}

	return lookup, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}

func buildReplier(cfg utils.AssistantConfig, logger *zap.Logger) assistant.Replier {
	if cfg.Mode != utils.AssistantCompletion {
		return assistant.MockReplier{Text: cfg.MockReply}
	}

	return assistant.NewCompletionReplier(assistant.CompletionConfig{
		BaseURL:        cfg.BaseURL(),
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		SystemPrompt:   cfg.SystemPrompt,
		RequestsPerSec: cfg.RequestsPerSec,
		Burst:          cfg.Burst,
		Timeout:        cfg.Timeout,
	}, utils.Component(logger, "assistant").Sugar())
}
