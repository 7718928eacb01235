package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/edubot/internal/auth"
	"github.com/iliyamo/edubot/internal/config"
	"github.com/iliyamo/edubot/internal/database"
	"github.com/iliyamo/edubot/internal/gateway"
	"github.com/iliyamo/edubot/internal/handler"
	"github.com/iliyamo/edubot/internal/middleware"
	"github.com/iliyamo/edubot/internal/repository"
	"github.com/iliyamo/edubot/internal/router"
	"github.com/iliyamo/edubot/internal/service"
	"github.com/iliyamo/edubot/internal/utils"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.SlogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()
	store := repository.NewStore(db)
	slog.Info("database ready", "path", cfg.DatabasePath)

	secret := []byte(cfg.SecretKey)
	if len(secret) == 0 {
		if secret, err = utils.NewSecret(32); err != nil {
			return err
		}
		slog.Warn("SECRET_KEY not set; using a random key, sessions will not survive a restart")
	}

	rdb := config.NewRedisClient(cfg.Redis)
	var registry auth.Registry = auth.NewMemoryRegistry()
	if rdb != nil {
		defer rdb.Close()
		registry = auth.NewRedisRegistry(rdb, "")
		slog.Info("redis connected", "addr", cfg.Redis.Address())
	} else {
		slog.Info("redis not available; sessions are process-local, rate limit and cache disabled")
	}

	manager, err := auth.NewManager(store.Users, registry, auth.Options{
		Secret:     secret,
		TTL:        cfg.SessionTTL,
		BcryptCost: cfg.BcryptCost,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	gem, err := gateway.NewGeminiClient(gateway.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GeminiTimeout,
	})
	if err != nil {
		return err
	}

	var pub service.Publisher = service.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		pub = service.NewAMQPPublisher(cfg.RabbitMQURL)
	}

	chat := service.NewChatService(service.ChatDeps{
		Sessions:  store.Sessions,
		Messages:  store.Messages,
		Analytics: store.Analytics,
		Binder:    manager,
		Gateway:   gem,
		Publisher: pub,
		Logger:    logger,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = !cfg.IsProd() // verbose error bodies outside production
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	cacheCfg := cfg.Cache
	router.RegisterRoutes(e, router.Deps{
		Health:   store,
		Sessions: manager,
		Auth:     handler.NewAuthHandler(manager),
		Chat:     handler.NewChatHandler(chat),
		Faculty: handler.NewFacultyHandler(chat, manager, func(ctx context.Context) error {
			return middleware.PurgeCache(ctx, cacheCfg, rdb)
		}),
		RateLimit: middleware.NewTokenBucket(cfg.RateLimit, rdb),
		Cache:     middleware.NewRedisCache(cfg.Cache, rdb),
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr, "env", cfg.Env, "model", gem.Model())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}
