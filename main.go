package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"eduvia/internal/api"
	"eduvia/internal/config"
	"eduvia/internal/credentials"
	"eduvia/internal/redis"
	"eduvia/internal/service/ai"
	"eduvia/internal/service/community"
	"eduvia/internal/service/library"
	"eduvia/internal/service/profile"
	"eduvia/internal/storage"
	"eduvia/internal/telemetry"
)

func main() {
	cfgPath := pflag.StringP("config", "c", os.Getenv(config.PathEnv), "path to the JSON or YAML config file")
	seal := pflag.String("seal", "", "encrypt an API key with "+credentials.CipherKeyEnv+" and print it")
	pflag.Parse()

	if *seal != "" {
		sealed, err := credentials.Seal("", *seal)
		if err != nil {
			log.Fatalf("seal api key: %v", err)
		}
		fmt.Println(sealed)
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.BasicConfig.LogLevel),
	}))
	slog.SetDefault(logger)

	if cfg.BasicConfig.Telemetry {
		shutdown, err := telemetry.InitTracer("eduvia", nil, logger)
		if err != nil {
			log.Fatalf("init tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("tracer shutdown failed", slog.Any("error", err))
			}
		}()
	}

	dbType := cfg.BasicConfig.Database
	logger.Info("opening database", slog.String("driver", dbType))
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
	}

	pool, err := credentials.NewPool(cfg.Provider.APIKeys)
	if err != nil {
		log.Fatalf("load credentials: %v", err)
	}
	factory, err := ai.NewModelFactory(cfg.Provider)
	if err != nil {
		log.Fatalf("init provider: %v", err)
	}
	aiOpts := []ai.Option{
		ai.WithHistoryWindow(cfg.BasicConfig.HistoryWindow),
		ai.WithLogger(logger),
	}
	if counter, err := ai.NewTokenCounter(); err != nil {
		logger.Warn("token counter unavailable", slog.Any("error", err))
	} else {
		aiOpts = append(aiOpts, ai.WithTokenCounter(counter))
	}
	completer := ai.NewClient(factory, aiOpts...)
	logger.Info("provider ready",
		slog.String("provider", cfg.Provider.Name),
		slog.String("model", cfg.Provider.Model),
		slog.Int("credentials", pool.Len()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := api.NewHandler(api.Deps{
		Completer:     completer,
		Credentials:   pool,
		Profiles:      profile.NewService(db, rdb, logger),
		Community:     community.NewService(db, rdb, logger),
		Library:       library.NewService(cfg.Library, nil),
		Logger:        logger,
		StreamTimeout: time.Duration(cfg.BasicConfig.StreamTimeoutSeconds) * time.Second,
	})
	gin.SetMode(gin.ReleaseMode)
	chatLimit := api.RateLimit(ctx, cfg.BasicConfig.RateLimit.RequestsPerSecond, cfg.BasicConfig.RateLimit.Burst)
	router := api.NewRouter(handler, logger, chatLimit)

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           otelhttp.NewHandler(router, "eduvia"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", slog.Any("error", err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
		}
	}
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
