// Command server runs the subscription HTTP API.
//
// @title       Subscription API
// @version     1.0
// @description Email subscription service with uniform error rendering and per-client rate limiting.
// @BasePath    /
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/go-subscription-service/docs"
	"github.com/tbourn/go-subscription-service/internal/config"
	httpapi "github.com/tbourn/go-subscription-service/internal/http"
	"github.com/tbourn/go-subscription-service/internal/observability"
	"github.com/tbourn/go-subscription-service/internal/ratelimit"
	"github.com/tbourn/go-subscription-service/internal/repo"
	"github.com/tbourn/go-subscription-service/internal/supervisor"
	"github.com/tbourn/go-subscription-service/internal/sysutil"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogging(os.Stdout, cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)
	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), "dev")
	startedAt := time.Now()

	ctx := context.Background()
	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.DBDSN, repo.Options{
		ConnectTimeout: cfg.DBConnectTimeout,
		Tracing:        cfg.OTEL.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("database handle unavailable")
	}

	monitor := repo.NewMonitor(sqlDB, cfg.DBMonitorInterval)
	monitor.OnEvent(func(ev repo.Event, err error) {
		observability.SetDBConnected(ev == repo.EventConnected)
		switch ev {
		case repo.EventConnected:
			log.Info().Msg("database connected")
		case repo.EventDisconnected:
			log.Warn().Msg("database disconnected")
		default:
			log.Error().Err(err).Msg("database error")
		}
	})
	monitor.Check(ctx)

	var store ratelimit.Store
	var redisStore *ratelimit.RedisStore
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		redisStore = ratelimit.NewRedisStore(redis.NewClient(opt), "ratelimit:")
		store = redisStore
		log.Info().Str("addr", opt.Addr).Msg("rate limiting backed by redis")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:        db,
		DBState:   monitor,
		Store:     store,
		StartedAt: startedAt,
	}, cfg)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	sup := supervisor.New(srv, supervisor.WithGracePeriod(cfg.ShutdownGrace))
	defer func() {
		if v := recover(); v != nil {
			sup.Crash(v)
		}
	}()

	sup.OnShutdown("database", func(context.Context) error { return repo.Close(db) })
	if redisStore != nil {
		sup.OnShutdown("redis", func(context.Context) error { return redisStore.Close() })
	}
	sup.OnShutdown("tracing", shutdownTracing)
	sup.Go("db-monitor", monitor.Run)

	log.Info().
		Str("mode", string(cfg.Mode)).
		Str("version", version).
		Str("addr", cfg.Addr()).
		Msg("starting subscription service")
	os.Exit(sup.Run())
}
