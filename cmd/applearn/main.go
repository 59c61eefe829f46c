package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/applearn/internal/games"
	"github.com/example/applearn/internal/httpapi"
	"github.com/example/applearn/internal/idempotency"
	"github.com/example/applearn/internal/identity"
	"github.com/example/applearn/internal/platform/analytics"
	"github.com/example/applearn/internal/platform/auth"
	"github.com/example/applearn/internal/platform/config"
	"github.com/example/applearn/internal/platform/db"
	"github.com/example/applearn/internal/platform/httpserver"
	"github.com/example/applearn/internal/platform/logging"
	"github.com/example/applearn/internal/platform/natsconn"
	"github.com/example/applearn/internal/platform/run"
	"github.com/example/applearn/internal/progress"
	"github.com/example/applearn/internal/teacher"
	"github.com/example/applearn/internal/token"
	"github.com/example/applearn/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db open", zap.Error(err))
		run.Exit(1)
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Error("redis url", zap.Error(err))
			run.Exit(1)
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
	}

	var events *analytics.Publisher
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName})
	if err != nil {
		log.Warn("nats connect failed, continuing without message bus", zap.Error(err))
		nc = nil
	} else {
		defer nc.Close()
		if js, err := nc.JetStream(); err == nil {
			events = analytics.New(js, log)
		} else {
			log.Warn("jetstream unavailable", zap.Error(err))
		}
	}

	identitySvc := &identity.Service{
		Store:     identity.NewPostgresStore(pool),
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.AccessTokenTTL,
		Events:    events,
	}
	progressSvc := &progress.Service{
		Store:  progress.NewPostgresStore(pool),
		Events: events,
	}
	gamesSvc := &games.Service{
		Store:  games.NewPostgresStore(pool),
		Tokens: token.Random{},
		Events: events,
	}
	teacherSvc := &teacher.Service{
		Roster: identitySvc.Store,
		Views:  progressSvc.Store,
		Games:  gamesSvc.Store,
		Cache:  teacher.NewCache(rdb, cfg.StatsCacheTTL),
		Logger: log,
	}

	handler := httpapi.NewRouter(httpapi.Deps{
		Identity: identitySvc,
		Progress: progressSvc,
		Games:    gamesSvc,
		Teacher:  teacherSvc,
		Verifier: auth.JWTVerifier{Secret: cfg.Auth.JWTSecret},
		Logger:   log,
		ReadyFunc: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(pingCtx)
		},
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Router: handler})
	runner := run.New(log)

	code := runner.WithSignals(func(ctx context.Context) error {
		if nc != nil {
			dedup, err := idempotency.NewStore(rdb, pool, 24*time.Hour, false)
			if err != nil {
				return err
			}
			consumer := &worker.HeartbeatConsumer{
				Progress: progressSvc,
				Dedup:    dedup,
				Logger:   log,
			}
			if err := consumer.Start(ctx, nc); err != nil {
				log.Warn("heartbeat consumer start failed", zap.Error(err))
			}
		}
		return srv.Start(log)
	})

	runner.Graceful(srv.Shutdown)
	run.Exit(code)
}
