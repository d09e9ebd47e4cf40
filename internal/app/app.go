package app

import (
	"context"
	"errors"
	"fmt"
	"heartspeak/internal/cache"
	"heartspeak/internal/config"
	"heartspeak/internal/metrics"
	"heartspeak/internal/platform/ratelimiter"
	"heartspeak/internal/repository"
	"heartspeak/internal/service"
	"heartspeak/internal/transport/rest"
	"heartspeak/internal/transport/ws"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// App holds the process-wide dependencies
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Mongo    *mongo.Client
	Redis    *redis.Client
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	CallRepo    repository.CallRepo
	EmotionRepo repository.EmotionRepo
	CallCache   cache.CallCache

	Hub      *ws.Hub
	Auth     *service.AuthService
	Calls    *service.CallService
	Signals  *service.SignalService
	Emotions *service.EmotionService
	Avatars  *service.AvatarService
}

// Connect opens and pings the session store and, when configured, Redis
func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.Storage == config.StorageMemory {
		a.CallRepo = repository.NewMemoryCallRepo()
		a.EmotionRepo = repository.NewMemoryEmotionRepo()
		logger.Warn("using in-memory session store, calls are lost on restart")
	} else {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			client.Disconnect(context.Background())
			return nil, fmt.Errorf("ping mongodb: %w", err)
		}
		logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))

		db := client.Database(cfg.MongoDatabase)
		a.Mongo = client
		a.CallRepo = repository.NewCallRepo(db)
		a.EmotionRepo = repository.NewEmotionRepo(db)
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			logger.Warn("redis unreachable, call membership is read from the session store",
				zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			a.Redis = rdb
			a.CallCache = cache.NewCallCache(rdb)
			logger.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		logger.Warn("redis not configured, call membership is read from the session store")
	}

	return a, nil
}

// Wire builds the metrics registry, hub and services on top of the stores
func (a *App) Wire() {
	cfg := a.Config

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	a.Hub = ws.NewHub(a.Logger, a.Metrics)
	a.Auth = service.NewAuthService(cfg.JWTSecret)
	a.Calls = service.NewCallService(a.CallRepo, a.CallCache, a.Hub, a.Logger, a.Metrics, service.CallServiceOptions{
		RingTimeout:     cfg.Calls.RingTimeout,
		HistoryLimit:    cfg.Calls.HistoryLimit,
		MaxHistoryLimit: cfg.Calls.MaxHistoryLimit,
	})
	a.Signals = service.NewSignalService(a.Hub, a.Calls, cfg.Relay.EnforceMembership, a.Logger, a.Metrics)

	recognizer := service.NewRecognitionClient(cfg.Recognition)
	if !cfg.Recognition.IsEnabled() {
		a.Logger.Warn("recognition service not configured, frames get the fallback result")
	}
	a.Emotions = service.NewEmotionService(a.EmotionRepo, a.Calls, recognizer, a.Hub, a.Logger, a.Metrics, service.EmotionServiceOptions{
		PersistThreshold: cfg.Emotion.PersistThreshold,
		StoreFrames:      cfg.Emotion.StoreFrames,
	})
	a.Avatars = service.NewAvatarService(recognizer, a.Hub, a.Logger)
}

// Router returns the HTTP handler for the whole API
func (a *App) Router() http.Handler {
	cfg := a.Config
	wsHandler := ws.NewHandler(ws.HandlerDeps{
		Hub:             a.Hub,
		Auth:            a.Auth,
		Calls:           a.Calls,
		Signals:         a.Signals,
		Emotions:        a.Emotions,
		Avatars:         a.Avatars,
		Frames:          ratelimiter.NewFrameThrottle(cfg.Emotion.FrameRate, cfg.Emotion.FrameBurst),
		Logger:          a.Logger,
		Metrics:         a.Metrics,
		EndOnDisconnect: cfg.Calls.EndOnDisconnect,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
	})

	return rest.NewRouter(&rest.Container{
		Config:         cfg,
		AuthService:    a.Auth,
		CallService:    a.Calls,
		EmotionService: a.Emotions,
		WSHandler:      wsHandler,
		Gatherer:       a.Registry,
		Logger:         a.Logger,
	})
}

// EnsureIndexes creates the collection indexes
func (a *App) EnsureIndexes(ctx context.Context) error {
	return errors.Join(
		a.CallRepo.EnsureIndexes(ctx),
		a.EmotionRepo.EnsureIndexes(ctx),
	)
}

// Close releases the store connections
func (a *App) Close(ctx context.Context) {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.Mongo != nil {
		if err := a.Mongo.Disconnect(ctx); err != nil {
			a.Logger.Warn("disconnect mongodb", zap.Error(err))
		}
	}
}
