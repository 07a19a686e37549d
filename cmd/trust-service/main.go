package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-trust/internal/api/handlers"
	"auction-trust/internal/config"
	"auction-trust/internal/domain"
	"auction-trust/internal/infrastructure/cache"
	"auction-trust/internal/infrastructure/leader"
	"auction-trust/internal/infrastructure/memory"
	"auction-trust/internal/infrastructure/mysql"
	"auction-trust/internal/infrastructure/redis"
	"auction-trust/internal/infrastructure/websocket"
	"auction-trust/internal/observability/metrics"
	"auction-trust/internal/services"
	"auction-trust/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "trust-service"

func main() {
	bootLog := logger.New()

	cfg, err := config.Load()
	if err != nil {
		bootLog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	base := logger.NewWithLevel(cfg.Log.Level)
	if zl, ok := base.(*logger.ZapLogger); ok {
		defer zl.Sync()
	}
	log := base.With("service", serviceName, "instance_id", cfg.Instance.ID)

	log.Info("Starting trust service", "config", cfg.GetConfigString())

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	store, closeStore, err := openStore(ctx, cfg, rdb, log)
	if err != nil {
		log.Error("Failed to open document store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	eventPublisher := redis.NewEventPublisher(rdb)
	eventSubscriber := redis.NewRedisEventSubscriber(rdb, log)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	connManager := websocket.NewConnectionManager(log)
	var eventHandlers []domain.EventHandler

	if cfg.Store.CacheTTL > 0 {
		cached := cache.NewStore(store, cfg.Store.CacheTTL, cfg.Store.CacheSize, log)
		store = cached
		// Moderation decisions made by other instances evict our cached copy.
		eventHandlers = append(eventHandlers, cached.HandleModerationEvent)
		log.Info("Document cache enabled", "ttl", cfg.Store.CacheTTL, "size", cfg.Store.CacheSize)
	}
	eventHandlers = append(eventHandlers, connManager.HandleModerationEvent)

	go func() {
		err := eventSubscriber.SubscribeToModerationEvents(bgCtx, func(event *domain.ModerationEvent) error {
			var firstErr error
			for _, handle := range eventHandlers {
				if err := handle(event); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Moderation event subscription ended", "error", err)
		}
	}()

	metrics.MustRegister(serviceName)

	// Initialize services
	blockIndex := services.NewBlockRelationIndex(store, log)
	evaluator := services.NewEligibilityEvaluator(store, blockIndex, cfg.EligibilityPolicy(), log)
	cooldowns := services.NewModerationCooldownManager(store, eventPublisher, cfg.CooldownPolicy(), log)

	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.Key, cfg.Leader.TTL)

	var sweeper *services.CooldownSweeper
	if cfg.Sweeper.Enabled {
		sweeper = services.NewCooldownSweeper(store, eventPublisher, cfg.Sweeper.Schedule, log)
		sweeper.SetLeaderElection(leaderElection, cfg.Instance.ID)
		if err := sweeper.Start(bgCtx); err != nil {
			log.Error("Failed to start cooldown sweeper", "error", err)
			os.Exit(1)
		}

		// Try to become leader
		go func() {
			for {
				became, err := leaderElection.BecomeLeader(bgCtx, cfg.Instance.ID)
				if err != nil {
					log.Error("Failed to attempt leadership", "error", err)
				} else if became {
					log.Info("Became cooldown sweeper leader", "instance_id", cfg.Instance.ID)
				}

				select {
				case <-bgCtx.Done():
					return
				case <-time.After(10 * time.Second):
				}
			}
		}()
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAccept, echo.HeaderContentType, echo.HeaderAuthorization, echo.HeaderXRequestID},
		MaxAge:       86400,
	}))

	api := e.Group("/api/v1")
	handlers.NewTrustHandler(evaluator, blockIndex, cooldowns, log).RegisterRoutes(api)
	handlers.NewWebSocketHandler(connManager, log).RegisterRoutes(api)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   serviceName,
			"store":     cfg.Store.Driver,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting trust server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down trust service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stopBackground()
	if sweeper != nil {
		if err := sweeper.Stop(); err != nil {
			log.Error("Failed to stop cooldown sweeper", "error", err)
		}
		if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
			log.Error("Failed to release leadership", "error", err)
		}
	}

	connManager.CloseAll()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Trust service stopped")
}

// openStore builds the configured document store and returns a close func for
// any resources it owns.
func openStore(ctx context.Context, cfg *config.Config, rdb *redisClient.Client, log logger.Logger) (domain.DocumentStore, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		log.Warn("Using in-memory document store; data is lost on restart")
		return memory.NewDocumentStore(), func() {}, nil

	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

		closeDB := func() {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}

		if err := db.PingContext(ctx); err != nil {
			closeDB()
			return nil, nil, fmt.Errorf("failed to ping MySQL: %w", err)
		}

		store := mysql.NewDocumentStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			closeDB()
			return nil, nil, fmt.Errorf("failed to create documents table: %w", err)
		}
		log.Info("Connected to MySQL")
		return store, closeDB, nil

	default:
		store := redis.NewDocumentStore(rdb)
		if cfg.Redis.ReindexOnStart {
			for _, collection := range []string{domain.CollectionBlocks, domain.CollectionUsers} {
				n, err := store.Reindex(ctx, collection)
				if err != nil {
					return nil, nil, fmt.Errorf("failed to reindex %s: %w", collection, err)
				}
				log.Info("Reindexed collection", "collection", collection, "documents", n)
			}
		}
		return store, func() {}, nil
	}
}
