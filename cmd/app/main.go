package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swapit/internal/bot"
	"swapit/internal/broadcast"
	"swapit/internal/config"
	"swapit/internal/db"
	httpServer "swapit/internal/http"
	"swapit/internal/http/handlers"
	"swapit/internal/http/middleware"
	"swapit/internal/logger"
	"swapit/internal/repository"
	"swapit/internal/service"
	"swapit/internal/store"
	"swapit/internal/ws"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := ws.NewHub()
	checks := map[string]handlers.Pinger{}

	var (
		sessions store.SessionStore
		gateway  broadcast.Gateway
		rdb      *redis.Client
	)
	if cfg.RedisAddr != "" {
		var err error
		rdb, err = db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		}
		defer rdb.Close()

		redisStore := store.NewRedisStore(rdb, store.DefaultPrefix, cfg.SessionTTL)
		redisGateway := broadcast.NewRedisGateway(rdb, store.DefaultPrefix)
		sessions, gateway = redisStore, redisGateway
		checks["redis"] = redisStore

		ready := make(chan struct{})
		go func() {
			if err := redisGateway.Relay(ctx, hub, ready); err != nil && ctx.Err() == nil {
				logger.Fatal("event relay stopped", "error", err)
			}
		}()
		<-ready
		middleware.InitRedisRateLimiter(rdb)
	} else {
		logger.Warn("REDIS_ADDR not set, sessions live in this process only")
		memStore := store.NewMemoryStore()
		sessions, gateway = memStore, broadcast.NewLocalGateway(hub)
		checks["store"] = memStore
	}

	sessionCfg := service.SessionConfig{
		Defaults: cfg.SessionDefaults,
		AdminKey: cfg.AdminKey,
	}
	var results handlers.ResultReader
	if cfg.DatabaseURL != "" {
		pool := db.Connect(cfg.DatabaseURL)
		defer pool.Close()
		repo := repository.NewResultRepository(pool)
		sessionCfg.Archive = repo
		results = repo
		checks["database"] = repo
	}

	svc := service.NewSessionService(sessions, gateway, sessionCfg)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS for a frontend served from another origin
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Key")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	httpServer.RegisterRoutes(r, cfg, httpServer.Deps{
		Sessions: svc,
		Hub:      hub,
		Results:  results,
		Checks:   checks,
		Version:  version,
	})

	var adminBot *bot.AdminBot
	if cfg.AdminBotToken != "" {
		if len(cfg.AdminTelegramIDs) == 0 {
			logger.Warn("ADMIN_BOT_TOKEN set without ADMIN_TELEGRAM_IDS, bot will ignore everyone")
		}
		b, err := bot.NewAdminBot(cfg.AdminBotToken, svc, cfg.AdminKey, cfg.AdminTelegramIDs)
		if err != nil {
			logger.Error("admin bot disabled", "error", err)
		} else {
			adminBot = b
			go adminBot.Start()
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if adminBot != nil {
		adminBot.Stop()
	}
	hub.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	stop()

	logger.Info("server exited")
}
