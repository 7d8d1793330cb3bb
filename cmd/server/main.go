package main

import (
	"log"
	"time"

	"plforum/internal/config"
	"plforum/internal/db"
	"plforum/internal/logging"
	"plforum/internal/middleware"
	"plforum/internal/rbac"
	"plforum/internal/router"
	"plforum/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Database
	database := db.Init(cfg.DatabaseURL)

	enforcer, err := rbac.NewEnforcer(database, logger.Named("rbac"))
	if err != nil {
		logger.Fatal("init rbac", zap.Error(err))
	}

	svc := services.New(database, services.Options{
		Clock:              services.NewClock(cfg.Location()),
		DownloadDailyLimit: cfg.DownloadDailyLimit,
		PostPointsDailyCap: cfg.PostPointsDailyCap,
		AuditRetentionDays: cfg.AuditRetentionDays,
		RBAC:               enforcer,
	}, logger)

	if err := svc.Sweeper.Start(cfg.SweepCron); err != nil {
		logger.Fatal("start sweeper", zap.Error(err))
	}
	defer svc.Sweeper.Stop()

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stop := make(chan struct{})
	defer close(stop)
	limiter.StartCleanup(10*time.Minute, stop)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("http")))

	// Setup Sessions
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: int(cfg.JWTTTL.Seconds()), HttpOnly: true})
	r.Use(sessions.Sessions("plforum_session", store))

	router.RegisterRoutes(r, router.Deps{
		DB:          database,
		Services:    svc,
		Enforcer:    enforcer,
		JWTSecret:   cfg.JWTSecret,
		JWTTTL:      cfg.JWTTTL,
		RateLimiter: limiter,
	})

	logger.Info("plforum server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
