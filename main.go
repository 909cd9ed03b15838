package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/soundmates/server/api/rest"
	"github.com/soundmates/server/api/sse"
	"github.com/soundmates/server/audit"
	"github.com/soundmates/server/cache"
	"github.com/soundmates/server/config"
	dbadapter "github.com/soundmates/server/db"
	"github.com/soundmates/server/events"
	"github.com/soundmates/server/messaging"
	mw "github.com/soundmates/server/middleware"
	"github.com/soundmates/server/model"
	"github.com/soundmates/server/scheduler"
	"github.com/soundmates/server/social"
	"go.uber.org/zap"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(nil)

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Services ----
	socialSvc := social.NewService(db, pubsub, logger)
	messagingSvc := messaging.NewService(db, pubsub, logger)
	eventsSvc := events.NewService(db, c, logger)

	// ---- Periodic Scheduler Tasks ----
	sched.AddTicker("concert_purge", cfg.Events.PurgeInterval, func() {
		purgeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if n, err := eventsSvc.PurgeOld(purgeCtx, time.Now()); err != nil {
			logger.Error("concert purge failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("concert purge done", zap.Int64("purged", n))
		}
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(cfg.Security))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	userH := apirest.NewUserHandler(db)
	socialH := apirest.NewSocialHandler(socialSvc, auditSvc, cfg.Social)
	messagingH := apirest.NewMessagingHandler(messagingSvc, socialSvc)
	settingsH := apirest.NewSettingsHandler(db)
	eventsH := apirest.NewEventsHandler(eventsSvc, cfg.Events)
	adminH := apirest.NewAdminHandler(db, eventsSvc, sched, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		usersG := api.Group("/users")
		usersG.Use(mw.Auth(cfg.Security, c))
		usersG.GET("/me", userH.GetProfile)
		usersG.PATCH("/me", userH.UpdateProfile)
		usersG.PUT("/me/music-token", userH.LinkMusicToken)
		usersG.DELETE("/me/music-token", userH.UnlinkMusicToken)
		usersG.PUT("/me/listening-vector", userH.UpsertListeningVector)
		usersG.GET("/:id", userH.GetProfile)
		usersG.GET("/:id/listening-vector", userH.GetListeningVector)

		socialG := api.Group("/social")
		socialG.Use(mw.Auth(cfg.Security, c))
		socialG.GET("/friends", socialH.ListFriends)
		socialG.DELETE("/friends/:id", socialH.Unfriend)
		socialG.POST("/requests", socialH.SendRequest)
		socialG.GET("/requests/incoming", socialH.ListIncoming)
		socialG.GET("/requests/outgoing", socialH.ListOutgoing)
		socialG.DELETE("/requests/:id", socialH.WithdrawRequest)
		socialG.POST("/requests/:id/accept", socialH.AcceptRequest)
		socialG.POST("/requests/:id/decline", socialH.DeclineRequest)
		socialG.POST("/block/:id", socialH.Block)
		socialG.DELETE("/block/:id", socialH.Unblock)
		socialG.GET("/discover", socialH.Discover)

		messagesG := api.Group("/messages")
		messagesG.Use(mw.Auth(cfg.Security, c))
		messagesG.GET("/direct/:id", messagingH.GetDirectThread)
		messagesG.GET("/threads/:id", messagingH.ListMessages)
		messagesG.POST("/threads/:id", messagingH.PostMessage)
		messagesG.DELETE("/threads/:id/:msg_id", messagingH.DeleteMessage)

		settingsG := api.Group("/settings")
		settingsG.Use(mw.Auth(cfg.Security, c))
		settingsG.GET("", settingsH.GetSettings)
		settingsG.PUT("/:name", settingsH.UpdateSetting)

		eventsG := api.Group("/events")
		eventsG.Use(mw.Auth(cfg.Security, c))
		eventsG.GET("/search", eventsH.Search)
		eventsG.GET("/recommend", eventsH.Recommend)
		eventsG.GET("/trending", eventsH.Trending)
		eventsG.GET("/:id", eventsH.Get)
		eventsG.POST("/:id/attend", eventsH.Attend)
		eventsG.DELETE("/:id/attend", eventsH.Leave)
		eventsG.GET("/:id/attendees", eventsH.Attendees)

		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/users/:id/ban", adminH.BanUser)
		adminG.POST("/concerts/purge", adminH.PurgeConcerts)
		adminG.POST("/concerts/ingest", eventsH.Ingest)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/sse", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
