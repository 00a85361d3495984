package router

import (
	"net/http"

	"carechat/config"
	"carechat/internal/handler"
	"carechat/internal/middleware"
	"carechat/internal/presence"
	"carechat/internal/repository"
	"carechat/internal/service"
	"carechat/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Setup wires the stores, services and routes. The hub is returned so the
// caller can close live connections on shutdown.
func Setup(cfg *config.Config, db *gorm.DB, log zerolog.Logger) (http.Handler, *ws.Hub) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics())

	// Repositories
	messageRepo := repository.NewMessageRepository(db)
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	registry := presence.NewRegistry()
	hub := ws.NewHub(log)

	// Services
	unread := service.NewUnreadCounter(messageRepo, registry, hub, log)
	delivery := service.NewDeliveryService(messageRepo, registry, hub, unread, log)
	reads := service.NewReadStateService(messageRepo, registry, hub, unread, log)
	presenceSvc := service.NewPresenceService(userRepo, sessionRepo, registry, hub, delivery, log)
	dispatcher := handler.NewEventDispatcher(presenceSvc, delivery, reads, hub, log)

	// Handlers
	healthHandler := handler.NewHealthHandler(registry, hub)
	messageHandler := handler.NewMessageHandler(delivery, reads, unread, cfg.Presence.RecentMessagesLimit)
	userHandler := handler.NewUserHandler(presenceSvc)

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)))
	{
		messages := api.Group("/messages")
		{
			messages.GET("", messageHandler.List)
			messages.GET("/unread/:userId", messageHandler.Unread)
			messages.GET("/unread-counts/:userId", messageHandler.UnreadCounts)
			messages.POST("/mark-read", messageHandler.MarkRead)
			messages.GET("/queue/:userId", messageHandler.Queue)
			messages.DELETE("/queue/:userId", messageHandler.ClearQueue)
		}
		users := api.Group("/users")
		{
			users.GET("/online", userHandler.Online)
			users.GET("/:userId/sessions", userHandler.Sessions)
		}
	}

	r.GET("/ws", handler.UpgradeChatWS(&cfg.Presence, ws.NewUpgrader(cfg.CORS.AllowedOrigins), hub, dispatcher, log))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(r), hub
}
