package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredm/internal/auth"
	"github.com/vovakirdan/wiredm/internal/config"
	"github.com/vovakirdan/wiredm/internal/core"
	"github.com/vovakirdan/wiredm/internal/presence"
	"github.com/vovakirdan/wiredm/internal/store"
)

// NewServer builds the HTTP server: REST API, health check and the
// realtime endpoint, behind a CORS filter.
func NewServer(hub core.Hub, authService *auth.Service, st store.Store, reg *presence.Registry, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(hub, authService, st, reg, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler returns the routed handler without a listener, for tests and
// embedding.
func NewHandler(hub core.Hub, authService *auth.Service, st store.Store, reg *presence.Registry, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(st, reg, logger)
	messageHandlers := NewMessageHandlers(st, logger)

	authGroup := router.Group("/api/auth")
	authGroup.POST("/register", apiHandlers.Register)
	authGroup.POST("/login", apiHandlers.Login)

	api := router.Group("/api", AuthMiddleware(authService, logger))
	api.GET("/users", userHandlers.ListUsers)
	api.GET("/users/:id", userHandlers.GetUser)
	api.PATCH("/users/status", userHandlers.UpdateStatus)
	api.GET("/messages/unread/count", messageHandlers.UnreadCount)
	api.GET("/messages/:recipientId", messageHandlers.Conversation)

	ws := NewWSHandler(hub, authService, WSOptions{
		MaxMessageBytes: cfg.MaxMessageBytes,
		SendRateLimit:   cfg.SendRateLimit,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
	}, logger)
	router.GET("/ws", gin.WrapH(ws))

	return handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.CORSAllowedOrigins),
		handlers.AllowedMethods([]string{stdhttp.MethodGet, stdhttp.MethodPost, stdhttp.MethodPatch, stdhttp.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(router)
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
