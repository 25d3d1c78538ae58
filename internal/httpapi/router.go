package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"github.com/suPer8Hu/sentinel-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/sentinel-chat/internal/httpapi/middleware"
	"go.uber.org/zap"
)

func NewRouter(h *handlers.Handler, logger *zap.Logger) *gin.Engine {
	cfg := h.Cfg

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/ui", h.UI)

	// password gate
	r.POST("/auth/login", h.Login)

	authGroup := r.Group("/")
	authGroup.Use(middleware.Identity(middleware.IdentityOptions{
		JWTSecret:        cfg.JWTSecret,
		TokenTTL:         cfg.TokenTTL,
		AnonymousAllowed: cfg.AnonymousAllowed,
		Header:           cfg.IdentityHeader,
		PasswordRequired: cfg.AccessPasswordHash != "",
	}))
	authGroup.GET("/me", h.Me)

	// catalog
	authGroup.GET("/chat/sessions", h.ListSessions)
	authGroup.POST("/chat/sessions", h.NewChat)
	authGroup.PUT("/chat/sessions/active", h.SelectSession)
	authGroup.DELETE("/chat/sessions/:session_id", h.DeleteSession)

	// turns
	authGroup.GET("/chat/messages", h.ListMessages)
	authGroup.POST("/chat/messages", h.SendMessage)
	authGroup.POST("/chat/messages/stream", h.SendMessageStream)

	// documents
	authGroup.POST("/chat/documents", h.UploadDocuments)
	authGroup.GET("/chat/documents/:index_id", h.GetDocumentIndex)
	return r
}
