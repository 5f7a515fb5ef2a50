package api

import (
	"net/http"
	"time"

	authUsecase "mailsync-backend/internal/auth/usecase"
	mailDelivery "mailsync-backend/internal/mail/delivery"
	mailUsecase "mailsync-backend/internal/mail/usecase"
	"mailsync-backend/pkg/config"
	"mailsync-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase    authUsecase.AuthUsecase
	syncHandler    *mailDelivery.SyncHandler
	webhookHandler *mailDelivery.WebhookHandler
	config         *config.Config
}

func NewHandler(authUc authUsecase.AuthUsecase, syncUc mailUsecase.SyncUsecase, messageUc mailUsecase.MessageUsecase, cfg *config.Config) *Handler {
	return &Handler{
		authUsecase:    authUc,
		syncHandler:    mailDelivery.NewSyncHandler(syncUc, messageUc),
		webhookHandler: mailDelivery.NewWebhookHandler(syncUc, cfg.PushVerificationToken),
		config:         cfg,
	}
}

// Router builds the gin engine with middleware and routes.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.syncHandler, h.webhookHandler)
	return r
}

// Server wraps the router in an http.Server so main can shut it down gracefully.
func (h *Handler) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithComponent("HTTP").
			WithField("method", c.Request.Method).
			WithField("path", c.FullPath()).
			WithField("status", c.Writer.Status()).
			WithField("duration_ms", time.Since(start).Milliseconds())
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request failed")
			return
		}
		entry.Debug("Request served")
	}
}
