package api

import (
	"net/http"

	"mailsync-backend/internal/auth/delivery"
	authUsecase "mailsync-backend/internal/auth/usecase"
	mailDelivery "mailsync-backend/internal/mail/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, syncHandler *mailDelivery.SyncHandler, webhookHandler *mailDelivery.WebhookHandler) {
	// Pub/Sub push endpoint, verified by its own token
	r.POST("/hooks/gmail", webhookHandler.GmailPush)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		admin := api.Group("")
		admin.Use(delivery.AuthMiddleware(authUsecase))
		{
			admin.GET("/providers", syncHandler.GetProviders)
			admin.POST("/providers/:name/watch", syncHandler.Resubscribe)
			admin.POST("/sync", syncHandler.SyncAll)
			admin.POST("/sync/:provider", syncHandler.SyncProvider)
			admin.POST("/notifications/sweep", syncHandler.Sweep)
		}

		messages := api.Group("/messages")
		messages.Use(delivery.AuthMiddleware(authUsecase))
		{
			messages.GET("/:id", syncHandler.GetMessage)
			messages.PATCH("/:id/tags", syncHandler.UpdateTags)
		}

		threads := api.Group("/threads")
		threads.Use(delivery.AuthMiddleware(authUsecase))
		{
			threads.GET("/:id/messages", syncHandler.GetThreadMessages)
		}
	}
}
