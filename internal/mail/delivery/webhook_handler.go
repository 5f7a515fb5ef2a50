package delivery

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/dto"
	"mailsync-backend/internal/mail/usecase"
	"mailsync-backend/pkg/gmail"
	"mailsync-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

const maxPushBody = 64 << 10

// WebhookHandler receives Gmail Pub/Sub push deliveries
type WebhookHandler struct {
	syncUsecase usecase.SyncUsecase
	token       string
}

func NewWebhookHandler(syncUsecase usecase.SyncUsecase, verificationToken string) *WebhookHandler {
	return &WebhookHandler{syncUsecase: syncUsecase, token: verificationToken}
}

// GmailPush acknowledges anything that redelivery cannot fix and answers 500
// only when the push could not be recorded, so Pub/Sub retries it.
func (h *WebhookHandler) GmailPush(c *gin.Context) {
	log := logger.WithComponent("Webhook")

	if h.token != "" && subtle.ConstantTimeCompare([]byte(c.Query("token")), []byte(h.token)) != 1 {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid verification token"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPushBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	n, err := gmail.ParsePushEnvelope(body)
	if err != nil {
		log.WithError(err).Warn("Dropping undecodable push")
		c.JSON(http.StatusOK, dto.PushResponse{Status: "ignored"})
		return
	}

	pushed := domain.Cursor{Token: strconv.FormatUint(n.HistoryID, 10), Position: int64(n.HistoryID)}
	out, err := h.syncUsecase.HandlePush(c.Request.Context(), n.EmailAddress, pushed)
	switch {
	case errors.Is(err, domain.ErrProviderNotFound):
		log.WithField("account", n.EmailAddress).Warn("Dropping push for unknown account")
		c.JSON(http.StatusOK, dto.PushResponse{Status: "ignored"})
		return
	case err != nil:
		log.WithError(err).Error("Failed to record push")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record push"})
		return
	}

	status := "queued"
	if out.Duplicate {
		status = "duplicate"
	} else if !out.Queued {
		status = "deferred"
	}
	c.JSON(http.StatusOK, dto.PushResponse{Status: status})
}
