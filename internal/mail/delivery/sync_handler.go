package delivery

import (
	"errors"
	"net/http"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/dto"
	"mailsync-backend/internal/mail/usecase"

	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	syncUsecase    usecase.SyncUsecase
	messageUsecase usecase.MessageUsecase
}

func NewSyncHandler(syncUsecase usecase.SyncUsecase, messageUsecase usecase.MessageUsecase) *SyncHandler {
	return &SyncHandler{
		syncUsecase:    syncUsecase,
		messageUsecase: messageUsecase,
	}
}

func (h *SyncHandler) GetProviders(c *gin.Context) {
	providers, err := h.syncUsecase.Providers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.ProvidersResponse{Providers: providers})
}

func (h *SyncHandler) SyncProvider(c *gin.Context) {
	report, err := h.syncUsecase.RunCycle(c.Request.Context(), c.Param("provider"))
	switch {
	case errors.Is(err, domain.ErrProviderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "provider not found"})
	case errors.Is(err, domain.ErrResubscribeRequired):
		c.JSON(http.StatusConflict, report)
	case err != nil:
		if report == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, report)
	default:
		c.JSON(http.StatusOK, report)
	}
}

func (h *SyncHandler) SyncAll(c *gin.Context) {
	c.JSON(http.StatusOK, dto.SyncAllResponse{Reports: h.syncUsecase.RunAll(c.Request.Context())})
}

func (h *SyncHandler) Sweep(c *gin.Context) {
	result, err := h.syncUsecase.Sweep(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *SyncHandler) Resubscribe(c *gin.Context) {
	// The body is optional; it only matters for providers without a watch
	var req dto.ResubscribeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	state, err := h.syncUsecase.Resubscribe(c.Request.Context(), c.Param("name"), domain.Cursor{Token: req.Cursor})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *SyncHandler) GetMessage(c *gin.Context) {
	msg, err := h.messageUsecase.GetMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, msg)
}

func (h *SyncHandler) GetThreadMessages(c *gin.Context) {
	thread, msgs, err := h.messageUsecase.GetThread(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.ThreadResponse{Thread: thread, Messages: msgs})
}

func (h *SyncHandler) UpdateTags(c *gin.Context) {
	var req dto.UpdateTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	tags, err := h.messageUsecase.UpdateTags(c.Request.Context(), id, req.Add, req.Remove)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.TagsResponse{ID: id, Tags: tags})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrNotFound), errors.Is(err, domain.ErrProviderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCredentialsRequired), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusFailedDependency
	default:
		return http.StatusInternalServerError
	}
}
