package delivery

import (
	"errors"
	"net/http"
	"strings"

	"mailsync-backend/internal/auth/domain"
	"mailsync-backend/internal/auth/usecase"
	"mailsync-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AdminKey is the gin context key holding the authenticated *domain.Admin.
const AdminKey = "admin"

// AuthMiddleware admits requests carrying a valid admin bearer token.
func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	log := logger.WithComponent("Auth")

	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
			return
		}

		admin, err := authUsecase.ValidateToken(token)
		switch {
		case errors.Is(err, usecase.ErrAuthDisabled):
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin API disabled"})
			return
		case err != nil:
			log.WithField("path", c.FullPath()).WithError(err).Debug("Rejected admin token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(AdminKey, admin)
		c.Next()
	}
}

// CurrentAdmin returns the admin set by AuthMiddleware, if any.
func CurrentAdmin(c *gin.Context) (*domain.Admin, bool) {
	v, ok := c.Get(AdminKey)
	if !ok {
		return nil, false
	}
	admin, ok := v.(*domain.Admin)
	return admin, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
