package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/office-memo-api/internal/middleware"
	"github.com/noah-isme/office-memo-api/internal/models"
	appErrors "github.com/noah-isme/office-memo-api/pkg/errors"
	"github.com/noah-isme/office-memo-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext writes a 401 and reports false when no claims are present.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return claims.Actor(), true
}
