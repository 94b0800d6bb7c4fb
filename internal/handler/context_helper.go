package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/slotwise/booking-api/internal/middleware"
	"github.com/slotwise/booking-api/internal/models"
)

// claimsFromContext extracts the identity claims stored by the JWT middleware.
func claimsFromContext(c *gin.Context) (*models.IdentityClaims, bool) {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.IdentityClaims)
	return claims, ok
}
