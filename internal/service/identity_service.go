package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/slotwise/booking-api/internal/models"
	"github.com/slotwise/booking-api/pkg/config"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
)

// IdentityService validates bearer tokens minted by the upstream identity
// provider. This service owns no credentials and no login flow; it only
// checks the HS256 signature and extracts the caller's subject and role.
type IdentityService struct {
	config config.IdentityConfig
}

// NewIdentityService constructs IdentityService.
func NewIdentityService(cfg config.IdentityConfig) *IdentityService {
	return &IdentityService{config: cfg}
}

// ValidateToken parses and verifies a JWT, returning its claims.
func (s *IdentityService) ValidateToken(tokenString string) (*models.IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.IdentityClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if s.config.Issuer != "" && claims.Issuer != s.config.Issuer {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unexpected token issuer")
	}
	if claims.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token missing subject")
	}

	return claims, nil
}
