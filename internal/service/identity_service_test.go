package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/booking-api/internal/models"
	"github.com/slotwise/booking-api/pkg/config"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
)

func signToken(t *testing.T, secret, subject, role, issuer string) string {
	t.Helper()
	claims := &models.IdentityClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestValidateTokenAcceptsSignedToken(t *testing.T) {
	svc := NewIdentityService(config.IdentityConfig{TokenSecret: "secret", Issuer: "identity"})

	claims, err := svc.ValidateToken(signToken(t, "secret", "customer-1", models.RoleCustomer, "identity"))
	require.NoError(t, err)
	assert.Equal(t, "customer-1", claims.Subject)
	assert.Equal(t, models.RoleCustomer, claims.Role)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := NewIdentityService(config.IdentityConfig{TokenSecret: "secret"})

	_, err := svc.ValidateToken(signToken(t, "other", "customer-1", models.RoleCustomer, ""))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsWrongIssuer(t *testing.T) {
	svc := NewIdentityService(config.IdentityConfig{TokenSecret: "secret", Issuer: "identity"})

	_, err := svc.ValidateToken(signToken(t, "secret", "customer-1", models.RoleCustomer, "someone-else"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	svc := NewIdentityService(config.IdentityConfig{TokenSecret: "secret"})

	claims := &models.IdentityClaims{
		Role: models.RoleCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "customer-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRequiresSubject(t *testing.T) {
	svc := NewIdentityService(config.IdentityConfig{TokenSecret: "secret"})

	_, err := svc.ValidateToken(signToken(t, "secret", "", models.RoleCustomer, ""))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
