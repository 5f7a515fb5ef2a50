package usecase

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	uc := NewAuthUsecase("s3cret")

	token, err := uc.IssueToken("ops", time.Hour)
	require.NoError(t, err)

	admin, err := uc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", admin.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), admin.ExpiresAt, 5*time.Second)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	uc := NewAuthUsecase("s3cret")
	token, err := uc.IssueToken("ops", -time.Minute)
	require.NoError(t, err)

	_, err = uc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewAuthUsecase("other").IssueToken("ops", time.Hour)
	require.NoError(t, err)

	_, err = NewAuthUsecase("s3cret").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsTokenWithoutExpiry(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: tokenIssuer}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = NewAuthUsecase("s3cret").ValidateToken(token)
	assert.Error(t, err)
}

func TestDisabledWithoutSecret(t *testing.T) {
	uc := NewAuthUsecase("")
	_, err := uc.IssueToken("ops", time.Hour)
	assert.ErrorIs(t, err, ErrAuthDisabled)
	_, err = uc.ValidateToken("anything")
	assert.ErrorIs(t, err, ErrAuthDisabled)
}
