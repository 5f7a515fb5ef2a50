package usecase

import (
	"errors"
	"fmt"
	"time"

	authdomain "mailsync-backend/internal/auth/domain"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAuthDisabled is returned when no signing secret is configured.
var ErrAuthDisabled = errors.New("admin authentication is not configured")

// AuthUsecase issues and validates admin API tokens
type AuthUsecase interface {
	IssueToken(subject string, ttl time.Duration) (string, error)
	ValidateToken(tokenString string) (*authdomain.Admin, error)
}

const tokenIssuer = "mailsync"

type authUsecase struct {
	secret []byte
	now    func() time.Time
}

// NewAuthUsecase creates a new instance of AuthUsecase signing with secret (HS256)
func NewAuthUsecase(secret string) AuthUsecase {
	return &authUsecase{secret: []byte(secret), now: time.Now}
}

func (u *authUsecase) IssueToken(subject string, ttl time.Duration) (string, error) {
	if len(u.secret) == 0 {
		return "", ErrAuthDisabled
	}
	if subject == "" {
		subject = "admin"
	}
	now := u.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(u.secret)
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.Admin, error) {
	if len(u.secret) == 0 {
		return nil, ErrAuthDisabled
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return u.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(u.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	admin := &authdomain.Admin{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		admin.ExpiresAt = claims.ExpiresAt.Time
	}
	return admin, nil
}
