package service

import (
	"crypto/subtle"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "ouralink/internal/errors"
)

const adminSubject = "admin"

// AuthService exchanges the configured operator API key for a short-lived
// bearer token that guards the admin endpoints.
type AuthService struct {
	apiKey    []byte
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(apiKey, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		apiKey:    []byte(apiKey),
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *AuthService) Exchange(apiKey string) (*AuthResult, *apperrors.APIError) {
	if len(s.apiKey) == 0 {
		return nil, apperrors.Forbidden("admin API access is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(apiKey), s.apiKey) != 1 {
		return nil, apperrors.Unauthorized("invalid api key")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, apperrors.Internal("failed to sign token")
	}

	return &AuthResult{Token: signed, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) ParseToken(tokenString string) (string, *apperrors.APIError) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", apperrors.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", apperrors.Unauthorized("invalid token")
	}

	if claims.Subject != adminSubject {
		return "", apperrors.Unauthorized("invalid token subject")
	}

	return claims.Subject, nil
}
