package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"guess-reward-backend/internal/models"
)

type Claims struct {
	Principal models.Principal `json:"principal"`
	SessionID string           `json:"session_id"`
	jwt.RegisteredClaims
}

type JWTService struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTService(secret string, ttl time.Duration) *JWTService {
	if ttl <= 0 {
		ttl = TTLUserSession
	}
	return &JWTService{secret: []byte(secret), ttl: ttl}
}

func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// IssueToken signs a token for principal with a fresh session id.
func (s *JWTService) IssueToken(principal models.Principal) (string, *Claims, error) {
	if principal == models.ZeroPrincipal {
		return "", nil, ErrInvalidPrincipal
	}

	now := time.Now()
	claims := &Claims{
		Principal: principal,
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(principal),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Principal == models.ZeroPrincipal || claims.SessionID == "" {
		return nil, errors.New("token is missing principal or session")
	}
	return claims, nil
}
