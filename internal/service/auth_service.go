package service

import (
	"fmt"
	"heartspeak/internal/model"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService verifies and mints the bearer tokens that gate every connection
type AuthService struct {
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(secret string) *AuthService {
	return &AuthService{
		jwtSecret: []byte(secret),
		tokenTTL:  24 * time.Hour,
		now:       time.Now,
	}
}

// IssueToken creates a signed token for userID that expires after ttl
// (the default TTL when ttl is zero)
func (s *AuthService) IssueToken(userID, role string, ttl time.Duration) (*model.TokenResponse, error) {
	if userID == "" {
		return nil, badRequest("userId is required")
	}
	if ttl <= 0 {
		ttl = s.tokenTTL
	}

	now := s.now()
	expires := now.Add(ttl)
	claims := &model.UserClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &model.TokenResponse{
		Token:     tokenString,
		UserID:    userID,
		ExpiresAt: expires.Unix(),
	}, nil
}

// ValidateToken checks signature and expiry and returns the claims
func (s *AuthService) ValidateToken(tokenString string) (*model.UserClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: missing token", ErrAuthentication)
	}

	token, err := jwt.ParseWithClaims(tokenString, &model.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	claims, ok := token.Claims.(*model.UserClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrAuthentication)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token has no user", ErrAuthentication)
	}

	return claims, nil
}

// Authenticate extracts the bearer token from the Authorization header, or
// the token query parameter for browser WebSocket clients, and validates it.
func (s *AuthService) Authenticate(r *http.Request) (*model.UserClaims, error) {
	token := extractBearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return s.ValidateToken(token)
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
