package model

import "github.com/golang-jwt/jwt/v5"

// UserClaims are JWT claims carried by every authenticated connection
type UserClaims struct {
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenResponse is returned when a token is minted
type TokenResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	ExpiresAt int64  `json:"expiresAt"`
}
