package model

import "github.com/golang-jwt/jwt/v5"

// UserClaims is the JWT payload for an authenticated user
type UserClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}
