// Package auth implements admin session tokens, password hashing and the
// TOTP second factor.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ybmbakes/bakery-backend/internal/apperrors"
)

// SessionTTL is the admin session lifetime; the cookie max-age matches.
const SessionTTL = 7 * 24 * time.Hour

// TokenService issues and validates admin session JWTs.
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewTokenService returns a TokenService signing with HS256.
func NewTokenService(secret string) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must be provided")
	}
	return &TokenService{
		secret:  []byte(secret),
		ttl:     SessionTTL,
		nowFunc: time.Now,
	}, nil
}

// Issue creates a session token for an admin.
func (s *TokenService) Issue(adminID, email, role string) (string, error) {
	now := s.nowFunc()
	claims := jwt.MapClaims{
		"sub":   adminID,
		"email": email,
		"role":  role,
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Session is the parsed identity carried by a valid token.
type Session struct {
	AdminID string
	Email   string
	Role    string
}

// Validate parses a token string and returns the session it carries.
func (s *TokenService) Validate(tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.nowFunc))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", apperrors.ErrUnauthenticated)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrUnauthenticated
	}
	sess := &Session{}
	if sub, ok := claims["sub"].(string); ok {
		sess.AdminID = sub
	}
	if email, ok := claims["email"].(string); ok {
		sess.Email = email
	}
	if role, ok := claims["role"].(string); ok {
		sess.Role = role
	}
	if sess.AdminID == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	return sess, nil
}
