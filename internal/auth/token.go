// ABOUTME: JWT session token verification for authenticating API requests
// ABOUTME: Uses HS256 signing with configurable secret; claims carry user id and display name

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Session identifies the authenticated viewer of a request. The identity
// provider issues the id and display name; tether never mints user ids.
type Session struct {
	UserID string
	Name   string
}

// TokenVerifier defines the interface for session token verification
type TokenVerifier interface {
	Verify(tokenString string) (Session, error)
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify validates the token and extracts the session from the "sub" and
// "name" claims.
func (v *JWTVerifier) Verify(tokenString string) (Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, ErrExpiredToken
		}
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return Session{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Session{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	name, ok := claims["name"].(string)
	if !ok || name == "" {
		return Session{}, fmt.Errorf("%w: name", ErrMissingClaim)
	}

	return Session{UserID: sub, Name: name}, nil
}

// Generate creates a new JWT token for the given user with expiration
func (v *JWTVerifier) Generate(userID, name string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": name,
		"iat":  now.Unix(),
		"exp":  now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
