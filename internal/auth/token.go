package auth

import (
	"fmt"
	"strconv"
	"time"

	"api_pos/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// Claims represents the typed JWT issued to clients.
type Claims struct {
	UserID uint   `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// Principal returns the identity carried by the claims.
func (c *Claims) Principal() Principal {
	return Principal{UserID: c.UserID, Email: c.Email, Name: c.Name, Role: c.Role}
}

// Tokens mints and verifies HS256 access tokens.
type Tokens struct {
	cfg config.JWTConfig
	now func() time.Time
}

// NewTokens creates a token issuer for cfg.
func NewTokens(cfg config.JWTConfig) *Tokens {
	return &Tokens{cfg: cfg, now: time.Now}
}

// Mint issues a signed token for user using the configured TTL.
func (t *Tokens) Mint(user User) (string, error) {
	if t.cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if t.cfg.Expiration <= 0 {
		return "", fmt.Errorf("jwt expiration must be positive")
	}
	if !user.Role.IsValid() {
		return "", fmt.Errorf("invalid role %q", user.Role)
	}

	now := t.now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.Expiration)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(t.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// Parse validates the token string and returns its claims.
func (t *Tokens) Parse(tokenString string) (*Claims, error) {
	if t.cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(t.cfg.Secret), nil
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}
	if claims.UserID == 0 || !claims.Role.IsValid() {
		return nil, fmt.Errorf("token carries no valid principal")
	}
	return claims, nil
}
