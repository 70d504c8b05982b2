package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"invoicedesk/internal/apperror"
	"invoicedesk/internal/config"
	"invoicedesk/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access token payload.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies access tokens with a single HS256 secret.
type TokenManager struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

func NewTokenManager(cfg config.JWTConfig) *TokenManager {
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenManager{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		accessTTL: ttl,
		now:       time.Now,
	}
}

// Issue returns a signed access token for user and its expiry.
func (m *TokenManager) Issue(user *model.User) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.accessTTL)
	claims := Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies tokenString and returns the principal it was issued to.
func (m *TokenManager) Parse(tokenString string) (model.Principal, error) {
	if tokenString == "" {
		return model.Principal{}, apperror.ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %w", apperror.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Username == "" || claims.Role == "" {
		return model.Principal{}, apperror.ErrInvalidToken
	}
	return model.Principal{Username: claims.Username, Role: claims.Role}, nil
}

// NewRefreshToken returns an opaque random token for the refresh_tokens table.
func NewRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
