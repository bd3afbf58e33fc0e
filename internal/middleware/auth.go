// Package middleware provides the HTTP middleware for the escrow layer API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/pkg/logger"
)

type contextKey string

const callerKey contextKey = "caller"

// Claims carries the authenticated protocol address. Every mutating API
// operation resolves its caller from this claim.
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates bearer tokens and injects the caller address into
// the request context.
type AuthMiddleware struct {
	secret    []byte
	log       *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates the authentication middleware. Paths in skipPaths
// bypass token validation entirely.
func NewAuthMiddleware(secret []byte, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &AuthMiddleware{secret: secret, log: log, skipPaths: skip}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.unauthorized(w, r, "missing Authorization header")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.unauthorized(w, r, "invalid Authorization header format")
			return
		}

		caller, err := m.validateToken(parts[1])
		if err != nil {
			m.log.WithError(err).Warn("Token validation failed")
			m.unauthorized(w, r, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func (m *AuthMiddleware) validateToken(tokenString string) (identity.Address, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		return identity.Zero, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return identity.Zero, jwt.ErrTokenInvalidClaims
	}
	return identity.Parse(claims.Address)
}

func (m *AuthMiddleware) unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	m.log.WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
	}).Warn("Authentication failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// SignToken issues a token asserting the given address. Used by tests and the
// local development tooling.
func SignToken(secret []byte, addr identity.Address) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Address: addr.String()})
	return token.SignedString(secret)
}

// WithCaller stores the authenticated caller address on a context.
func WithCaller(ctx context.Context, addr identity.Address) context.Context {
	return context.WithValue(ctx, callerKey, addr)
}

// Caller extracts the authenticated caller address from a context. Returns
// the zero address when unauthenticated.
func Caller(ctx context.Context) identity.Address {
	if addr, ok := ctx.Value(callerKey).(identity.Address); ok {
		return addr
	}
	return identity.Zero
}
