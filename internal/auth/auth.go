// Package auth verifies bearer tokens minted by the identity service and
// carries the authenticated member through the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/httpx"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Claims are the token claims the service relies on. Subject is the member id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the caller of a request.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// Tokens signs and verifies HS256 tokens with a shared secret.
type Tokens struct {
	secret []byte
	issuer string
	clock  clockwork.Clock
}

func NewTokens(secret, issuer string, clock clockwork.Clock) (*Tokens, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tokens{secret: []byte(secret), issuer: issuer, clock: clock}, nil
}

// Issue mints a token for userID. Used by the admin CLI and tests; members get
// their tokens from the identity service.
func (t *Tokens) Issue(userID, role string, ttl time.Duration) (string, error) {
	now := t.clock.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify parses raw and returns the principal it names.
func (t *Tokens) Verify(raw string) (Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("verify token: %w", err)
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("verify token: missing subject")
	}
	role := claims.Role
	if role == "" {
		role = RoleMember
	}
	return Principal{UserID: claims.Subject, Role: role}, nil
}

// Middleware rejects requests without a valid bearer token.
func Middleware(t *Tokens, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
				httpx.WriteError(w, logger, r, apperr.ErrUnauthorized)
				return
			}
			p, err := t.Verify(strings.TrimSpace(h[7:]))
			if err != nil {
				logger.Debugw("token rejected", "path", r.URL.Path, "err", err)
				httpx.WriteError(w, logger, r, apperr.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAdmin must run after Middleware.
func RequireAdmin(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				httpx.WriteError(w, logger, r, apperr.ErrUnauthorized)
				return
			}
			if !p.IsAdmin() {
				httpx.WriteError(w, logger, r, apperr.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserID returns the authenticated member id, or "" outside Middleware.
func UserID(ctx context.Context) string {
	p, _ := FromContext(ctx)
	return p.UserID
}
