package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gascert/internal/certificate"
	dErrors "gascert/pkg/domain-errors"
	"gascert/pkg/platform/httputil"
)

// actorContextKey stores the authenticated actor in the request context.
type actorContextKey struct{}

// ActorFrom retrieves the authenticated actor from the context. The zero
// Actor means the request was not authenticated.
func ActorFrom(ctx context.Context) certificate.Actor {
	actor, _ := ctx.Value(actorContextKey{}).(certificate.Actor)
	return actor
}

// WithActor returns a context carrying the actor. Exported for tests that
// exercise handlers without the middleware stack.
func WithActor(ctx context.Context, actor certificate.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// Claims are the token claims this service consumes. Token issuance and
// refresh belong to the external authentication layer; this middleware only
// verifies the signature and extracts identity.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenValidator verifies a bearer token and returns its claims.
type TokenValidator interface {
	Validate(token string) (*Claims, error)
}

// HMACValidator validates tokens signed with a shared HMAC key.
type HMACValidator struct {
	key []byte
}

func NewHMACValidator(key string) *HMACValidator {
	return &HMACValidator{key: []byte(key)}
}

func (v *HMACValidator) Validate(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.key, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return &claims, nil
}

// RequireAuth extracts the bearer token, validates it, and stores the actor
// identity (id + role) in the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			claims, err := validator.Validate(strings.TrimPrefix(authHeader, bearerPrefix))
			if err != nil {
				logger.Debug("token validation failed", "error", err)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
				return
			}
			actorID, err := uuid.Parse(claims.Subject)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid subject claim"))
				return
			}
			actor := certificate.Actor{
				ID:   actorID,
				Role: certificate.Role(claims.Role),
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireAdmin gates administrative endpoints. It assumes RequireAuth ran
// earlier in the chain.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ActorFrom(r.Context()).Role != certificate.RoleAdmin {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
