package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"postvote/app/auth"
	"postvote/app/models"
)

type contextKey string

const identityKey contextKey = "identity"

// TokenVerifier checks a bearer token and names its owner.
type TokenVerifier interface {
	Verify(raw string, kind auth.Kind) (models.Identity, error)
}

// Authenticate puts the caller's identity on the request context. A request
// without an Authorization header proceeds as the anonymous identity and
// the service decides whether that is enough. A header carrying a bad or
// expired token is rejected with 401.
func Authenticate(tokens TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), models.Identity{})))
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "expected Authorization: Bearer <token>")
				return
			}

			identity, err := tokens.Verify(strings.TrimSpace(token), auth.Access)
			if err != nil {
				log.Warn("rejected token", "error", err, "ip", remoteIP(r), "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "Unauthorized", "given token not valid for any token type")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the identity set by Authenticate, or the anonymous
// identity.
func IdentityFrom(ctx context.Context) models.Identity {
	identity, _ := ctx.Value(identityKey).(models.Identity)
	return identity
}
