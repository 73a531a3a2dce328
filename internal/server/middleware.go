package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Aahiro/deerhacks/internal/identity"
)

type contextKey int

const userProfileKey contextKey = iota

// requireAuth verifies the Bearer token on every request and stores the
// caller's user profile in the request context for handlers to read via
// userProfileFromContext. An absent token runs the request anonymously
// with an empty profile; a present-but-invalid token maps to 401. The
// pipeline itself never hard-requires auth.
func requireAuth(verifier *identity.Verifier, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, identity.ErrUnauthorized) {
					log.Debug().Err(err).Msg("rejected unauthenticated request")
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), userProfileKey, claims.UserProfile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func userProfileFromContext(ctx context.Context) map[string]any {
	profile, _ := ctx.Value(userProfileKey).(map[string]any)
	return profile
}

// logRequest is a thin access-log middleware: one structured line per
// request, no per-field verbosity.
func logRequest(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
			next.ServeHTTP(w, r)
		})
	}
}
