package api

import (
	"context"
	"net/http"
	"strings"

	"rollcall/pkg/token"
	"rollcall/services/auth"
)

type identityKey struct{}

// IdentityFrom returns the claims attached by the auth gate.
func IdentityFrom(ctx context.Context) (token.Claims, bool) {
	claims, ok := ctx.Value(identityKey{}).(token.Claims)
	return claims, ok
}

func withIdentity(ctx context.Context, claims token.Claims) context.Context {
	return context.WithValue(ctx, identityKey{}, claims)
}

// tokenFromRequest prefers the session cookie over an Authorization header.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(tokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return ""
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.auth.Authenticate(r.Context(), tokenFromRequest(r))
		if err != nil {
			if reason := auth.RejectionReason(err); reason != "" {
				a.metrics.rejected(reason)
				a.log.Info().
					Str("reason", reason).
					Str("path", r.URL.Path).
					Err(err).
					Msg("request rejected")
				respondUnauthenticated(w)
				return
			}
			a.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), claims)))
	})
}

func (a *API) requireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := IdentityFrom(r.Context())
			if !ok {
				respondUnauthenticated(w)
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				a.log.Info().
					Int64("account_id", claims.AccountID).
					Str("role", claims.Role).
					Str("path", r.URL.Path).
					Msg("role not permitted")
				respondJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
