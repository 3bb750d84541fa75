package middleware

import (
	"context"
	"net/http"
	"strings"
)

// Principal is the authenticated identity the session middleware stores in
// the request context. Role is the canonical role string; handlers that
// need the full profile resolve it through the auth service.
type Principal struct {
	ID   string
	Role string
}

// Resolver turns a bearer token into a Principal. ok is false for missing,
// invalid, expired, or revoked tokens; resolution failures are treated as
// "not signed in", never as an error page.
type Resolver func(ctx context.Context, token string) (Principal, bool)

type principalKey struct{}
type tokenKey struct{}

// BearerToken extracts the bearer token from the Authorization header.
// Returns "" when the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[len("Bearer "):])
}

// Session resolves the request's bearer token into a Principal and stores
// it in the context. Requests without a valid token pass through as guests;
// route-level gates (RequireAuth, rbac.HasRole) decide what guests may do.
func Session(resolve Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if token := BearerToken(r); token != "" {
				ctx = context.WithValue(ctx, tokenKey{}, token)
				if p, ok := resolve(ctx, token); ok {
					ctx = context.WithValue(ctx, principalKey{}, p)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that did not resolve to a Principal.
// Wire Session before this middleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromCtx(r); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PrincipalFromCtx returns the resolved Principal, if any.
func PrincipalFromCtx(r *http.Request) (Principal, bool) {
	p, ok := r.Context().Value(principalKey{}).(Principal)
	return p, ok
}

// UserIDFromCtx returns the authenticated user's ID, if any.
func UserIDFromCtx(r *http.Request) (string, bool) {
	p, ok := PrincipalFromCtx(r)
	return p.ID, ok
}

// RoleFromCtx returns the authenticated user's role, if any.
func RoleFromCtx(r *http.Request) (string, bool) {
	p, ok := PrincipalFromCtx(r)
	return p.Role, ok
}

// TokenFromCtx returns the raw bearer token, if one was presented.
// Logout needs it to revoke the exact credential in hand.
func TokenFromCtx(r *http.Request) (string, bool) {
	t, ok := r.Context().Value(tokenKey{}).(string)
	return t, ok
}
