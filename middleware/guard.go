package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// Validator checks access tokens. *goIdentity.Engine satisfies it.
type Validator interface {
	ValidateAccessToken(ctx context.Context, token string) (*goIdentity.AuthResult, error)
}

type authResultContextKey struct{}

// AuthResultFromContext returns the validated token stored by Guard.
func AuthResultFromContext(ctx context.Context) (*goIdentity.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*goIdentity.AuthResult)
	return res, ok
}

// Guard rejects requests without a valid bearer access token with 401 and
// stores the validated result in the request context otherwise.
func Guard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", goIdentity.TokenType)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := v.ValidateAccessToken(r.Context(), token)
			if errors.Is(err, goIdentity.ErrEngineNotReady) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			if err != nil {
				w.Header().Set("WWW-Authenticate", goIdentity.TokenType+` error="invalid_token"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope must run behind Guard. It answers 403 unless the token's
// space-separated scope contains scope.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			for _, s := range strings.Fields(res.Scope) {
				if s == scope {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
