package middleware

import (
	"context"
	"net/http"
	"strings"

	goPasskey "github.com/MrEthical07/goPasskey"
)

type sessionContextKey struct{}

// SessionFromContext returns the [goPasskey.SessionInfo] injected by a guard,
// if the request passed through one.
func SessionFromContext(ctx context.Context) (*goPasskey.SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey{}).(*goPasskey.SessionInfo)
	return info, ok
}

// Guard returns middleware that admits any request carrying a live session
// token, including sessions still pending a second factor. Handlers that
// need the elevated trust level use [RequireFullyVerified] instead.
func Guard(engine *goPasskey.Engine) func(http.Handler) http.Handler {
	return guard(engine, false)
}

// RequireFullyVerified returns middleware that admits only sessions whose
// factor policy is fully satisfied.
func RequireFullyVerified(engine *goPasskey.Engine) func(http.Handler) http.Handler {
	return guard(engine, true)
}

func guard(engine *goPasskey.Engine, requireFull bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			info, err := engine.ValidateSession(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if requireFull && !info.FullyVerified {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
