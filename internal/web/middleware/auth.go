package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/filterit/internal/config"
)

// Reasons handed to the APIKeyAuth reject handler.
var (
	ErrMissingAPIKey = errors.New("missing API key")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// APIKeyAuth admits requests that carry one of cfg.APIKeys, either in
// X-API-Key or as an Authorization bearer token. Anything else goes to
// reject with ErrMissingAPIKey or ErrInvalidAPIKey. It is a pass-through
// when cfg.RequireAPIKey is false.
func APIKeyAuth(cfg *config.SecurityConfig, reject func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.RequireAPIKey {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch key := presentedKey(r); {
			case key == "":
				reject(w, r, ErrMissingAPIKey)
			case !keyMatches(key, cfg.APIKeys):
				reject(w, r, ErrInvalidAPIKey)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func presentedKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// keyMatches compares key with every configured key in constant time.
func keyMatches(key string, keys []string) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return match == 1
}
