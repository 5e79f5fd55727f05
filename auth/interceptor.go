package auth

import (
	"net/http"
	"strings"
)

const tokenQueryParam = "token"

// TokenFromRequest extracts the bearer token of a connection attempt.
// Browsers cannot set headers on a WebSocket upgrade, so the query parameter
// is checked first and the Authorization header second.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get(tokenQueryParam); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	// Expecting the standard "Bearer <token>" format
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
