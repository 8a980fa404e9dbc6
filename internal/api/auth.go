package api

import (
	"net/http"
	"strings"

	"github.com/spleefx/spleefx/internal/auth"
)

// requireAdmin is middleware that validates JWT and checks admin status
func (r *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		claims := r.getAuthClaims(req)
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !claims.IsAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, req)
	}
}

// getAuthClaims extracts and validates the JWT from the Authorization header,
// falling back to the token query parameter browsers use for websockets
func (r *Router) getAuthClaims(req *http.Request) *auth.Claims {
	if r.auth == nil {
		return nil
	}
	token := ""
	if authHeader := req.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	} else {
		token = req.URL.Query().Get("token")
	}
	if token == "" {
		return nil
	}

	claims, err := r.auth.ValidateToken(token)
	if err != nil {
		return nil
	}

	return claims
}
