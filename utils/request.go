package utils

import (
	"net/http"
	"strings"

	"myhomeneeds/apperr"
	"myhomeneeds/globals"
	"myhomeneeds/models"
)

// IdentityFromRequest returns the identity placed in the context by the auth
// middleware, or nil.
func IdentityFromRequest(r *http.Request) *models.Identity {
	id, _ := r.Context().Value(globals.IdentityKey).(*models.Identity)
	return id
}

// RequireIdentity is IdentityFromRequest that fails for anonymous callers.
func RequireIdentity(r *http.Request) (models.Identity, error) {
	id := IdentityFromRequest(r)
	if id == nil {
		return models.Identity{}, apperr.New(apperr.Unauthenticated, "request", "sign in required")
	}
	return *id, nil
}

// BearerToken extracts the token from the Authorization header, falling back
// to the token query parameter for websocket upgrades.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
