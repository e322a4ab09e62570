package middleware

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"myhomeneeds/globals"
	"myhomeneeds/models"
	"myhomeneeds/utils"
)

// Authenticator turns an access token into an identity. An empty token
// yields a nil identity and no error.
type Authenticator interface {
	Current(ctx context.Context, token string) (*models.Identity, error)
}

// Auth holds the authenticator the route wrappers share.
type Auth struct {
	Provider Authenticator
}

// Authenticate rejects requests without a live session.
func (a Auth) Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := utils.BearerToken(r)
		if token == "" {
			utils.RespondWithError(w, http.StatusUnauthorized, "Missing token")
			return
		}
		id, err := a.Provider.Current(r.Context(), token)
		if err != nil {
			utils.RespondWithAppError(w, r, err)
			return
		}
		if id == nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next(w, r.WithContext(withIdentity(r.Context(), id, token)), ps)
	}
}

// OptionalAuth attaches the identity when the token is valid and proceeds
// anonymously otherwise.
func (a Auth) OptionalAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if token := utils.BearerToken(r); token != "" {
			if id, err := a.Provider.Current(r.Context(), token); err == nil && id != nil {
				r = r.WithContext(withIdentity(r.Context(), id, token))
			}
		}
		next(w, r, ps)
	}
}

func withIdentity(ctx context.Context, id *models.Identity, token string) context.Context {
	ctx = context.WithValue(ctx, globals.IdentityKey, id)
	return context.WithValue(ctx, globals.TokenKey, token)
}
