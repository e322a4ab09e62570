// Package auth exposes the identity provider and role resolver over HTTP.
package auth

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"myhomeneeds/identity"
	"myhomeneeds/models"
	"myhomeneeds/role"
	"myhomeneeds/utils"
)

type Handler struct {
	Provider *identity.Provider
	Roles    *role.Resolver
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/auth/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in credentials
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	s, err := h.Provider.SignUp(r.Context(), in.Email, in.Password)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, s)
}

// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in credentials
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	s, err := h.Provider.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, s)
}

// POST /api/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	token := utils.BearerToken(r)
	if token == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "No token provided")
		return
	}
	if err := h.Provider.SignOut(r.Context(), token); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
	})
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out successfully"})
}

type roleResponse struct {
	Role     models.Role      `json:"role"`
	Identity *models.Identity `json:"identity,omitempty"`
	Degraded bool             `json:"degraded,omitempty"`
}

// GET /api/me/role. A failed profile lookup still answers "customer" but
// flags the answer as degraded.
func (h *Handler) Role(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id := utils.IdentityFromRequest(r)
	got, err := h.Roles.Resolve(r.Context(), id)
	utils.RespondWithJSON(w, http.StatusOK, roleResponse{Role: got, Identity: id, Degraded: err != nil})
}
