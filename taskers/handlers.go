package taskers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"myhomeneeds/utils"
)

type Handler struct {
	Service *Service
}

// POST /api/taskers
func (h *Handler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	var f Fields
	if err := utils.DecodeJSON(r, &f); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	p, err := h.Service.Register(r.Context(), id, f)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, p)
}

// GET /api/taskers/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	p, err := h.Service.GetByUser(r.Context(), id.UserID)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

// PUT /api/taskers/me
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	var f Fields
	if err := utils.DecodeJSON(r, &f); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	p, err := h.Service.Update(r.Context(), id, f)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

// GET /api/cooks/:cookid
func (h *Handler) Cook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, err := h.Service.GetByUser(r.Context(), ps.ByName("cookid"))
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

// GET /api/cooks
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	cooks, err := h.Service.BrowseCooks(r.Context())
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, cooks)
}
