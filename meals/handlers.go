package meals

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"myhomeneeds/models"
	"myhomeneeds/utils"
)

type Handler struct {
	Service *Service
}

func respondList(w http.ResponseWriter, list []models.Meal) {
	if list == nil {
		list = []models.Meal{}
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// POST /api/meals
func (h *Handler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	var in Input
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	meal, err := h.Service.Create(r.Context(), id, in)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, meal)
}

// GET /api/meals?limit=50
func (h *Handler) ListAvailable(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	list, err := h.Service.ListAvailable(ctx, limit)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	respondList(w, list)
}

// GET /api/meals/mine
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	list, err := h.Service.ListByCook(r.Context(), id.UserID, false)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	respondList(w, list)
}

// GET /api/cooks/:cookid/meals
func (h *Handler) ByCook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	list, err := h.Service.ListByCook(r.Context(), ps.ByName("cookid"), true)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	respondList(w, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	meal, err := h.Service.Get(r.Context(), ps.ByName("mealid"))
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, meal)
}

// PUT /api/meals/meal/:mealid
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	var in Input
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	meal, err := h.Service.Update(r.Context(), id, ps.ByName("mealid"), in)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, meal)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	if err := h.Service.Delete(r.Context(), id, ps.ByName("mealid")); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
