package cart

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"myhomeneeds/apperr"
	"myhomeneeds/models"
	"myhomeneeds/utils"
)

type MealLookup interface {
	Get(ctx context.Context, id string) (*models.Meal, error)
}

type OrderPlacer interface {
	Create(ctx context.Context, customer models.Identity, cookID string, items map[string]models.OrderItem) (*models.Order, error)
}

type Handler struct {
	Sessions *Sessions
	Meals    MealLookup
	Orders   OrderPlacer
	Logger   *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *Handler) session(r *http.Request, ps httprouter.Params) (*Session, models.Identity, error) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		return nil, id, err
	}
	s, err := h.Sessions.Get(ps.ByName("cartid"), id.UserID)
	return s, id, err
}

type openRequest struct {
	CookID string `json:"cookId"`
}

// POST /api/carts
func (h *Handler) Open(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	var req openRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	if req.CookID == "" {
		utils.RespondWithAppError(w, r, apperr.New(apperr.Validation, "cart.Open", "cookId is required"))
		return
	}
	s := h.Sessions.Open(id.UserID, req.CookID)
	utils.RespondWithJSON(w, http.StatusCreated, s.View())
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s, _, err := h.session(r, ps)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, s.View())
}

// DELETE /api/carts/:cartid
func (h *Handler) Close(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	if err := h.Sessions.Close(ps.ByName("cartid"), id.UserID); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addRequest struct {
	MealID string `json:"mealId"`
}

// POST /api/carts/:cartid/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s, _, err := h.session(r, ps)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	var req addRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	meal, err := h.Meals.Get(r.Context(), req.MealID)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	if meal.CookID != s.CookID {
		utils.RespondWithAppError(w, r, apperr.New(apperr.Validation, "cart.Add", "meal is from another kitchen"))
		return
	}
	if !meal.Available {
		utils.RespondWithAppError(w, r, apperr.New(apperr.Validation, "cart.Add", "meal is not available"))
		return
	}
	if err := s.Do(func(c *Cart) { c.Add(*meal) }); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, s.View())
}

// DELETE /api/carts/:cartid/items/:mealid
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s, _, err := h.session(r, ps)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	mealID := ps.ByName("mealid")
	if err := s.Do(func(c *Cart) { c.Remove(mealID) }); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, s.View())
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// PUT /api/carts/:cartid/items/:mealid
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s, _, err := h.session(r, ps)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	var req quantityRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	mealID := ps.ByName("mealid")
	if err := s.Do(func(c *Cart) { c.SetQuantity(mealID, req.Quantity) }); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, s.View())
}

// POST /api/carts/:cartid/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s, id, err := h.session(r, ps)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	var order *models.Order
	err = s.Checkout(r.Context(), func(ctx context.Context, items map[string]models.OrderItem) error {
		var err error
		order, err = h.Orders.Create(ctx, id, s.CookID, items)
		return err
	})
	if err != nil {
		h.logger().Info("checkout failed",
			slog.String("cartId", s.ID),
			slog.String("userId", id.UserID),
			slog.String("error", err.Error()))
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, order)
}
