package orders

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"myhomeneeds/models"
	"myhomeneeds/utils"
)

type Handler struct {
	Service *Service
}

// GET /api/orders/mine
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	list, err := h.Service.ListForCustomer(r.Context(), id.UserID)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Order{}
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// GET /api/orders/incoming?status=pending
func (h *Handler) Incoming(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	status := models.OrderStatus(r.URL.Query().Get("status"))
	list, err := h.Service.ListForCook(r.Context(), id.UserID, status)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Order{}
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	order, err := h.Service.Get(r.Context(), id, ps.ByName("orderid"))
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, order)
}

type statusRequest struct {
	Status string `json:"status"`
}

// PUT /api/orders/order/:orderid/status
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	var req statusRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	to, err := ParseStatus(req.Status)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	order, err := h.Service.Transition(r.Context(), id, ps.ByName("orderid"), to)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, order)
}

// GET /api/orders/order/:orderid/receipt
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := utils.RequireIdentity(r)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	order, err := h.Service.Get(r.Context(), id, ps.ByName("orderid"))
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	pdf, err := Receipt(order)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=order-"+order.ID+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
