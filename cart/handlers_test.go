package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myhomeneeds/apperr"
	"myhomeneeds/globals"
	"myhomeneeds/models"
)

type fakeMeals map[string]models.Meal

func (f fakeMeals) Get(_ context.Context, id string) (*models.Meal, error) {
	m, ok := f[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "meals.Get", "meal not found")
	}
	return &m, nil
}

type fakeOrders struct {
	err   error
	items map[string]models.OrderItem
}

func (f *fakeOrders) Create(_ context.Context, customer models.Identity, cookID string, items map[string]models.OrderItem) (*models.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items = items
	return &models.Order{ID: "o1", CookID: cookID, CustomerID: customer.UserID, Items: items, Status: models.StatusPending}, nil
}

func newRouter(h *Handler) *httprouter.Router {
	r := httprouter.New()
	r.POST("/api/carts", h.Open)
	r.GET("/api/carts/:cartid", h.Show)
	r.DELETE("/api/carts/:cartid", h.Close)
	r.POST("/api/carts/:cartid/items", h.AddItem)
	r.DELETE("/api/carts/:cartid/items/:mealid", h.RemoveItem)
	r.PUT("/api/carts/:cartid/items/:mealid", h.SetQuantity)
	r.POST("/api/carts/:cartid/checkout", h.Checkout)
	return r
}

func do(t *testing.T, router http.Handler, userID, method, path, body string) (*httptest.ResponseRecorder, View) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		id := &models.Identity{UserID: userID}
		req = req.WithContext(context.WithValue(req.Context(), globals.IdentityKey, id))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var v View
	if rec.Code < 300 && strings.Contains(rec.Header().Get("Content-Type"), "json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &v)
	}
	return rec, v
}

func TestCartHandlersFlow(t *testing.T) {
	meals := fakeMeals{
		"m1":    {ID: "m1", CookID: "cook-1", MealName: "Dal", Price: 10, Available: true},
		"m2":    {ID: "m2", CookID: "cook-1", MealName: "Roti", Price: 3.5, Available: true},
		"other": {ID: "other", CookID: "cook-2", MealName: "Pasta", Price: 9, Available: true},
		"off":   {ID: "off", CookID: "cook-1", MealName: "Kheer", Price: 4, Available: false},
	}
	orders := &fakeOrders{}
	router := newRouter(&Handler{Sessions: NewSessions(), Meals: meals, Orders: orders})

	rec, _ := do(t, router, "", http.MethodPost, "/api/carts", `{"cookId":"cook-1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, v := do(t, router, "alice", http.MethodPost, "/api/carts", `{"cookId":"cook-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	base := "/api/carts/" + v.ID

	do(t, router, "alice", http.MethodPost, base+"/items", `{"mealId":"m1"}`)
	do(t, router, "alice", http.MethodPost, base+"/items", `{"mealId":"m1"}`)
	rec, v = do(t, router, "alice", http.MethodPost, base+"/items", `{"mealId":"m2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, v.ItemCount)
	assert.Equal(t, "23.50", v.TotalDisplay)

	rec, _ = do(t, router, "alice", http.MethodPost, base+"/items", `{"mealId":"other"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, router, "alice", http.MethodPost, base+"/items", `{"mealId":"off"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, router, "alice", http.MethodPost, base+"/items", `{"mealId":"nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, router, "bob", http.MethodGet, base, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	_, v = do(t, router, "alice", http.MethodDelete, base+"/items/m1", "")
	assert.Equal(t, 2, v.ItemCount)
	_, v = do(t, router, "alice", http.MethodPut, base+"/items/m2", `{"quantity":3}`)
	assert.Equal(t, 4, v.ItemCount)

	rec, _ = do(t, router, "alice", http.MethodPost, base+"/checkout", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 3, orders.items["m2"].Quantity)

	_, v = do(t, router, "alice", http.MethodGet, base, "")
	assert.Equal(t, 0, v.ItemCount)

	rec, _ = do(t, router, "alice", http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCheckoutFailureKeepsCart(t *testing.T) {
	meals := fakeMeals{"m1": {ID: "m1", CookID: "cook-1", MealName: "Dal", Price: 10, Available: true}}
	orders := &fakeOrders{err: apperr.New(apperr.BackendUnavailable, "store", "offline")}
	router := newRouter(&Handler{Sessions: NewSessions(), Meals: meals, Orders: orders})

	_, v := do(t, router, "alice", http.MethodPost, "/api/carts", `{"cookId":"cook-1"}`)
	base := "/api/carts/" + v.ID
	do(t, router, "alice", http.MethodPost, base+"/items", `{"mealId":"m1"}`)

	rec, _ := do(t, router, "alice", http.MethodPost, base+"/checkout", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	_, v = do(t, router, "alice", http.MethodGet, base, "")
	assert.Equal(t, 1, v.ItemCount)
}
