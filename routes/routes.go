package routes

import (
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"myhomeneeds/auth"
	"myhomeneeds/cart"
	"myhomeneeds/live"
	"myhomeneeds/meals"
	"myhomeneeds/metrics"
	"myhomeneeds/middleware"
	"myhomeneeds/orders"
	"myhomeneeds/ratelim"
	"myhomeneeds/taskers"
)

// Deps carries everything the route groups need.
type Deps struct {
	Auth        middleware.Auth
	RateLimiter *ratelim.RateLimiter
	Metrics     *metrics.Metrics
	Logger      *slog.Logger

	AuthHandler *auth.Handler
	Carts       *cart.Handler
	Orders      *orders.Handler
	OrderSvc    *orders.Service
	Meals       *meals.Handler
	Taskers     *taskers.Handler
	Hub         *live.Hub
}

func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Write([]byte("200"))
}

func AddAuthRoutes(router *httprouter.Router, d Deps) {
	router.POST("/api/auth/signup", d.RateLimiter.Limit(d.AuthHandler.Signup))
	router.POST("/api/auth/login", d.RateLimiter.Limit(d.AuthHandler.Login))
	router.POST("/api/auth/logout", d.Auth.Authenticate(d.AuthHandler.Logout))
	router.GET("/api/me/role", d.Auth.OptionalAuth(d.AuthHandler.Role))
}

func AddTaskerRoutes(router *httprouter.Router, d Deps) {
	router.POST("/api/taskers", d.Auth.Authenticate(d.Taskers.Register))
	router.GET("/api/taskers/me", d.Auth.Authenticate(d.Taskers.Me))
	router.PUT("/api/taskers/me", d.Auth.Authenticate(d.Taskers.Update))
	router.GET("/api/cooks", d.Taskers.Browse)
	router.GET("/api/cooks/:cookid", d.Taskers.Cook)
	router.GET("/api/cooks/:cookid/meals", d.Meals.ByCook)
}

func AddMealRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/meals", d.Meals.ListAvailable)
	router.POST("/api/meals", d.Auth.Authenticate(d.Meals.Create))
	router.GET("/api/meals/mine", d.Auth.Authenticate(d.Meals.Mine))
	router.GET("/api/meals/meal/:mealid", d.Meals.Get)
	router.PUT("/api/meals/meal/:mealid", d.Auth.Authenticate(d.Meals.Update))
	router.DELETE("/api/meals/meal/:mealid", d.Auth.Authenticate(d.Meals.Delete))
}

func AddCartRoutes(router *httprouter.Router, d Deps) {
	router.POST("/api/carts", d.Auth.Authenticate(d.Carts.Open))
	router.GET("/api/carts/:cartid", d.Auth.Authenticate(d.Carts.Show))
	router.DELETE("/api/carts/:cartid", d.Auth.Authenticate(d.Carts.Close))
	router.POST("/api/carts/:cartid/items", d.Auth.Authenticate(d.Carts.AddItem))
	router.PUT("/api/carts/:cartid/items/:mealid", d.Auth.Authenticate(d.Carts.SetQuantity))
	router.DELETE("/api/carts/:cartid/items/:mealid", d.Auth.Authenticate(d.Carts.RemoveItem))
	router.POST("/api/carts/:cartid/checkout", d.Auth.Authenticate(d.Carts.Checkout))
}

func AddOrderRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/orders/mine", d.Auth.Authenticate(d.Orders.Mine))
	router.GET("/api/orders/incoming", d.Auth.Authenticate(d.Orders.Incoming))
	router.GET("/api/orders/order/:orderid", d.Auth.Authenticate(d.Orders.Get))
	router.PUT("/api/orders/order/:orderid/status", d.Auth.Authenticate(d.Orders.SetStatus))
	router.GET("/api/orders/order/:orderid/receipt", d.Auth.Authenticate(d.Orders.Receipt))
}

func AddLiveRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/live/orders/incoming", d.Auth.Authenticate(live.Serve(d.Hub, d.OrderSvc, live.IncomingQuery, d.Logger)))
	router.GET("/api/live/orders/mine", d.Auth.Authenticate(live.Serve(d.Hub, d.OrderSvc, live.MineQuery, d.Logger)))
}

// New builds the router with every route group.
func New(d Deps) *httprouter.Router {
	router := httprouter.New()
	router.GET("/health", Index)
	router.Handler(http.MethodGet, "/metrics", d.Metrics.Handler())

	AddAuthRoutes(router, d)
	AddTaskerRoutes(router, d)
	AddMealRoutes(router, d)
	AddCartRoutes(router, d)
	AddOrderRoutes(router, d)
	AddLiveRoutes(router, d)
	return router
}
