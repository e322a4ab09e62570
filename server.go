package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"myhomeneeds/auth"
	"myhomeneeds/cart"
	"myhomeneeds/config"
	"myhomeneeds/db"
	"myhomeneeds/identity"
	"myhomeneeds/live"
	"myhomeneeds/meals"
	"myhomeneeds/metrics"
	"myhomeneeds/middleware"
	"myhomeneeds/models"
	"myhomeneeds/orders"
	"myhomeneeds/ratelim"
	"myhomeneeds/rdx"
	"myhomeneeds/role"
	"myhomeneeds/routes"
	"myhomeneeds/store"
	"myhomeneeds/taskers"
)

// buildHandler wires services over st and returns the full middleware chain.
func buildHandler(cfg config.Config, st store.Store, sessions identity.Sessions, events orders.Publisher, m *metrics.Metrics, hub *live.Hub, carts *cart.Sessions, limiter *ratelim.RateLimiter, logger *slog.Logger) (http.Handler, *identity.Provider) {
	provider := identity.NewProvider(st, sessions, []byte(cfg.JWTSecret), cfg.TokenTTL, logger)
	resolver := role.NewResolver(st, logger)
	orderSvc := orders.NewService(st, events, m, logger)
	mealSvc := meals.NewService(st, logger)

	router := routes.New(routes.Deps{
		Auth:        middleware.Auth{Provider: provider},
		RateLimiter: limiter,
		Metrics:     m,
		Logger:      logger,
		AuthHandler: &auth.Handler{Provider: provider, Roles: resolver},
		Carts:       &cart.Handler{Sessions: carts, Meals: mealSvc, Orders: orderSvc, Logger: logger},
		Orders:      &orders.Handler{Service: orderSvc},
		OrderSvc:    orderSvc,
		Meals:       &meals.Handler{Service: mealSvc},
		Taskers:     &taskers.Handler{Service: taskers.NewService(st, logger)},
		Hub:         hub,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	return loggingMiddleware(logger, m, securityHeaders(corsHandler)), provider
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())
	database := client.Database(cfg.MongoDB)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		return err
	}

	conn, err := rdx.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer conn.Close()

	m := metrics.New()
	hub := live.NewHub(m)
	go hub.Run()

	carts := cart.NewSessions()
	limiter := ratelim.NewRateLimiter(cfg.AuthRate, cfg.AuthBurst)
	st := store.NewMongo(database, logger)

	handler, provider := buildHandler(cfg, st, rdx.SessionStore{Conn: conn}, rdx.EventBus{Conn: conn}, m, hub, carts, limiter, logger)

	watcher := role.NewWatcher(role.NewResolver(st, logger), func(userID string, r models.Role) {
		m.RoleResolved(string(r))
		logger.Debug("role resolved", slog.String("userId", userID), slog.String("role", string(r)))
	})
	detach := watcher.Attach(ctx, provider)
	defer detach()

	go sweep(ctx, time.Minute, func() {
		if n := carts.Sweep(cfg.CartIdleTTL); n > 0 {
			logger.Info("idle carts discarded", slog.Int("count", n))
		}
		limiter.Cleanup(10 * time.Minute)
	})

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}
	server.RegisterOnShutdown(func() {
		logger.Info("stopping live hub")
		hub.Stop()
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

func sweep(ctx context.Context, every time.Duration, fn func()) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
