// Package role decides whether an identity acts as a cook or a customer.
package role

import (
	"context"
	"log/slog"

	"myhomeneeds/identity"
	"myhomeneeds/models"
	"myhomeneeds/store"
)

// Resolver maps an identity to a role with one point lookup of the cook
// profile keyed by the identity's user id.
type Resolver struct {
	store  store.Store
	logger *slog.Logger
}

func NewResolver(st store.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: st, logger: logger}
}

// Resolve never fails the caller: when the lookup errors it returns
// RoleCustomer together with the error so the caller can surface it.
func (r *Resolver) Resolve(ctx context.Context, id *models.Identity) (models.Role, error) {
	if id == nil || id.UserID == "" {
		return models.RoleAnonymous, nil
	}
	var profiles []models.Profile
	err := r.store.Query(ctx, store.Query{
		Collection: store.Taskers,
		Filters:    []store.Filter{store.Eq("userId", id.UserID)},
		Limit:      1,
	}, &profiles)
	if err != nil {
		r.logger.Error("role lookup failed, treating as customer",
			slog.String("userId", id.UserID), slog.String("error", err.Error()))
		return models.RoleCustomer, err
	}
	if len(profiles) > 0 {
		return models.RoleCook, nil
	}
	return models.RoleCustomer, nil
}

// ChangeSource is anything that announces identity changes.
type ChangeSource interface {
	OnChange(fn func(identity.Change)) func()
}

// Watcher re-resolves the role on every identity change. It keeps no
// per-user state.
type Watcher struct {
	resolver *Resolver
	onRole   func(userID string, role models.Role)
}

func NewWatcher(resolver *Resolver, onRole func(userID string, role models.Role)) *Watcher {
	return &Watcher{resolver: resolver, onRole: onRole}
}

// Attach subscribes the watcher to src. Every change is resolved afresh and
// handed to onRole; nothing is retained between changes. Call the returned
// func to detach.
func (w *Watcher) Attach(ctx context.Context, src ChangeSource) func() {
	return src.OnChange(func(c identity.Change) {
		role, _ := w.resolver.Resolve(ctx, c.Identity)
		if w.onRole != nil {
			w.onRole(c.UserID, role)
		}
	})
}
