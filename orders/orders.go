// Package orders owns the order lifecycle: placing an order from a cart
// snapshot and moving it through pending, accepted, declined and completed.
package orders

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"myhomeneeds/apperr"
	"myhomeneeds/metrics"
	"myhomeneeds/models"
	"myhomeneeds/store"
)

// EventsChannel is the pub/sub channel order events are published on.
const EventsChannel = "order-events"

type Publisher interface {
	Publish(ctx context.Context, channel string, event any) error
}

type Event struct {
	Type       string             `json:"type"`
	OrderID    string             `json:"orderId"`
	CookID     string             `json:"cookId"`
	CustomerID string             `json:"customerId"`
	Status     models.OrderStatus `json:"status"`
	Previous   models.OrderStatus `json:"previous,omitempty"`
	Total      float64            `json:"total"`
	At         time.Time          `json:"at"`
}

type Service struct {
	store   store.Store
	events  Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds the service. events and m may be nil.
func NewService(st store.Store, events Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, events: events, metrics: m, logger: logger, now: time.Now}
}

func validateItems(items map[string]models.OrderItem) (map[string]models.OrderItem, float64, error) {
	if len(items) == 0 {
		return nil, 0, apperr.New(apperr.Validation, "orders.Create", "cart is empty")
	}
	frozen := make(map[string]models.OrderItem, len(items))
	var total float64
	for id, it := range items {
		if id == "" {
			return nil, 0, apperr.New(apperr.Validation, "orders.Create", "item without meal id")
		}
		if it.Quantity < 1 {
			return nil, 0, apperr.Newf(apperr.Validation, "orders.Create", "quantity for %s must be at least 1", id)
		}
		if it.Price <= 0 || math.IsNaN(it.Price) || math.IsInf(it.Price, 0) {
			return nil, 0, apperr.Newf(apperr.Validation, "orders.Create", "price for %s must be a positive number", id)
		}
		it.MealID = id
		frozen[id] = it
		total += it.Price * float64(it.Quantity)
	}
	return frozen, total, nil
}

// Create places an order for customer with cookID. The total is computed
// here, once, from items and never recomputed.
func (s *Service) Create(ctx context.Context, customer models.Identity, cookID string, items map[string]models.OrderItem) (*models.Order, error) {
	if cookID == "" {
		return nil, apperr.New(apperr.Validation, "orders.Create", "cook is required")
	}
	if customer.UserID == cookID {
		return nil, apperr.New(apperr.Validation, "orders.Create", "cannot order from your own kitchen")
	}
	frozen, total, err := validateItems(items)
	if err != nil {
		return nil, err
	}

	var cooks []models.Profile
	if err := s.store.Query(ctx, store.Query{
		Collection: store.Taskers,
		Filters:    []store.Filter{store.Eq("userId", cookID)},
		Limit:      1,
	}, &cooks); err != nil {
		return nil, err
	}
	if len(cooks) == 0 {
		return nil, apperr.New(apperr.NotFound, "orders.Create", "cook not found")
	}

	now := s.now().UTC()
	order := models.Order{
		ID:            uuid.NewString(),
		CookID:        cookID,
		CustomerID:    customer.UserID,
		CustomerEmail: customer.Email,
		Items:         frozen,
		Total:         total,
		Status:        models.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.store.Create(ctx, store.Orders, order); err != nil {
		return nil, err
	}

	s.metrics.OrderCreated()
	s.logger.Info("order placed",
		slog.String("orderId", order.ID),
		slog.String("cookId", cookID),
		slog.String("customerId", customer.UserID),
		slog.Float64("total", total))
	s.publish(ctx, Event{Type: "created", OrderID: order.ID, CookID: cookID, CustomerID: customer.UserID, Status: order.Status, Total: total, At: now})
	return &order, nil
}

// Transition moves the order to status to. Only the order's cook may do so.
// Asking for the status the order already has is a no-op.
func (s *Service) Transition(ctx context.Context, actor models.Identity, orderID string, to models.OrderStatus) (*models.Order, error) {
	if _, err := ParseStatus(string(to)); err != nil {
		return nil, err
	}

	var order models.Order
	if err := s.store.Get(ctx, store.Orders, orderID, &order); err != nil {
		return nil, err
	}
	if order.CookID != actor.UserID {
		s.metrics.TransitionRejected("permission")
		return nil, apperr.New(apperr.PermissionDenied, "orders.Transition", "only the cook of this order can change its status")
	}

	noop, err := checkTransition(order.Status, to)
	if err != nil {
		s.metrics.TransitionRejected("invalid_transition")
		return nil, err
	}
	if noop {
		return &order, nil
	}

	from := order.Status
	now := s.now().UTC()
	err = s.store.Update(ctx, store.Orders, orderID,
		map[string]any{"status": to, "updatedAt": now},
		store.Eq("status", from))
	if apperr.IsKind(err, apperr.Conflict) {
		// Someone else moved the order first; re-read to see where it went.
		var latest models.Order
		if gerr := s.store.Get(ctx, store.Orders, orderID, &latest); gerr != nil {
			return nil, gerr
		}
		if latest.Status == to {
			return &latest, nil
		}
		s.metrics.TransitionRejected("conflict")
		return nil, apperr.Newf(apperr.Conflict, "orders.Transition", "order is now %s", latest.Status)
	}
	if err != nil {
		return nil, err
	}

	order.Status = to
	order.UpdatedAt = now
	s.metrics.OrderTransitioned(string(to))
	s.logger.Info("order status changed",
		slog.String("orderId", orderID),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
	s.publish(ctx, Event{Type: "status_changed", OrderID: orderID, CookID: order.CookID, CustomerID: order.CustomerID, Status: to, Previous: from, Total: order.Total, At: now})
	return &order, nil
}

// Get returns the order if actor is its customer or its cook.
func (s *Service) Get(ctx context.Context, actor models.Identity, orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.store.Get(ctx, store.Orders, orderID, &order); err != nil {
		return nil, err
	}
	if actor.UserID != order.CustomerID && actor.UserID != order.CookID {
		return nil, apperr.New(apperr.PermissionDenied, "orders.Get", "not your order")
	}
	return &order, nil
}

func CustomerQuery(customerID string) store.Query {
	return store.Query{
		Collection: store.Orders,
		Filters:    []store.Filter{store.Eq("customerId", customerID)},
		SortDesc:   "createdAt",
	}
}

// CookQuery selects a cook's orders, optionally only those in status.
func CookQuery(cookID string, status models.OrderStatus) store.Query {
	q := store.Query{
		Collection: store.Orders,
		Filters:    []store.Filter{store.Eq("cookId", cookID)},
		SortDesc:   "createdAt",
	}
	if status != "" {
		q.Filters = append(q.Filters, store.Eq("status", status))
	}
	return q
}

// ListForCustomer returns the customer's orders, newest first.
func (s *Service) ListForCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	var out []models.Order
	if err := s.store.Query(ctx, CustomerQuery(customerID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListForCook returns the cook's incoming orders, newest first.
func (s *Service) ListForCook(ctx context.Context, cookID string, status models.OrderStatus) ([]models.Order, error) {
	if status != "" {
		if _, err := ParseStatus(string(status)); err != nil {
			return nil, err
		}
	}
	var out []models.Order
	if err := s.store.Query(ctx, CookQuery(cookID, status), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update is one delivery on an order subscription. Order is nil when the
// order left the subscribed set. A Failed update carries Err and ends the
// subscription.
type Update struct {
	Kind    store.ChangeKind `json:"kind"`
	OrderID string           `json:"orderId"`
	Order   *models.Order    `json:"order,omitempty"`
	Err     error            `json:"-"`
}

// Subscribe streams q's orders to fn until ctx ends or the returned func is
// called.
func (s *Service) Subscribe(ctx context.Context, q store.Query, fn func(Update)) (store.Unsubscribe, error) {
	return s.store.Subscribe(ctx, q, func(c store.Change) {
		u := Update{Kind: c.Kind, OrderID: c.ID, Err: c.Err}
		if c.Kind != store.Removed && c.Kind != store.Failed {
			var o models.Order
			if err := c.Decode(&o); err != nil {
				s.logger.Warn("undecodable order change", slog.String("orderId", c.ID), slog.String("error", err.Error()))
				return
			}
			u.Order = &o
		}
		fn(u)
	})
}

func (s *Service) publish(ctx context.Context, ev Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, EventsChannel, ev); err != nil {
		s.logger.Warn("publish order event failed",
			slog.String("orderId", ev.OrderID),
			slog.String("type", ev.Type),
			slog.String("error", err.Error()))
	}
}
