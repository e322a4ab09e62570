package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"myhomeneeds/apperr"
	"myhomeneeds/models"
)

// Session binds one cart to one customer browsing one cook's menu. It lives
// from Open to Close, or until swept as idle.
type Session struct {
	ID      string
	OwnerID string
	CookID  string

	mu          sync.Mutex
	cart        *Cart
	checkingOut bool
	touched     time.Time
	now         func() time.Time
}

// View is the JSON shape of a session.
type View struct {
	ID           string  `json:"id"`
	CookID       string  `json:"cookId"`
	Items        []Entry `json:"items"`
	ItemCount    int     `json:"itemCount"`
	Total        float64 `json:"total"`
	TotalDisplay string  `json:"totalDisplay"`
	CheckingOut  bool    `json:"checkingOut"`
}

// Do runs fn on the cart. It fails with Conflict while a checkout is in
// flight so nothing is added to a cart that is about to be cleared.
func (s *Session) Do(fn func(*Cart)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkingOut {
		return apperr.New(apperr.Conflict, "cart", "checkout in progress")
	}
	fn(s.cart)
	s.touched = s.now()
	return nil
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.cart.Total()
	return View{
		ID:           s.ID,
		CookID:       s.CookID,
		Items:        s.cart.Entries(),
		ItemCount:    s.cart.ItemCount(),
		Total:        total,
		TotalDisplay: FormatTotal(total),
		CheckingOut:  s.checkingOut,
	}
}

// Checkout hands a snapshot of the cart to place. Only one checkout runs at
// a time; the cart is cleared only when place succeeds.
func (s *Session) Checkout(ctx context.Context, place func(ctx context.Context, items map[string]models.OrderItem) error) error {
	s.mu.Lock()
	if s.checkingOut {
		s.mu.Unlock()
		return apperr.New(apperr.Conflict, "cart.Checkout", "checkout already in progress")
	}
	if s.cart.Len() == 0 {
		s.mu.Unlock()
		return apperr.New(apperr.Validation, "cart.Checkout", "cart is empty")
	}
	snapshot := s.cart.Snapshot()
	s.checkingOut = true
	s.mu.Unlock()

	err := place(ctx, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkingOut = false
	s.touched = s.now()
	if err == nil {
		s.cart.Clear()
	}
	return err
}

// Sessions is the registry of open carts.
type Sessions struct {
	mu   sync.Mutex
	byID map[string]*Session
	now  func() time.Time
}

func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]*Session), now: time.Now}
}

func (r *Sessions) Open(ownerID, cookID string) *Session {
	s := &Session{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		CookID:  cookID,
		cart:    New(),
		touched: r.now(),
		now:     r.now,
	}
	r.mu.Lock()
	r.byID[s.ID] = s
	r.mu.Unlock()
	return s
}

func (r *Sessions) Get(id, ownerID string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.byID[id]
	r.mu.Unlock()
	if !ok {
		return nil, apperr.New(apperr.NotFound, "cart", "cart not found")
	}
	if s.OwnerID != ownerID {
		return nil, apperr.New(apperr.PermissionDenied, "cart", "cart belongs to another user")
	}
	return s, nil
}

func (r *Sessions) Close(id, ownerID string) error {
	if _, err := r.Get(id, ownerID); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
	return nil
}

// Sweep discards sessions idle for longer than maxIdle, except those in the
// middle of a checkout.
func (r *Sessions) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.byID {
		s.mu.Lock()
		idle := !s.checkingOut && s.touched.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(r.byID, id)
			removed++
		}
	}
	return removed
}

func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
