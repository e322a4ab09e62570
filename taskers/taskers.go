// Package taskers manages cook profiles. An identity with a profile acts as
// a cook.
package taskers

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"myhomeneeds/apperr"
	"myhomeneeds/models"
	"myhomeneeds/store"
)

type Service struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger, now: time.Now}
}

// Fields is the editable part of a profile; nil means unchanged.
type Fields struct {
	Name        *string `json:"name"`
	KitchenName *string `json:"kitchenName"`
	Phone       *string `json:"phone"`
	Services    *string `json:"services"`
	About       *string `json:"about"`
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// GetByUser returns the profile of userID or NotFound.
func (s *Service) GetByUser(ctx context.Context, userID string) (*models.Profile, error) {
	var profiles []models.Profile
	err := s.store.Query(ctx, store.Query{
		Collection: store.Taskers,
		Filters:    []store.Filter{store.Eq("userId", userID)},
		Limit:      1,
	}, &profiles)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, apperr.New(apperr.NotFound, "taskers.GetByUser", "no cook profile")
	}
	return &profiles[0], nil
}

// Register creates the caller's cook profile. There is at most one per
// identity; the unique index on userId backs this up against races.
func (s *Service) Register(ctx context.Context, who models.Identity, f Fields) (*models.Profile, error) {
	if trimmed(f.Name) == "" || trimmed(f.Phone) == "" || trimmed(f.Services) == "" {
		return nil, apperr.New(apperr.Validation, "taskers.Register", "name, phone and services are required")
	}
	_, err := s.GetByUser(ctx, who.UserID)
	switch {
	case err == nil:
		return nil, apperr.New(apperr.Conflict, "taskers.Register", "you already have a cook profile")
	case !apperr.IsKind(err, apperr.NotFound):
		return nil, err
	}

	now := s.now().UTC()
	p := models.Profile{
		ID:          uuid.NewString(),
		UserID:      who.UserID,
		Email:       who.Email,
		Name:        trimmed(f.Name),
		KitchenName: trimmed(f.KitchenName),
		Phone:       trimmed(f.Phone),
		Services:    trimmed(f.Services),
		About:       trimmed(f.About),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.store.Create(ctx, store.Taskers, p); err != nil {
		if apperr.IsKind(err, apperr.Conflict) {
			return nil, apperr.New(apperr.Conflict, "taskers.Register", "you already have a cook profile")
		}
		return nil, err
	}
	s.logger.Info("cook registered", slog.String("userId", who.UserID), slog.String("profileId", p.ID))
	return &p, nil
}

// Update edits the caller's own profile.
func (s *Service) Update(ctx context.Context, who models.Identity, f Fields) (*models.Profile, error) {
	p, err := s.GetByUser(ctx, who.UserID)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	set := func(key string, src *string, dst *string, required bool) error {
		if src == nil {
			return nil
		}
		v := strings.TrimSpace(*src)
		if required && v == "" {
			return apperr.Newf(apperr.Validation, "taskers.Update", "%s cannot be empty", key)
		}
		*dst = v
		fields[key] = v
		return nil
	}
	for _, e := range []struct {
		key      string
		src      *string
		dst      *string
		required bool
	}{
		{"name", f.Name, &p.Name, true},
		{"kitchenName", f.KitchenName, &p.KitchenName, false},
		{"phone", f.Phone, &p.Phone, true},
		{"services", f.Services, &p.Services, true},
		{"about", f.About, &p.About, false},
	} {
		if err := set(e.key, e.src, e.dst, e.required); err != nil {
			return nil, err
		}
	}
	if len(fields) == 0 {
		return p, nil
	}
	p.UpdatedAt = s.now().UTC()
	fields["updatedAt"] = p.UpdatedAt
	if err := s.store.Update(ctx, store.Taskers, p.ID, fields); err != nil {
		return nil, err
	}
	return p, nil
}

// Cook is a profile with the number of meals it currently offers.
type Cook struct {
	models.Profile
	AvailableMeals int `json:"availableMeals"`
}

// BrowseCooks lists cooks with at least one available meal, busiest menu
// first.
func (s *Service) BrowseCooks(ctx context.Context) ([]Cook, error) {
	var meals []models.Meal
	err := s.store.Query(ctx, store.Query{
		Collection: store.Meals,
		Filters:    []store.Filter{store.Eq("available", true)},
	}, &meals)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, m := range meals {
		counts[m.CookID]++
	}

	var profiles []models.Profile
	if err := s.store.Query(ctx, store.Query{Collection: store.Taskers}, &profiles); err != nil {
		return nil, err
	}
	out := make([]Cook, 0, len(counts))
	for _, p := range profiles {
		if n := counts[p.UserID]; n > 0 {
			out = append(out, Cook{Profile: p, AvailableMeals: n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AvailableMeals != out[j].AvailableMeals {
			return out[i].AvailableMeals > out[j].AvailableMeals
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
