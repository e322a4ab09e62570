// Package meals manages the dishes a cook offers.
package meals

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"myhomeneeds/apperr"
	"myhomeneeds/models"
	"myhomeneeds/store"
)

const maxNameLen = 100

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

// Input is the editable part of a meal. Nil fields are left alone on update.
type Input struct {
	MealName    *string  `json:"mealName"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Cuisine     *string  `json:"cuisine"`
	Available   *bool    `json:"available"`
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

func (in Input) validate(op string, creating bool) error {
	if creating && (in.MealName == nil || in.Price == nil || in.Cuisine == nil) {
		return apperr.New(apperr.Validation, op, "mealName, price and cuisine are required")
	}
	if in.MealName != nil {
		n := len(strings.TrimSpace(*in.MealName))
		if n == 0 || n > maxNameLen {
			return apperr.Newf(apperr.Validation, op, "mealName must be between 1 and %d characters", maxNameLen)
		}
	}
	if in.Cuisine != nil && strings.TrimSpace(*in.Cuisine) == "" {
		return apperr.New(apperr.Validation, op, "cuisine is required")
	}
	if in.Price != nil && !validPrice(*in.Price) {
		return apperr.New(apperr.Validation, op, "price must be a positive number")
	}
	return nil
}

func (s *Service) cookProfile(ctx context.Context, userID string) (*models.Profile, error) {
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
		return nil, apperr.New(apperr.PermissionDenied, "meals", "register as a cook first")
	}
	return &profiles[0], nil
}

// Create adds a meal to cook's menu. The cook must have a profile.
func (s *Service) Create(ctx context.Context, cook models.Identity, in Input) (*models.Meal, error) {
	if err := in.validate("meals.Create", true); err != nil {
		return nil, err
	}
	profile, err := s.cookProfile(ctx, cook.UserID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	meal := models.Meal{
		ID:        uuid.NewString(),
		CookID:    cook.UserID,
		CookName:  profile.Name,
		MealName:  strings.TrimSpace(*in.MealName),
		Price:     *in.Price,
		Cuisine:   strings.TrimSpace(*in.Cuisine),
		Available: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Description != nil {
		meal.Description = *in.Description
	}
	if in.Available != nil {
		meal.Available = *in.Available
	}
	if _, err := s.store.Create(ctx, store.Meals, meal); err != nil {
		return nil, err
	}
	s.logger.Info("meal created", slog.String("mealId", meal.ID), slog.String("cookId", cook.UserID))
	return &meal, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Meal, error) {
	var meal models.Meal
	if err := s.store.Get(ctx, store.Meals, id, &meal); err != nil {
		return nil, err
	}
	return &meal, nil
}

func (s *Service) owned(ctx context.Context, actor models.Identity, id, op string) (*models.Meal, error) {
	meal, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if meal.CookID != actor.UserID {
		return nil, apperr.New(apperr.PermissionDenied, op, "not your meal")
	}
	return meal, nil
}

// Update changes the fields set in in. Only the owning cook may do this.
func (s *Service) Update(ctx context.Context, actor models.Identity, id string, in Input) (*models.Meal, error) {
	if err := in.validate("meals.Update", false); err != nil {
		return nil, err
	}
	meal, err := s.owned(ctx, actor, id, "meals.Update")
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.MealName != nil {
		meal.MealName = strings.TrimSpace(*in.MealName)
		fields["mealName"] = meal.MealName
	}
	if in.Description != nil {
		meal.Description = *in.Description
		fields["description"] = meal.Description
	}
	if in.Price != nil {
		meal.Price = *in.Price
		fields["price"] = meal.Price
	}
	if in.Cuisine != nil {
		meal.Cuisine = strings.TrimSpace(*in.Cuisine)
		fields["cuisine"] = meal.Cuisine
	}
	if in.Available != nil {
		meal.Available = *in.Available
		fields["available"] = meal.Available
	}
	if len(fields) == 0 {
		return meal, nil
	}
	meal.UpdatedAt = s.now().UTC()
	fields["updatedAt"] = meal.UpdatedAt
	if err := s.store.Update(ctx, store.Meals, id, fields); err != nil {
		return nil, err
	}
	return meal, nil
}

func (s *Service) Delete(ctx context.Context, actor models.Identity, id string) error {
	if _, err := s.owned(ctx, actor, id, "meals.Delete"); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, store.Meals, id); err != nil {
		return err
	}
	s.logger.Info("meal deleted", slog.String("mealId", id), slog.String("cookId", actor.UserID))
	return nil
}

// ListByCook returns the cook's meals, newest first.
func (s *Service) ListByCook(ctx context.Context, cookID string, onlyAvailable bool) ([]models.Meal, error) {
	q := store.Query{
		Collection: store.Meals,
		Filters:    []store.Filter{store.Eq("cookId", cookID)},
		SortDesc:   "createdAt",
	}
	if onlyAvailable {
		q.Filters = append(q.Filters, store.Eq("available", true))
	}
	var out []models.Meal
	if err := s.store.Query(ctx, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAvailable returns every available meal across all kitchens.
func (s *Service) ListAvailable(ctx context.Context, limit int64) ([]models.Meal, error) {
	var out []models.Meal
	err := s.store.Query(ctx, store.Query{
		Collection: store.Meals,
		Filters:    []store.Filter{store.Eq("available", true)},
		SortDesc:   "createdAt",
		Limit:      limit,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
