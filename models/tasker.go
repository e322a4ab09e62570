package models

import "time"

// Profile is a cook's public business card. At most one exists per UserID.
type Profile struct {
	ID          string    `json:"id" bson:"_id"`
	UserID      string    `json:"userId" bson:"userId"`
	Email       string    `json:"email,omitempty" bson:"email,omitempty"`
	Name        string    `json:"name" bson:"name"`
	KitchenName string    `json:"kitchenName,omitempty" bson:"kitchenName,omitempty"`
	Phone       string    `json:"phone" bson:"phone"`
	Services    string    `json:"services" bson:"services"`
	About       string    `json:"about" bson:"about"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Meal is a menu item owned by the cook whose identity is CookID.
type Meal struct {
	ID          string    `json:"id" bson:"_id"`
	CookID      string    `json:"cookId" bson:"cookId"`
	CookName    string    `json:"cookName,omitempty" bson:"cookName,omitempty"`
	MealName    string    `json:"mealName" bson:"mealName"`
	Description string    `json:"description" bson:"description"`
	Price       float64   `json:"price" bson:"price"`
	Cuisine     string    `json:"cuisine" bson:"cuisine"`
	Available   bool      `json:"available" bson:"available"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}
