package models

import "time"

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusDeclined  OrderStatus = "declined"
	StatusCompleted OrderStatus = "completed"
)

// OrderItem is a copy of a meal's name and price taken when the order was
// placed, so later edits to the meal never reach historical orders.
type OrderItem struct {
	MealID   string  `json:"mealId" bson:"mealId"`
	MealName string  `json:"mealName" bson:"mealName"`
	Price    float64 `json:"price" bson:"price"`
	Quantity int     `json:"quantity" bson:"quantity"`
}

// Order is immutable after creation except for Status and UpdatedAt.
type Order struct {
	ID            string               `json:"id" bson:"_id"`
	CookID        string               `json:"cookId" bson:"cookId"`
	CustomerID    string               `json:"customerId" bson:"customerId"`
	CustomerEmail string               `json:"customerEmail,omitempty" bson:"customerEmail,omitempty"`
	Items         map[string]OrderItem `json:"items" bson:"items"`
	Total         float64              `json:"total" bson:"total"`
	Status        OrderStatus          `json:"status" bson:"status"`
	CreatedAt     time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt" bson:"updatedAt"`
}
