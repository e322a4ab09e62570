package models

import "time"

// User is the identity record behind a session. Every other document refers
// to it by ID.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	LastLogin    time.Time `json:"lastLogin" bson:"lastLogin"`
}

// Identity is the signed-in principal as seen by request handlers.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleCustomer  Role = "customer"
	RoleCook      Role = "cook"
)
