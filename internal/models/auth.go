package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account known to the identity provider
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	PasswordHash string    `json:"-" db:"password_hash"` // Hidden from JSON responses
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Identity is the authenticated caller as supplied by the identity provider.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
}

// Identity returns the caller view of the user.
func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email, Name: u.DisplayName}
}
