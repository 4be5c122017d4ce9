package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// InvitationStatus represents an invitation's resolution state
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// Terminal reports whether the invitation can no longer change.
func (s InvitationStatus) Terminal() bool {
	return s == InvitationAccepted || s == InvitationDeclined
}

// Invitation is an outstanding or resolved offer to join a plan.
type Invitation struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	PlanID        uuid.UUID        `json:"plan_id" db:"plan_id"`
	InvitedEmail  string           `json:"invited_email" db:"invited_email"`
	InvitedUserID *uuid.UUID       `json:"invited_user_id,omitempty" db:"invited_user_id"`
	InvitedBy     uuid.UUID        `json:"invited_by" db:"invited_by"`
	Status        InvitationStatus `json:"status" db:"status"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	ResolvedAt    *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
}

// NormalizeEmail lowercases and trims an address for comparison and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
