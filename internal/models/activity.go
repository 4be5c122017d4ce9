package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Expense is spend logged while a trip is ongoing. Append-only.
type Expense struct {
	ID          uuid.UUID `json:"id" db:"id"`
	PlanID      uuid.UUID `json:"plan_id" db:"plan_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	UserName    string    `json:"user_name" db:"user_name"`
	Description string    `json:"description" db:"description"`
	Amount      float64   `json:"amount" db:"amount"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Message is a free-text discussion entry ("doubt") on a plan.
type Message struct {
	ID        uuid.UUID `json:"id" db:"id"`
	PlanID    uuid.UUID `json:"plan_id" db:"plan_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	UserName  string    `json:"user_name" db:"user_name"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Feedback is a member's post-trip rating.
type Feedback struct {
	PlanID    uuid.UUID `json:"plan_id" db:"plan_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	UserName  string    `json:"user_name" db:"user_name"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NotificationType categorizes in-app notifications.
type NotificationType string

const (
	NotifyPlanInvitation     NotificationType = "plan_invitation"
	NotifyInvitationAccepted NotificationType = "invitation_accepted"
	NotifyInvitationDeclined NotificationType = "invitation_declined"
	NotifyPlanUpdate         NotificationType = "plan_update"
	NotifyMemberJoined       NotificationType = "member_joined"
	NotifySummaryReady       NotificationType = "summary_ready"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyPlanInvitation, NotifyInvitationAccepted, NotifyInvitationDeclined,
		NotifyPlanUpdate, NotifyMemberJoined, NotifySummaryReady:
		return true
	}
	return false
}

// Notification is an in-app message for one user.
type Notification struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	UserID    uuid.UUID        `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message,omitempty" db:"message"`
	Data      map[string]any   `json:"data,omitempty" db:"data"`
	ActionURL string           `json:"action_url,omitempty" db:"action_url"`
	Read      bool             `json:"read" db:"read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// Table names carried by change events.
const (
	TablePlans       = "plans"
	TableMembers     = "plan_members"
	TableInvitations = "invitations"
	TableProposals   = "proposals"
	TableVotes       = "votes"
	TableMessages    = "messages"
	TableExpenses    = "expenses"
)

// ChangeType is the kind of row mutation.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is a row-level mutation scoped to one plan.
type ChangeEvent struct {
	ID     string          `json:"id"`
	Table  string          `json:"table"`
	Type   ChangeType      `json:"eventType"`
	PlanID uuid.UUID       `json:"plan_id"`
	New    json.RawMessage `json:"new,omitempty"`
	Old    json.RawMessage `json:"old,omitempty"`
	At     time.Time       `json:"at"`
}

// Row returns the new row image, or the old one for deletes.
func (e ChangeEvent) Row() json.RawMessage {
	if len(e.New) > 0 && string(e.New) != "null" {
		return e.New
	}
	return e.Old
}
