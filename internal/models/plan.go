package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlanStatus is the lifecycle phase of a plan.
type PlanStatus string

const (
	PlanStatusPlanning      PlanStatus = "planning"
	PlanStatusCollaboration PlanStatus = "collaboration"
	PlanStatusOngoing       PlanStatus = "ongoing"
	PlanStatusConcluded     PlanStatus = "concluded"
)

// planStatusOrder is the linear order of phases; there are no backward edges.
var planStatusOrder = []PlanStatus{
	PlanStatusPlanning,
	PlanStatusCollaboration,
	PlanStatusOngoing,
	PlanStatusConcluded,
}

// ParsePlanStatus normalizes s and checks it is a known phase.
// "expense" is accepted as a legacy alias of ongoing.
func ParsePlanStatus(s string) (PlanStatus, error) {
	st := PlanStatus(strings.ToLower(strings.TrimSpace(s)))
	if st == "expense" {
		return PlanStatusOngoing, nil
	}
	if st.rank() < 0 {
		return "", fmt.Errorf("unknown plan status %q", s)
	}
	return st, nil
}

func (s PlanStatus) rank() int {
	for i, st := range planStatusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known phase.
func (s PlanStatus) Valid() bool { return s.rank() >= 0 }

// Next returns the phase that follows s.
func (s PlanStatus) Next() (PlanStatus, bool) {
	r := s.rank()
	if r < 0 || r+1 >= len(planStatusOrder) {
		return "", false
	}
	return planStatusOrder[r+1], true
}

// CanTransitionTo reports whether next is the single forward step from s.
func (s PlanStatus) CanTransitionTo(next PlanStatus) bool {
	n, ok := s.Next()
	return ok && n == next
}

// After reports whether s is strictly later in the lifecycle than other.
func (s PlanStatus) After(other PlanStatus) bool {
	return s.rank() > other.rank()
}

// Plan represents a group trip under collaborative construction
type Plan struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	OwnerID          uuid.UUID     `json:"owner_id" db:"owner_id"`
	Destination      string        `json:"destination" db:"destination"`
	Dates            string        `json:"dates" db:"dates"`
	Description      string        `json:"description" db:"description"`
	Status           PlanStatus    `json:"status" db:"status"`
	Document         *PlanDocument `json:"document,omitempty" db:"document"`
	FeedbackClosesAt *time.Time    `json:"feedback_closes_at,omitempty" db:"feedback_closes_at"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// FeedbackOpen reports whether feedback can still be collected at now.
func (p Plan) FeedbackOpen(now time.Time) bool {
	if p.Status != PlanStatusConcluded {
		return false
	}
	return p.FeedbackClosesAt == nil || now.Before(*p.FeedbackClosesAt)
}

// MemberRole is a member's role within a plan.
type MemberRole string

const (
	RoleOwner       MemberRole = "owner"
	RoleParticipant MemberRole = "participant"
)

// Member is an accepted participant of a plan.
type Member struct {
	PlanID   uuid.UUID  `json:"plan_id" db:"plan_id"`
	UserID   uuid.UUID  `json:"user_id" db:"user_id"`
	UserName string     `json:"user_name" db:"user_name"`
	Role     MemberRole `json:"role" db:"role"`
	JoinedAt time.Time  `json:"joined_at" db:"joined_at"`
}
