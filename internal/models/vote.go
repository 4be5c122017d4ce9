package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/common"
)

// VoteType is the polarity of a vote.
type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

// ParseVoteType accepts "up"/"down" and the legacy "like"/"dislike".
func ParseVoteType(s string) (VoteType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "like", "upvote":
		return VoteUp, nil
	case "down", "dislike", "downvote":
		return VoteDown, nil
	}
	return "", common.NewValidationError("type", fmt.Sprintf("must be up or down (got %q)", s))
}

// Opposite returns the other polarity.
func (t VoteType) Opposite() VoteType {
	if t == VoteUp {
		return VoteDown
	}
	return VoteUp
}

// Vote is one user's stance on one proposal.
type Vote struct {
	ProposalID uuid.UUID `json:"proposal_id" db:"proposal_id"`
	PlanID     uuid.UUID `json:"plan_id" db:"plan_id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	Type       VoteType  `json:"type" db:"type"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// VoteOutcome describes which branch a toggle vote took.
type VoteOutcome string

const (
	VoteAdded    VoteOutcome = "added"
	VoteSwitched VoteOutcome = "switched"
	VoteRemoved  VoteOutcome = "removed"
)
