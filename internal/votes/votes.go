// Package votes implements the vote ledger: at most one vote per user per
// proposal, with toggle-off and switch semantics applied atomically by the store.
package votes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/store"
)

// Result is the tally of one proposal's votes.
type Result struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
	Score     int `json:"score"`
}

// Tally counts votes. It is order independent.
func Tally(votes []models.Vote) Result {
	var r Result
	for _, v := range votes {
		switch v.Type {
		case models.VoteUp:
			r.Upvotes++
		case models.VoteDown:
			r.Downvotes++
		}
	}
	r.Score = r.Upvotes - r.Downvotes
	return r
}

// UserStance returns userID's vote type, if any.
func UserStance(votes []models.Vote, userID uuid.UUID) (models.VoteType, bool) {
	for _, v := range votes {
		if v.UserID == userID {
			return v.Type, true
		}
	}
	return "", false
}

// ByProposal groups votes by proposal id.
func ByProposal(votes []models.Vote) map[uuid.UUID][]models.Vote {
	out := make(map[uuid.UUID][]models.Vote)
	for _, v := range votes {
		out[v.ProposalID] = append(out[v.ProposalID], v)
	}
	return out
}

// Ledger is the store capability the service needs.
type Ledger interface {
	store.Votes
	GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	GetMember(ctx context.Context, planID, userID uuid.UUID) (*models.Member, error)
}

// Service casts and reads votes.
type Service struct {
	ledger Ledger
	log    zerolog.Logger
}

func NewService(ledger Ledger, log zerolog.Logger) *Service {
	return &Service{ledger: ledger, log: log.With().Str("component", "votes").Logger()}
}

// Cast is the result of a vote call.
type Cast struct {
	Outcome models.VoteOutcome `json:"outcome"`
	Stance  *models.VoteType   `json:"stance"`
	Tally   Result             `json:"tally"`
}

// Vote applies the toggle rule for voter on proposalID. Voting is only open
// while the plan is collaborating, and only to members.
func (s *Service) Vote(ctx context.Context, proposalID uuid.UUID, voter models.Identity, typ models.VoteType) (*Cast, error) {
	if typ != models.VoteUp && typ != models.VoteDown {
		return nil, common.NewValidationError("type", "must be up or down")
	}
	p, err := s.ledger.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	plan, err := s.ledger.GetPlan(ctx, p.PlanID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	if plan.Status != models.PlanStatusCollaboration {
		return nil, common.ErrPhaseClosed
	}
	if _, err := s.ledger.GetMember(ctx, plan.ID, voter.UserID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrForbidden
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	outcome, err := s.ledger.ToggleVote(ctx, models.Vote{ProposalID: proposalID, UserID: voter.UserID, Type: typ})
	if err != nil {
		return nil, fmt.Errorf("toggle vote: %w", err)
	}
	s.log.Debug().
		Str("proposal_id", proposalID.String()).
		Str("user_id", voter.UserID.String()).
		Str("type", string(typ)).
		Str("outcome", string(outcome)).
		Msg("vote applied")

	current, err := s.ledger.ListVotes(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	cast := &Cast{Outcome: outcome, Tally: Tally(current)}
	if st, ok := UserStance(current, voter.UserID); ok {
		cast.Stance = &st
	}
	return cast, nil
}

// GetVotes returns the votes on one proposal.
func (s *Service) GetVotes(ctx context.Context, proposalID uuid.UUID) ([]models.Vote, error) {
	if _, err := s.ledger.GetProposal(ctx, proposalID); err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return s.ledger.ListVotes(ctx, proposalID)
}
