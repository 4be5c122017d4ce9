// Package tally turns proposals and votes into group decisions: per-category
// winners and the readiness gate for leaving collaboration. Everything here is
// pure; callers load the data.
package tally

import (
	"sort"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/votes"
)

// Scored pairs a proposal with its tally.
type Scored struct {
	Proposal models.Proposal `json:"proposal"`
	votes.Result
}

// SortByCreation returns a copy of proposals ordered by created_at, then id.
func SortByCreation(proposals []models.Proposal) []models.Proposal {
	out := make([]models.Proposal, len(proposals))
	copy(out, proposals)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedBefore(out[j]) })
	return out
}

// ScoreAll tallies each proposal, preserving creation order.
func ScoreAll(proposals []models.Proposal, byProposal map[uuid.UUID][]models.Vote) []Scored {
	sorted := SortByCreation(proposals)
	out := make([]Scored, len(sorted))
	for i, p := range sorted {
		out[i] = Scored{Proposal: p, Result: votes.Tally(byProposal[p.ID])}
	}
	return out
}

// OfCategory filters proposals to one category.
func OfCategory(proposals []models.Proposal, c models.Category) []models.Proposal {
	out := make([]models.Proposal, 0, len(proposals))
	for _, p := range proposals {
		if p.Category == c {
			out = append(out, p)
		}
	}
	return out
}

// SelectWinner returns the proposal with the highest score. Ties go to the
// earliest created_at, then the smaller id, so input order never matters.
func SelectWinner(proposals []models.Proposal, byProposal map[uuid.UUID][]models.Vote) (models.Proposal, bool) {
	var (
		best      models.Proposal
		bestScore int
		found     bool
	)
	for _, p := range proposals {
		score := votes.Tally(byProposal[p.ID]).Score
		if !found || score > bestScore || (score == bestScore && p.CreatedBefore(best)) {
			best, bestScore, found = p, score, true
		}
	}
	return best, found
}

// RequiredVotes is the quorum: ceil(accepted / 2).
func RequiredVotes(acceptedMembers int) int {
	if acceptedMembers <= 0 {
		return 0
	}
	return (acceptedMembers + 1) / 2
}

// Blocker is a reason the plan is not ready.
type Blocker struct {
	Category   models.Category `json:"category"`
	ProposalID *uuid.UUID      `json:"proposal_id,omitempty"`
	Title      string          `json:"title,omitempty"`
	Upvotes    int             `json:"upvotes"`
	Required   int             `json:"required"`
}

// Readiness reports whether every category clears quorum.
type Readiness struct {
	Ready           bool      `json:"ready"`
	AcceptedMembers int       `json:"accepted_members"`
	RequiredVotes   int       `json:"required_votes"`
	Blocking        []Blocker `json:"blocking"`
}

// Evaluate applies the readiness rule: every itinerary and every accommodation
// proposal needs upvotes >= quorum, while dates need at least one proposal
// that does.
func Evaluate(proposals []models.Proposal, byProposal map[uuid.UUID][]models.Vote, acceptedMembers int) Readiness {
	required := RequiredVotes(acceptedMembers)
	r := Readiness{
		AcceptedMembers: acceptedMembers,
		RequiredVotes:   required,
		Blocking:        make([]Blocker, 0),
	}

	var bestDate *Scored
	for _, sc := range ScoreAll(proposals, byProposal) {
		switch sc.Proposal.Category {
		case models.CategoryItinerary, models.CategoryAccommodation:
			if sc.Upvotes < required {
				id := sc.Proposal.ID
				r.Blocking = append(r.Blocking, Blocker{
					Category:   sc.Proposal.Category,
					ProposalID: &id,
					Title:      sc.Proposal.Title,
					Upvotes:    sc.Upvotes,
					Required:   required,
				})
			}
		case models.CategoryDate:
			if bestDate == nil || sc.Upvotes > bestDate.Upvotes {
				sc := sc
				bestDate = &sc
			}
		}
	}

	if bestDate == nil || bestDate.Upvotes < required {
		b := Blocker{Category: models.CategoryDate, Required: required}
		if bestDate != nil {
			id := bestDate.Proposal.ID
			b.ProposalID = &id
			b.Title = bestDate.Proposal.Title
			b.Upvotes = bestDate.Upvotes
		}
		r.Blocking = append(r.Blocking, b)
	}

	r.Ready = len(r.Blocking) == 0
	return r
}

// AllRequiredVotesReceived is Evaluate(...).Ready.
func AllRequiredVotesReceived(proposals []models.Proposal, byProposal map[uuid.UUID][]models.Vote, acceptedMembers int) bool {
	return Evaluate(proposals, byProposal, acceptedMembers).Ready
}
