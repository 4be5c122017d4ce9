// Package proposals is the proposal store: competing options per plan and
// category, plus one-time seeding from a provisional plan document.
package proposals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/store"
)

const maxTitleLength = 200

// Repository is the store capability the service needs.
type Repository interface {
	store.Proposals
	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	GetMember(ctx context.Context, planID, userID uuid.UUID) (*models.Member, error)
}

// Service manages proposals.
type Service struct {
	repo Repository
	log  zerolog.Logger
	now  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for seeding.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		log:  log.With().Str("component", "proposals").Logger(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// collaboratingPlan loads the plan and checks proposals are open.
func (s *Service) collaboratingPlan(ctx context.Context, planID uuid.UUID) (*models.Plan, error) {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	if plan.Status != models.PlanStatusCollaboration {
		return nil, common.ErrPhaseClosed
	}
	return plan, nil
}

// AddProposal validates details for category and stores a new proposal
// authored by author, who must be a member of the plan.
func (s *Service) AddProposal(ctx context.Context, planID uuid.UUID, author models.Identity, category models.Category, title string, rawDetails json.RawMessage) (*models.Proposal, error) {
	if _, err := models.ParseCategory(string(category)); err != nil {
		return nil, err
	}
	title, details, err := models.NormalizeProposal(category, title, rawDetails)
	if err != nil {
		return nil, err
	}
	if len(title) > maxTitleLength {
		return nil, common.NewValidationError("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}

	if _, err := s.collaboratingPlan(ctx, planID); err != nil {
		return nil, err
	}
	member, err := s.repo.GetMember(ctx, planID, author.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrForbidden
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	p := &models.Proposal{
		ID:         uuid.New(),
		PlanID:     planID,
		AuthorID:   author.UserID,
		AuthorName: firstNonEmpty(author.Name, member.UserName),
		Category:   category,
		Title:      title,
		Details:    details,
	}
	if err := s.repo.CreateProposal(ctx, p); err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}
	s.log.Info().
		Str("plan_id", planID.String()).
		Str("proposal_id", p.ID.String()).
		Str("category", string(category)).
		Msg("proposal added")
	return p, nil
}

// ListProposals returns the plan's proposals ordered by creation. An empty
// category lists all of them.
func (s *Service) ListProposals(ctx context.Context, planID uuid.UUID, category models.Category) ([]models.Proposal, error) {
	if category != "" {
		if _, err := models.ParseCategory(string(category)); err != nil {
			return nil, err
		}
	}
	return s.repo.ListProposals(ctx, planID, category)
}

// GetProposal returns the proposal only when it belongs to planID.
func (s *Service) GetProposal(ctx context.Context, planID, proposalID uuid.UUID) (*models.Proposal, error) {
	p, err := s.repo.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	if p.PlanID != planID {
		return nil, common.ErrNotFound
	}
	return p, nil
}

// DeleteProposal removes a proposal and its votes. Only the owner may delete,
// and only during collaboration.
func (s *Service) DeleteProposal(ctx context.Context, planID, proposalID, actor uuid.UUID) error {
	plan, err := s.collaboratingPlan(ctx, planID)
	if err != nil {
		return err
	}
	if plan.OwnerID != actor {
		return common.ErrForbidden
	}
	p, err := s.repo.GetProposal(ctx, proposalID)
	if err != nil {
		return fmt.Errorf("get proposal: %w", err)
	}
	if p.PlanID != planID {
		return common.ErrNotFound
	}
	if err := s.repo.DeleteProposal(ctx, proposalID); err != nil {
		return fmt.Errorf("delete proposal: %w", err)
	}
	s.log.Info().Str("plan_id", planID.String()).Str("proposal_id", proposalID.String()).Msg("proposal deleted")
	return nil
}

// SeedResult reports what a seeding attempt did.
type SeedResult struct {
	Inserted     int  `json:"inserted"`
	Skipped      bool `json:"skipped"`
	DateFallback bool `json:"date_fallback"`
}

// SeedFromPlan inserts seed proposals built from doc, but only when the plan
// has no proposals at all. The store guards the race between two callers.
func (s *Service) SeedFromPlan(ctx context.Context, planID, ownerID uuid.UUID, doc models.PlanDocument) (SeedResult, error) {
	existing, err := s.repo.ListProposals(ctx, planID, "")
	if err != nil {
		return SeedResult{}, fmt.Errorf("list proposals: %w", err)
	}
	if len(existing) > 0 {
		return SeedResult{Skipped: true}, nil
	}

	now := s.now()
	seed := BuildSeed(planID, ownerID, doc, now)
	_, _, parsed := ParseDateRange(doc.Dates, now)
	result := SeedResult{DateFallback: !parsed && (doc.StartDate == "" || doc.EndDate == "")}

	n, err := s.repo.SeedProposals(ctx, planID, seed)
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed proposals: %w", err)
	}
	result.Inserted = n
	result.Skipped = n == 0
	s.log.Info().
		Str("plan_id", planID.String()).
		Int("inserted", n).
		Bool("date_fallback", result.DateFallback).
		Msg("proposals seeded")
	return result, nil
}
