// Package collab is the collaboration session: plan lifecycle, membership,
// invitations, the readiness gate and the per-phase activity (messages,
// expenses, feedback). Phase rules are checked here, at the boundary of every
// feature, and backed by conditional writes in the store.
package collab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/config"
	"TRIPCOLLAB_BACK-END/internal/consolidation"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/proposals"
	"TRIPCOLLAB_BACK-END/internal/store"
	"TRIPCOLLAB_BACK-END/internal/tally"
	"TRIPCOLLAB_BACK-END/internal/votes"
)

const (
	maxDestinationLength = 255
	maxDescriptionLength = 5000
)

// Notifier is told about session events. Implementations log their own failures.
type Notifier interface {
	InvitationCreated(ctx context.Context, plan models.Plan, inv models.Invitation, inviter models.Identity)
	InvitationResolved(ctx context.Context, plan models.Plan, inv models.Invitation, invitee models.Identity)
	PlanAdvanced(ctx context.Context, plan models.Plan, members []models.Member, actor uuid.UUID)
	SummaryReady(ctx context.Context, plan models.Plan, members []models.Member)
}

// SeedSource drafts a provisional plan document for a plan without one.
type SeedSource interface {
	Draft(ctx context.Context, plan models.Plan) (models.PlanDocument, error)
}

// Seeder seeds proposals from a plan document.
type Seeder interface {
	SeedFromPlan(ctx context.Context, planID, ownerID uuid.UUID, doc models.PlanDocument) (proposals.SeedResult, error)
}

type nopNotifier struct{}

func (nopNotifier) InvitationCreated(context.Context, models.Plan, models.Invitation, models.Identity) {
}
func (nopNotifier) InvitationResolved(context.Context, models.Plan, models.Invitation, models.Identity) {
}
func (nopNotifier) PlanAdvanced(context.Context, models.Plan, []models.Member, uuid.UUID) {}
func (nopNotifier) SummaryReady(context.Context, models.Plan, []models.Member)            {}

// Service runs collaboration sessions.
type Service struct {
	store     store.Store
	seeder    Seeder
	notifier  Notifier
	seeds     SeedSource
	summaries SummaryGenerator
	cfg       config.CollabConfig
	log       zerolog.Logger
	now       func() time.Time

	wg sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithSeedSource(src SeedSource) Option {
	return func(s *Service) { s.seeds = src }
}

func WithSummaryGenerator(g SummaryGenerator) Option {
	return func(s *Service) { s.summaries = g }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a Service. Without a SummaryGenerator option the
// expense-based generator is used.
func NewService(st store.Store, seeder Seeder, cfg config.CollabConfig, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		seeder:   seeder,
		notifier: nopNotifier{},
		cfg:      cfg,
		log:      log.With().Str("component", "collab").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.summaries == nil {
		s.summaries = NewExpenseSummaryGenerator(st)
	}
	return s
}

// Wait blocks until background summary generation finishes.
func (s *Service) Wait() {
	s.wg.Wait()
}

// RequireMember loads the plan and checks userID is an accepted member.
func (s *Service) RequireMember(ctx context.Context, planID, userID uuid.UUID) (*models.Plan, *models.Member, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, nil, fmt.Errorf("get plan: %w", err)
	}
	m, err := s.store.GetMember(ctx, planID, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, common.ErrForbidden
		}
		return nil, nil, fmt.Errorf("get member: %w", err)
	}
	return plan, m, nil
}

func (s *Service) requireOwner(ctx context.Context, planID, userID uuid.UUID) (*models.Plan, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	if plan.OwnerID != userID {
		return nil, common.ErrForbidden
	}
	return plan, nil
}

// PlanInput is the owner's initial draft.
type PlanInput struct {
	Destination string
	Dates       string
	Description string
	Document    *models.PlanDocument
}

func validatePlanText(destination, description string) error {
	if strings.TrimSpace(destination) == "" {
		return common.NewValidationError("destination", "is required")
	}
	if len(destination) > maxDestinationLength {
		return common.NewValidationError("destination", fmt.Sprintf("must be at most %d characters", maxDestinationLength))
	}
	if len(description) > maxDescriptionLength {
		return common.NewValidationError("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	}
	return nil
}

// CreatePlan starts a plan in planning with owner as its only member.
func (s *Service) CreatePlan(ctx context.Context, owner models.Identity, in PlanInput) (*models.Plan, error) {
	in.Destination = strings.TrimSpace(in.Destination)
	if err := validatePlanText(in.Destination, in.Description); err != nil {
		return nil, err
	}
	plan := &models.Plan{
		ID:          uuid.New(),
		OwnerID:     owner.UserID,
		Destination: in.Destination,
		Dates:       strings.TrimSpace(in.Dates),
		Description: in.Description,
		Status:      models.PlanStatusPlanning,
	}
	if in.Document != nil {
		doc := in.Document.Clone()
		doc.Normalize()
		plan.Document = doc
	}
	member := models.Member{
		PlanID:   plan.ID,
		UserID:   owner.UserID,
		UserName: firstNonEmpty(owner.Name, owner.Email),
		Role:     models.RoleOwner,
	}
	if err := s.store.CreatePlan(ctx, plan, member); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	s.log.Info().Str("plan_id", plan.ID.String()).Str("owner_id", owner.UserID.String()).Msg("plan created")
	return plan, nil
}

// GetPlan returns a plan visible to userID.
func (s *Service) GetPlan(ctx context.Context, planID, userID uuid.UUID) (*models.Plan, error) {
	plan, _, err := s.RequireMember(ctx, planID, userID)
	return plan, err
}

func (s *Service) ListPlans(ctx context.Context, userID uuid.UUID) ([]models.Plan, error) {
	return s.store.ListPlansForUser(ctx, userID)
}

func (s *Service) ListMembers(ctx context.Context, planID, userID uuid.UUID) ([]models.Member, error) {
	if _, _, err := s.RequireMember(ctx, planID, userID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, planID)
}

// UpdateDraft edits a plan still in planning. Owner only.
func (s *Service) UpdateDraft(ctx context.Context, planID, actor uuid.UUID, draft store.PlanDraft) (*models.Plan, error) {
	plan, err := s.requireOwner(ctx, planID, actor)
	if err != nil {
		return nil, err
	}
	if plan.Status != models.PlanStatusPlanning {
		return nil, common.ErrPhaseClosed
	}
	if draft.Destination != nil {
		d := strings.TrimSpace(*draft.Destination)
		draft.Destination = &d
	}
	destination, description := plan.Destination, plan.Description
	if draft.Destination != nil {
		destination = *draft.Destination
	}
	if draft.Description != nil {
		description = *draft.Description
	}
	if err := validatePlanText(destination, description); err != nil {
		return nil, err
	}
	if draft.Document != nil {
		doc := draft.Document.Clone()
		doc.Normalize()
		draft.Document = doc
	}
	return s.store.UpdatePlanDraft(ctx, planID, draft)
}

func (s *Service) advanced(ctx context.Context, plan *models.Plan, actor uuid.UUID) {
	s.log.Info().
		Str("plan_id", plan.ID.String()).
		Str("status", string(plan.Status)).
		Msg("plan advanced")
	members, err := s.store.ListMembers(ctx, plan.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("plan_id", plan.ID.String()).Msg("skip phase notifications")
		return
	}
	s.notifier.PlanAdvanced(ctx, *plan, members, actor)
}

// StartCollaboration moves the plan into collaboration and seeds initial
// proposals. A failed seed is logged; manual proposals still work.
func (s *Service) StartCollaboration(ctx context.Context, planID, actor uuid.UUID) (*models.Plan, proposals.SeedResult, error) {
	plan, err := s.requireOwner(ctx, planID, actor)
	if err != nil {
		return nil, proposals.SeedResult{}, err
	}
	plan, err = s.store.TransitionPlan(ctx, planID, models.PlanStatusPlanning, models.PlanStatusCollaboration, store.PlanChange{})
	if err != nil {
		return nil, proposals.SeedResult{}, fmt.Errorf("start collaboration: %w", err)
	}
	result, err := s.seed(ctx, plan)
	if err != nil {
		s.log.Warn().Err(err).Str("plan_id", planID.String()).Msg("seeding failed")
	}
	s.advanced(ctx, plan, actor)
	return plan, result, nil
}

// EnsureSeeded seeds a collaborating plan that has no proposals yet. Any
// member may call it; concurrent calls insert the seed once.
func (s *Service) EnsureSeeded(ctx context.Context, planID, userID uuid.UUID) (proposals.SeedResult, error) {
	plan, _, err := s.RequireMember(ctx, planID, userID)
	if err != nil {
		return proposals.SeedResult{}, err
	}
	if plan.Status != models.PlanStatusCollaboration {
		return proposals.SeedResult{}, common.ErrPhaseClosed
	}
	return s.seed(ctx, plan)
}

func (s *Service) seed(ctx context.Context, plan *models.Plan) (proposals.SeedResult, error) {
	doc := s.seedDocument(ctx, plan)
	return s.seeder.SeedFromPlan(ctx, plan.ID, plan.OwnerID, doc)
}

// seedDocument picks the plan's own document, then the seed source, then the
// bare draft fields.
func (s *Service) seedDocument(ctx context.Context, plan *models.Plan) models.PlanDocument {
	if plan.Document != nil {
		doc := plan.Document.Clone()
		if doc.Dates == "" {
			doc.Dates = plan.Dates
		}
		return *doc
	}
	if s.seeds != nil {
		doc, err := s.seeds.Draft(ctx, *plan)
		if err == nil {
			if doc.Dates == "" {
				doc.Dates = plan.Dates
			}
			return doc
		}
		s.log.Warn().Err(err).Str("plan_id", plan.ID.String()).Msg("seed source failed")
	}
	return models.PlanDocument{
		Destination: plan.Destination,
		Dates:       plan.Dates,
		Description: plan.Description,
	}
}

// board loads everything the tally needs for one plan.
func (s *Service) board(ctx context.Context, planID uuid.UUID) ([]models.Proposal, []models.Vote, []models.Member, error) {
	props, err := s.store.ListProposals(ctx, planID, "")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list proposals: %w", err)
	}
	vs, err := s.store.ListPlanVotes(ctx, planID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list votes: %w", err)
	}
	members, err := s.store.ListMembers(ctx, planID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list members: %w", err)
	}
	return props, vs, members, nil
}

// Readiness evaluates the gate for leaving collaboration.
func (s *Service) Readiness(ctx context.Context, planID, userID uuid.UUID) (tally.Readiness, error) {
	if _, _, err := s.RequireMember(ctx, planID, userID); err != nil {
		return tally.Readiness{}, err
	}
	props, vs, members, err := s.board(ctx, planID)
	if err != nil {
		return tally.Readiness{}, err
	}
	return tally.Evaluate(props, votes.ByProposal(vs), len(members)), nil
}

// Preview computes the consolidated document without persisting it.
func (s *Service) Preview(ctx context.Context, planID, userID uuid.UUID) (models.PlanDocument, error) {
	plan, _, err := s.RequireMember(ctx, planID, userID)
	if err != nil {
		return models.PlanDocument{}, err
	}
	props, vs, _, err := s.board(ctx, planID)
	if err != nil {
		return models.PlanDocument{}, err
	}
	return consolidation.Consolidate(*plan, props, vs), nil
}

// Entry is one proposal with its tally and the viewer's stance.
type Entry struct {
	Proposal models.Proposal  `json:"proposal"`
	Tally    votes.Result     `json:"tally"`
	MyVote   *models.VoteType `json:"my_vote"`
}

// Board is the proposal list grouped by category.
type Board struct {
	Date          []Entry `json:"date"`
	Accommodation []Entry `json:"accommodation"`
	Itinerary     []Entry `json:"itinerary"`
}

// ProposalBoard returns every proposal with its tally, in creation order.
func (s *Service) ProposalBoard(ctx context.Context, planID, userID uuid.UUID) (Board, error) {
	if _, _, err := s.RequireMember(ctx, planID, userID); err != nil {
		return Board{}, err
	}
	props, vs, _, err := s.board(ctx, planID)
	if err != nil {
		return Board{}, err
	}
	byProposal := votes.ByProposal(vs)
	b := Board{Date: []Entry{}, Accommodation: []Entry{}, Itinerary: []Entry{}}
	for _, sc := range tally.ScoreAll(props, byProposal) {
		e := Entry{Proposal: sc.Proposal, Tally: sc.Result}
		if st, ok := votes.UserStance(byProposal[sc.Proposal.ID], userID); ok {
			e.MyVote = &st
		}
		switch sc.Proposal.Category {
		case models.CategoryDate:
			b.Date = append(b.Date, e)
		case models.CategoryAccommodation:
			b.Accommodation = append(b.Accommodation, e)
		case models.CategoryItinerary:
			b.Itinerary = append(b.Itinerary, e)
		}
	}
	return b, nil
}

// ConfirmAndProceed persists doc and moves the plan to ongoing. Readiness is
// not re-checked here. A nil doc persists the server-side consolidation.
func (s *Service) ConfirmAndProceed(ctx context.Context, planID, actor uuid.UUID, doc *models.PlanDocument) (*models.Plan, error) {
	plan, err := s.requireOwner(ctx, planID, actor)
	if err != nil {
		return nil, err
	}
	if plan.Status != models.PlanStatusCollaboration {
		return nil, common.ErrInvalidTransition
	}
	var final models.PlanDocument
	if doc == nil {
		props, vs, _, err := s.board(ctx, planID)
		if err != nil {
			return nil, err
		}
		final = consolidation.Consolidate(*plan, props, vs)
	} else {
		final = *doc.Clone()
		final.Normalize()
	}
	change := store.PlanChange{Document: &final}
	if final.Dates != "" {
		change.Dates = &final.Dates
	}
	plan, err = s.store.TransitionPlan(ctx, planID, models.PlanStatusCollaboration, models.PlanStatusOngoing, change)
	if err != nil {
		return nil, fmt.Errorf("confirm plan: %w", err)
	}
	s.advanced(ctx, plan, actor)
	return plan, nil
}

// Conclude ends the trip, opens the feedback window and generates the
// summary in the background.
func (s *Service) Conclude(ctx context.Context, planID, actor uuid.UUID) (*models.Plan, error) {
	if _, err := s.requireOwner(ctx, planID, actor); err != nil {
		return nil, err
	}
	closes := s.now().Add(s.cfg.FeedbackWindow).UTC()
	plan, err := s.store.TransitionPlan(ctx, planID, models.PlanStatusOngoing, models.PlanStatusConcluded,
		store.PlanChange{FeedbackClosesAt: &closes})
	if err != nil {
		return nil, fmt.Errorf("conclude plan: %w", err)
	}
	s.advanced(ctx, plan, actor)

	s.wg.Add(1)
	go func(plan models.Plan) {
		defer s.wg.Done()
		timeout := s.cfg.SummaryTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		s.postSummary(sctx, plan)
	}(*plan)
	return plan, nil
}
