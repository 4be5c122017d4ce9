package collab

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/models"
)

// Invite records a pending invitation for email. Owner only; a second invite
// to the same address fails with common.ErrAlreadyInvited.
func (s *Service) Invite(ctx context.Context, planID uuid.UUID, actor models.Identity, email string) (*models.Invitation, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, common.NewValidationError("email", "is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, common.NewValidationError("email", "is not a valid address")
	}
	plan, err := s.requireOwner(ctx, planID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if plan.Status == models.PlanStatusConcluded {
		return nil, common.ErrPhaseClosed
	}
	if email == models.NormalizeEmail(actor.Email) {
		return nil, fmt.Errorf("%w: cannot invite yourself", common.ErrConflict)
	}
	if u, err := s.store.GetUserByEmail(ctx, email); err == nil {
		if _, err := s.store.GetMember(ctx, planID, u.ID); err == nil {
			return nil, fmt.Errorf("%w: already a member", common.ErrConflict)
		}
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	inv := &models.Invitation{
		ID:           uuid.New(),
		PlanID:       planID,
		InvitedEmail: email,
		InvitedBy:    actor.UserID,
		Status:       models.InvitationPending,
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		if errors.Is(err, common.ErrAlreadyInvited) {
			return nil, err
		}
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	s.log.Info().
		Str("plan_id", planID.String()).
		Str("invitation_id", inv.ID.String()).
		Msg("invitation created")
	s.notifier.InvitationCreated(ctx, *plan, *inv, actor)
	return inv, nil
}

// invitationFor loads an invitation addressed to actor.
func (s *Service) invitationFor(ctx context.Context, id uuid.UUID, actor models.Identity) (*models.Invitation, error) {
	inv, err := s.store.GetInvitation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if inv.InvitedEmail != models.NormalizeEmail(actor.Email) {
		return nil, common.ErrForbidden
	}
	return inv, nil
}

// Accept resolves the invitation and makes actor a participant. Accepting
// twice is a no-op; exactly one member row exists afterwards.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, actor models.Identity) (*models.Invitation, error) {
	before, err := s.invitationFor(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	member := models.Member{
		PlanID:   before.PlanID,
		UserID:   actor.UserID,
		UserName: firstNonEmpty(actor.Name, actor.Email),
		Role:     models.RoleParticipant,
	}
	inv, err := s.store.AcceptInvitation(ctx, id, member)
	if err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}
	if before.Status == models.InvitationPending {
		s.log.Info().Str("plan_id", inv.PlanID.String()).Str("user_id", actor.UserID.String()).Msg("invitation accepted")
		s.resolved(ctx, *inv, actor)
	}
	return inv, nil
}

// Decline resolves the invitation without joining.
func (s *Service) Decline(ctx context.Context, id uuid.UUID, actor models.Identity) (*models.Invitation, error) {
	before, err := s.invitationFor(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	inv, err := s.store.DeclineInvitation(ctx, id, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("decline invitation: %w", err)
	}
	if before.Status == models.InvitationPending {
		s.log.Info().Str("plan_id", inv.PlanID.String()).Str("user_id", actor.UserID.String()).Msg("invitation declined")
		s.resolved(ctx, *inv, actor)
	}
	return inv, nil
}

func (s *Service) resolved(ctx context.Context, inv models.Invitation, actor models.Identity) {
	plan, err := s.store.GetPlan(ctx, inv.PlanID)
	if err != nil {
		s.log.Warn().Err(err).Str("plan_id", inv.PlanID.String()).Msg("skip invitation notification")
		return
	}
	s.notifier.InvitationResolved(ctx, *plan, inv, actor)
}

// ListInvitations returns every invitation of a plan to one of its members.
func (s *Service) ListInvitations(ctx context.Context, planID, userID uuid.UUID) ([]models.Invitation, error) {
	if _, _, err := s.RequireMember(ctx, planID, userID); err != nil {
		return nil, err
	}
	return s.store.ListInvitations(ctx, planID)
}

// ListMyInvitations returns invitations addressed to actor's email.
func (s *Service) ListMyInvitations(ctx context.Context, actor models.Identity) ([]models.Invitation, error) {
	email := models.NormalizeEmail(actor.Email)
	if email == "" {
		return []models.Invitation{}, nil
	}
	return s.store.ListInvitationsByEmail(ctx, email)
}
