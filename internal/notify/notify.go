// Package notify records in-app notifications and sends invitation emails.
// Failures are logged and never fail the operation that triggered them.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/store"
)

const (
	maxTitleLength   = 255
	maxMessageLength = 10000
	maxURLLength     = 2048
	maxDataBytes     = 1024 * 1024
	emailTimeout     = 15 * time.Second
)

// Repository is the store capability the service needs.
type Repository interface {
	store.Notifications
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Service creates and lists notifications.
type Service struct {
	repo      Repository
	mailer    Mailer
	publicURL string
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// NewService builds a Service. mailer may be nil to disable email.
func NewService(repo Repository, mailer Mailer, publicURL string, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		mailer:    mailer,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       log.With().Str("component", "notify").Logger(),
	}
}

// Create validates and stores one notification.
func (s *Service) Create(ctx context.Context, n *models.Notification) error {
	if n.UserID == uuid.Nil {
		return common.NewValidationError("user_id", "cannot be nil")
	}
	if strings.TrimSpace(string(n.Type)) == "" {
		return common.NewValidationError("type", "is required")
	}
	if strings.TrimSpace(n.Title) == "" {
		return common.NewValidationError("title", "is required")
	}
	if len(n.Title) > maxTitleLength {
		return common.NewValidationError("title", fmt.Sprintf("exceeds maximum length of %d characters", maxTitleLength))
	}
	if len(n.Message) > maxMessageLength {
		return common.NewValidationError("message", fmt.Sprintf("exceeds maximum length of %d characters", maxMessageLength))
	}
	if len(n.ActionURL) > maxURLLength {
		return common.NewValidationError("action_url", fmt.Sprintf("exceeds maximum length of %d characters", maxURLLength))
	}
	if len(n.Data) > 0 {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal notification data: %w", err)
		}
		if len(raw) > maxDataBytes {
			return common.NewValidationError("data", "exceeds maximum size of 1MB")
		}
	}
	if !n.Type.Valid() {
		// unknown types are stored anyway
		s.log.Warn().Str("type", string(n.Type)).Str("user_id", n.UserID.String()).Msg("unknown notification type")
	}
	return s.repo.CreateNotification(ctx, n)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, f store.NotificationFilter) (store.NotificationPage, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		return store.NotificationPage{}, common.NewValidationError("offset", "must be a non-negative integer")
	}
	if f.Type != "" && !f.Type.Valid() {
		return store.NotificationPage{}, common.NewValidationError("type", "invalid notification type")
	}
	return s.repo.ListNotifications(ctx, userID, f)
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkNotificationRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllNotificationsRead(ctx, userID)
}

// Wait blocks until queued emails are sent.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) planURL(planID uuid.UUID) string {
	return fmt.Sprintf("%s/plans/%s", s.publicURL, planID)
}

func (s *Service) notify(ctx context.Context, n models.Notification) {
	if err := s.Create(ctx, &n); err != nil {
		s.log.Error().Err(err).
			Str("user_id", n.UserID.String()).
			Str("type", string(n.Type)).
			Msg("failed to create notification")
	}
}

// InvitationCreated notifies the invitee in-app when they already have an
// account, and by email when a mailer is configured.
func (s *Service) InvitationCreated(ctx context.Context, plan models.Plan, inv models.Invitation, inviter models.Identity) {
	inviterName := firstNonEmpty(inviter.Name, inviter.Email, "A friend")
	user, err := s.repo.GetUserByEmail(ctx, inv.InvitedEmail)
	switch {
	case err == nil:
		s.notify(ctx, models.Notification{
			UserID:    user.ID,
			Type:      models.NotifyPlanInvitation,
			Title:     fmt.Sprintf("Invitation to %s", plan.Destination),
			Message:   fmt.Sprintf("%s invited you to plan a trip to %s.", inviterName, plan.Destination),
			Data:      map[string]any{"plan_id": plan.ID.String(), "invitation_id": inv.ID.String()},
			ActionURL: s.planURL(plan.ID),
		})
	case !errors.Is(err, common.ErrNotFound):
		s.log.Error().Err(err).Str("email", inv.InvitedEmail).Msg("failed to look up invitee")
	}

	if s.mailer == nil {
		return
	}
	subject, body := invitationEmail(plan.Destination, inviterName, s.planURL(plan.ID))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emailTimeout)
		defer cancel()
		if err := s.mailer.Send(sendCtx, inv.InvitedEmail, subject, body); err != nil {
			s.log.Warn().Err(err).Str("invitation_id", inv.ID.String()).Msg("invitation email not sent")
		}
	}()
}

// InvitationResolved tells the plan owner about an accept or decline.
func (s *Service) InvitationResolved(ctx context.Context, plan models.Plan, inv models.Invitation, invitee models.Identity) {
	who := firstNonEmpty(invitee.Name, inv.InvitedEmail)
	n := models.Notification{
		UserID:    plan.OwnerID,
		Data:      map[string]any{"plan_id": plan.ID.String(), "invitation_id": inv.ID.String()},
		ActionURL: s.planURL(plan.ID),
	}
	switch inv.Status {
	case models.InvitationAccepted:
		n.Type = models.NotifyInvitationAccepted
		n.Title = "Invitation accepted"
		n.Message = fmt.Sprintf("%s joined your trip to %s.", who, plan.Destination)
	case models.InvitationDeclined:
		n.Type = models.NotifyInvitationDeclined
		n.Title = "Invitation declined"
		n.Message = fmt.Sprintf("%s declined your trip to %s.", who, plan.Destination)
	default:
		return
	}
	s.notify(ctx, n)
}

// PlanAdvanced tells every member except actor that the plan changed phase.
func (s *Service) PlanAdvanced(ctx context.Context, plan models.Plan, members []models.Member, actor uuid.UUID) {
	for _, m := range members {
		if m.UserID == actor {
			continue
		}
		s.notify(ctx, models.Notification{
			UserID:    m.UserID,
			Type:      models.NotifyPlanUpdate,
			Title:     fmt.Sprintf("%s is now %s", plan.Destination, plan.Status),
			Message:   phaseMessage(plan.Status),
			Data:      map[string]any{"plan_id": plan.ID.String(), "status": string(plan.Status)},
			ActionURL: s.planURL(plan.ID),
		})
	}
}

// SummaryReady tells every member the trip summary was posted.
func (s *Service) SummaryReady(ctx context.Context, plan models.Plan, members []models.Member) {
	for _, m := range members {
		s.notify(ctx, models.Notification{
			UserID:    m.UserID,
			Type:      models.NotifySummaryReady,
			Title:     fmt.Sprintf("Trip summary for %s", plan.Destination),
			Message:   "The trip summary is ready. Share your feedback while the window is open.",
			Data:      map[string]any{"plan_id": plan.ID.String()},
			ActionURL: s.planURL(plan.ID),
		})
	}
}

func phaseMessage(status models.PlanStatus) string {
	switch status {
	case models.PlanStatusCollaboration:
		return "Proposals and voting are open."
	case models.PlanStatusOngoing:
		return "The plan is confirmed. Log expenses as you go."
	case models.PlanStatusConcluded:
		return "The trip is concluded."
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
