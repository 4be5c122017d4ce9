// Package store defines the persistence capability shared by every service.
// Implementations: postgres (pgxpool + LISTEN/NOTIFY) and memstore (in-process).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/models"
)

// PlanDraft carries optional edits to a plan still in planning.
type PlanDraft struct {
	Destination *string
	Dates       *string
	Description *string
	Document    *models.PlanDocument
}

// PlanChange is applied together with a status transition.
type PlanChange struct {
	Document         *models.PlanDocument
	Dates            *string
	FeedbackClosesAt *time.Time
}

// Plans persists plans and their lifecycle.
type Plans interface {
	// CreatePlan inserts the plan and its owner membership together.
	CreatePlan(ctx context.Context, plan *models.Plan, owner models.Member) error
	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	ListPlansForUser(ctx context.Context, userID uuid.UUID) ([]models.Plan, error)
	// UpdatePlanDraft fails with common.ErrPhaseClosed unless the plan is in planning.
	UpdatePlanDraft(ctx context.Context, id uuid.UUID, draft PlanDraft) (*models.Plan, error)
	// TransitionPlan flips status only when it still equals from; otherwise
	// common.ErrInvalidTransition.
	TransitionPlan(ctx context.Context, id uuid.UUID, from, to models.PlanStatus, change PlanChange) (*models.Plan, error)
}

// Members persists accepted plan members.
type Members interface {
	// AddMember inserts m unless a row for (plan, user) exists; reports whether it inserted.
	AddMember(ctx context.Context, m models.Member) (bool, error)
	GetMember(ctx context.Context, planID, userID uuid.UUID) (*models.Member, error)
	ListMembers(ctx context.Context, planID uuid.UUID) ([]models.Member, error)
}

// Invitations persists invitations. (plan_id, invited_email) is unique.
type Invitations interface {
	// CreateInvitation fails with common.ErrAlreadyInvited on a duplicate email.
	CreateInvitation(ctx context.Context, inv *models.Invitation) error
	GetInvitation(ctx context.Context, id uuid.UUID) (*models.Invitation, error)
	ListInvitations(ctx context.Context, planID uuid.UUID) ([]models.Invitation, error)
	ListInvitationsByEmail(ctx context.Context, email string) ([]models.Invitation, error)
	// AcceptInvitation marks the invitation accepted and inserts member at most
	// once. Accepting an already accepted invitation by the same user is a no-op.
	AcceptInvitation(ctx context.Context, id uuid.UUID, member models.Member) (*models.Invitation, error)
	DeclineInvitation(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Invitation, error)
}

// Proposals persists proposals, ordered by created_at then id.
type Proposals interface {
	CreateProposal(ctx context.Context, p *models.Proposal) error
	GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	// ListProposals returns all categories when category is empty.
	ListProposals(ctx context.Context, planID uuid.UUID, category models.Category) ([]models.Proposal, error)
	DeleteProposal(ctx context.Context, id uuid.UUID) error
	// SeedProposals inserts seed proposals once per plan. Categories that
	// already hold proposals are skipped. Returns the number inserted.
	SeedProposals(ctx context.Context, planID uuid.UUID, proposals []models.Proposal) (int, error)
}

// Votes persists the vote ledger.
type Votes interface {
	// ToggleVote atomically inserts, switches or removes v.UserID's vote on v.ProposalID.
	ToggleVote(ctx context.Context, v models.Vote) (models.VoteOutcome, error)
	ListVotes(ctx context.Context, proposalID uuid.UUID) ([]models.Vote, error)
	ListPlanVotes(ctx context.Context, planID uuid.UUID) ([]models.Vote, error)
}

// Messages persists plan discussion.
type Messages interface {
	CreateMessage(ctx context.Context, m *models.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	UpdateMessage(ctx context.Context, id uuid.UUID, body string) (*models.Message, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) error
	ListMessages(ctx context.Context, planID uuid.UUID) ([]models.Message, error)
}

// Expenses persists trip spend.
type Expenses interface {
	CreateExpense(ctx context.Context, e *models.Expense) error
	ListExpenses(ctx context.Context, planID uuid.UUID) ([]models.Expense, error)
}

// Feedback persists post-trip ratings, one per (plan, user).
type Feedback interface {
	// CreateFeedback fails with common.ErrConflict when the user already rated.
	CreateFeedback(ctx context.Context, f *models.Feedback) error
	ListFeedback(ctx context.Context, planID uuid.UUID) ([]models.Feedback, error)
}

// NotificationFilter narrows a notification listing.
type NotificationFilter struct {
	UnreadOnly bool
	Type       models.NotificationType
	Limit      int
	Offset     int
}

// NotificationPage is one page of notifications with counters.
type NotificationPage struct {
	Items       []models.Notification
	Total       int
	UnreadCount int
}

// Notifications persists in-app notifications.
type Notifications interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, f NotificationFilter) (NotificationPage, error)
	// MarkNotificationRead fails with common.ErrNotFound for unknown or already read ids.
	MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Users persists accounts for the built-in identity provider.
type Users interface {
	// CreateUser fails with common.ErrConflict when the email is taken.
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpsertOAuthUser returns the user for email, creating it when missing.
	UpsertOAuthUser(ctx context.Context, email, displayName string) (*models.User, error)
}

// Feed delivers row-level change events.
type Feed interface {
	// Listen blocks, invoking fn for every change until ctx is done.
	Listen(ctx context.Context, fn func(models.ChangeEvent)) error
}

// Store is the full persistence capability.
type Store interface {
	Plans
	Members
	Invitations
	Proposals
	Votes
	Messages
	Expenses
	Feedback
	Notifications
	Users
	Feed

	Ping(ctx context.Context) error
	Close()
}
