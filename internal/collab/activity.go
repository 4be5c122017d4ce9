package collab

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/models"
)

const (
	maxMessageLength     = 4000
	maxExpenseDescLength = 500
	maxCommentLength     = 2000
)

func validateBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", common.NewValidationError("body", "is required")
	}
	if len(body) > maxMessageLength {
		return "", common.NewValidationError("body", fmt.Sprintf("must be at most %d characters", maxMessageLength))
	}
	return body, nil
}

// ---- messages ----

// PostMessage adds a discussion entry. The caller may supply the id so an
// optimistic copy can be matched by id as well as by content.
func (s *Service) PostMessage(ctx context.Context, planID uuid.UUID, author models.Identity, id uuid.UUID, body string) (*models.Message, error) {
	body, err := validateBody(body)
	if err != nil {
		return nil, err
	}
	_, member, err := s.RequireMember(ctx, planID, author.UserID)
	if err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	m := &models.Message{
		ID:       id,
		PlanID:   planID,
		UserID:   author.UserID,
		UserName: firstNonEmpty(author.Name, member.UserName),
		Body:     body,
	}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

func (s *Service) planMessage(ctx context.Context, planID, messageID uuid.UUID) (*models.Message, error) {
	m, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if m.PlanID != planID {
		return nil, common.ErrNotFound
	}
	return m, nil
}

// EditMessage replaces the body. Author only.
func (s *Service) EditMessage(ctx context.Context, planID, messageID, actor uuid.UUID, body string) (*models.Message, error) {
	body, err := validateBody(body)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.RequireMember(ctx, planID, actor); err != nil {
		return nil, err
	}
	m, err := s.planMessage(ctx, planID, messageID)
	if err != nil {
		return nil, err
	}
	if m.UserID != actor {
		return nil, common.ErrForbidden
	}
	return s.store.UpdateMessage(ctx, messageID, body)
}

// DeleteMessage removes a message. The author or the plan owner may delete.
func (s *Service) DeleteMessage(ctx context.Context, planID, messageID, actor uuid.UUID) error {
	plan, _, err := s.RequireMember(ctx, planID, actor)
	if err != nil {
		return err
	}
	m, err := s.planMessage(ctx, planID, messageID)
	if err != nil {
		return err
	}
	if m.UserID != actor && plan.OwnerID != actor {
		return common.ErrForbidden
	}
	return s.store.DeleteMessage(ctx, messageID)
}

func (s *Service) ListMessages(ctx context.Context, planID, userID uuid.UUID) ([]models.Message, error) {
	if _, _, err := s.RequireMember(ctx, planID, userID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, planID)
}

// ---- expenses ----

// LogExpense records spend while the trip is ongoing.
func (s *Service) LogExpense(ctx context.Context, planID uuid.UUID, actor models.Identity, description string, amount float64) (*models.Expense, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, common.NewValidationError("description", "is required")
	}
	if len(description) > maxExpenseDescLength {
		return nil, common.NewValidationError("description", fmt.Sprintf("must be at most %d characters", maxExpenseDescLength))
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return nil, common.NewValidationError("amount", "must be a non-negative number")
	}
	plan, member, err := s.RequireMember(ctx, planID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if plan.Status != models.PlanStatusOngoing {
		return nil, common.ErrPhaseClosed
	}
	e := &models.Expense{
		ID:          uuid.New(),
		PlanID:      planID,
		UserID:      actor.UserID,
		UserName:    firstNonEmpty(actor.Name, member.UserName),
		Description: description,
		Amount:      roundCents(amount),
	}
	if err := s.store.CreateExpense(ctx, e); err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	return e, nil
}

func (s *Service) ListExpenses(ctx context.Context, planID, userID uuid.UUID) ([]models.Expense, error) {
	if _, _, err := s.RequireMember(ctx, planID, userID); err != nil {
		return nil, err
	}
	return s.store.ListExpenses(ctx, planID)
}

// ExpenseSummary totals a plan's expenses and each member's balance.
func (s *Service) ExpenseSummary(ctx context.Context, planID, userID uuid.UUID) (ExpenseReport, error) {
	if _, _, err := s.RequireMember(ctx, planID, userID); err != nil {
		return ExpenseReport{}, err
	}
	members, err := s.store.ListMembers(ctx, planID)
	if err != nil {
		return ExpenseReport{}, fmt.Errorf("list members: %w", err)
	}
	expenses, err := s.store.ListExpenses(ctx, planID)
	if err != nil {
		return ExpenseReport{}, fmt.Errorf("list expenses: %w", err)
	}
	return SummarizeExpenses(members, expenses), nil
}

// ---- feedback ----

// SubmitFeedback records actor's rating while the feedback window is open.
func (s *Service) SubmitFeedback(ctx context.Context, planID uuid.UUID, actor models.Identity, rating int, comment string) (*models.Feedback, error) {
	if rating < 1 || rating > 5 {
		return nil, common.NewValidationError("rating", "must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > maxCommentLength {
		return nil, common.NewValidationError("comment", fmt.Sprintf("must be at most %d characters", maxCommentLength))
	}
	plan, member, err := s.RequireMember(ctx, planID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !plan.FeedbackOpen(s.now()) {
		return nil, common.ErrPhaseClosed
	}
	f := &models.Feedback{
		PlanID:   planID,
		UserID:   actor.UserID,
		UserName: firstNonEmpty(actor.Name, member.UserName),
		Rating:   rating,
		Comment:  comment,
	}
	if err := s.store.CreateFeedback(ctx, f); err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}
	return f, nil
}

func (s *Service) ListFeedback(ctx context.Context, planID, userID uuid.UUID) ([]models.Feedback, error) {
	if _, _, err := s.RequireMember(ctx, planID, userID); err != nil {
		return nil, err
	}
	return s.store.ListFeedback(ctx, planID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
