package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/store"
)

const planColumns = `id, owner_id, destination, dates, description, status, document, feedback_closes_at, created_at, updated_at`

func scanPlan(row pgx.Row) (*models.Plan, error) {
	var (
		p      models.Plan
		status string
		doc    []byte
	)
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Destination, &p.Dates, &p.Description, &status, &doc, &p.FeedbackClosesAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	st, err := models.ParsePlanStatus(status)
	if err != nil {
		return nil, err
	}
	p.Status = st
	if len(doc) > 0 && string(doc) != "null" {
		var d models.PlanDocument
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, fmt.Errorf("decode plan document: %w", err)
		}
		d.Normalize()
		p.Document = &d
	}
	return &p, nil
}

func (s *Store) CreatePlan(ctx context.Context, plan *models.Plan, owner models.Member) error {
	doc, err := jsonParam(plan.Document)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO plans (id, owner_id, destination, dates, description, status, document)
			VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
			RETURNING created_at, updated_at
		`, plan.ID, plan.OwnerID, plan.Destination, plan.Dates, plan.Description, string(plan.Status), doc,
		).Scan(&plan.CreatedAt, &plan.UpdatedAt)
		if err != nil {
			return mapError(err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO plan_members (plan_id, user_id, user_name, role)
			VALUES ($1, $2, $3, $4)
		`, plan.ID, owner.UserID, owner.UserName, string(owner.Role))
		return mapError(err)
	})
}

func (s *Store) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return scanPlan(s.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id=$1`, id))
}

func (s *Store) ListPlansForUser(ctx context.Context, userID uuid.UUID) ([]models.Plan, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.owner_id, p.destination, p.dates, p.description, p.status, p.document,
		       p.feedback_closes_at, p.created_at, p.updated_at
		FROM plans p
		JOIN plan_members m ON m.plan_id = p.id
		WHERE m.user_id = $1
		ORDER BY p.created_at DESC
	`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]models.Plan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, mapError(rows.Err())
}

func (s *Store) UpdatePlanDraft(ctx context.Context, id uuid.UUID, draft store.PlanDraft) (*models.Plan, error) {
	doc, err := jsonParam(draft.Document)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	p, err := scanPlan(s.pool.QueryRow(ctx, `
		UPDATE plans SET
			destination = COALESCE($2::text, destination),
			dates       = COALESCE($3::text, dates),
			description = COALESCE($4::text, description),
			document    = COALESCE($5::jsonb, document),
			updated_at  = clock_timestamp()
		WHERE id = $1 AND status = 'planning'
		RETURNING `+planColumns,
		id, draft.Destination, draft.Dates, draft.Description, doc))
	if errors.Is(err, common.ErrNotFound) {
		return nil, s.explainMiss(ctx, id, common.ErrPhaseClosed)
	}
	return p, err
}

func (s *Store) TransitionPlan(ctx context.Context, id uuid.UUID, from, to models.PlanStatus, change store.PlanChange) (*models.Plan, error) {
	if !from.CanTransitionTo(to) {
		return nil, common.ErrInvalidTransition
	}
	doc, err := jsonParam(change.Document)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	p, err := scanPlan(s.pool.QueryRow(ctx, `
		UPDATE plans SET
			status             = $3,
			document           = COALESCE($4::jsonb, document),
			dates              = COALESCE($5::text, dates),
			feedback_closes_at = COALESCE($6::timestamptz, feedback_closes_at),
			updated_at         = clock_timestamp()
		WHERE id = $1 AND status = $2
		RETURNING `+planColumns,
		id, string(from), string(to), doc, change.Dates, change.FeedbackClosesAt))
	if errors.Is(err, common.ErrNotFound) {
		return nil, s.explainMiss(ctx, id, common.ErrInvalidTransition)
	}
	return p, err
}

// explainMiss distinguishes a missing plan from a failed conditional update.
func (s *Store) explainMiss(ctx context.Context, id uuid.UUID, conditional error) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM plans WHERE id=$1)`, id).Scan(&exists); err != nil {
		return mapError(err)
	}
	if !exists {
		return common.ErrNotFound
	}
	return conditional
}

// ---- members ----

const memberColumns = `plan_id, user_id, user_name, role, joined_at`

func scanMember(row pgx.Row) (*models.Member, error) {
	var (
		m    models.Member
		role string
	)
	if err := row.Scan(&m.PlanID, &m.UserID, &m.UserName, &role, &m.JoinedAt); err != nil {
		return nil, mapError(err)
	}
	m.Role = models.MemberRole(role)
	return &m, nil
}

func addMember(ctx context.Context, q pgxQuerier, m models.Member) (bool, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO plan_members (plan_id, user_id, user_name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (plan_id, user_id) DO NOTHING
	`, m.PlanID, m.UserID, m.UserName, string(m.Role))
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AddMember(ctx context.Context, m models.Member) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return addMember(ctx, s.pool, m)
}

func (s *Store) GetMember(ctx context.Context, planID, userID uuid.UUID) (*models.Member, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return scanMember(s.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM plan_members WHERE plan_id=$1 AND user_id=$2`, planID, userID))
}

func (s *Store) ListMembers(ctx context.Context, planID uuid.UUID) ([]models.Member, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, `SELECT `+memberColumns+` FROM plan_members WHERE plan_id=$1 ORDER BY joined_at`, planID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]models.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, mapError(rows.Err())
}
