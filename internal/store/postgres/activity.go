package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"TRIPCOLLAB_BACK-END/internal/models"
)

// ---- messages ----

const messageColumns = `id, plan_id, user_id, user_name, body, created_at, updated_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	if err := row.Scan(&m.ID, &m.PlanID, &m.UserID, &m.UserName, &m.Body, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &m, nil
}

func (s *Store) CreateMessage(ctx context.Context, m *models.Message) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return mapError(s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, plan_id, user_id, user_name, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, m.ID, m.PlanID, m.UserID, m.UserName, m.Body).Scan(&m.CreatedAt, &m.UpdatedAt))
}

func (s *Store) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return scanMessage(s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id))
}

func (s *Store) UpdateMessage(ctx context.Context, id uuid.UUID, body string) (*models.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return scanMessage(s.pool.QueryRow(ctx, `
		UPDATE messages SET body=$2, updated_at=clock_timestamp()
		WHERE id=$1
		RETURNING `+messageColumns, id, body))
}

func (s *Store) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var deleted uuid.UUID
	return mapError(s.pool.QueryRow(ctx, `DELETE FROM messages WHERE id=$1 RETURNING id`, id).Scan(&deleted))
}

func (s *Store) ListMessages(ctx context.Context, planID uuid.UUID) ([]models.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, `SELECT `+messageColumns+` FROM messages WHERE plan_id=$1 ORDER BY created_at, id`, planID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]models.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, mapError(rows.Err())
}

// ---- expenses ----

func (s *Store) CreateExpense(ctx context.Context, e *models.Expense) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return mapError(s.pool.QueryRow(ctx, `
		INSERT INTO expenses (id, plan_id, user_id, user_name, description, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, e.ID, e.PlanID, e.UserID, e.UserName, e.Description, e.Amount).Scan(&e.CreatedAt))
}

func (s *Store) ListExpenses(ctx context.Context, planID uuid.UUID) ([]models.Expense, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
		SELECT id, plan_id, user_id, user_name, description, amount::float8, created_at
		FROM expenses WHERE plan_id=$1
		ORDER BY created_at, id
	`, planID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]models.Expense, 0)
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.PlanID, &e.UserID, &e.UserName, &e.Description, &e.Amount, &e.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		out = append(out, e)
	}
	return out, mapError(rows.Err())
}

// ---- feedback ----

func (s *Store) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return mapError(s.pool.QueryRow(ctx, `
		INSERT INTO feedback (plan_id, user_id, user_name, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, f.PlanID, f.UserID, f.UserName, f.Rating, f.Comment).Scan(&f.CreatedAt))
}

func (s *Store) ListFeedback(ctx context.Context, planID uuid.UUID) ([]models.Feedback, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
		SELECT plan_id, user_id, user_name, rating, comment, created_at
		FROM feedback WHERE plan_id=$1
		ORDER BY created_at
	`, planID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]models.Feedback, 0)
	for rows.Next() {
		var f models.Feedback
		if err := rows.Scan(&f.PlanID, &f.UserID, &f.UserName, &f.Rating, &f.Comment, &f.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		out = append(out, f)
	}
	return out, mapError(rows.Err())
}
