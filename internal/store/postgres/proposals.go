package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"TRIPCOLLAB_BACK-END/internal/models"
)

const proposalColumns = `id, plan_id, author_id, author_name, category, title, details, created_at`

func scanProposal(row pgx.Row) (*models.Proposal, error) {
	var (
		p        models.Proposal
		category string
		details  []byte
	)
	if err := row.Scan(&p.ID, &p.PlanID, &p.AuthorID, &p.AuthorName, &category, &p.Title, &details, &p.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	p.Category = models.Category(category)
	d, err := models.DecodeDetails(p.Category, details)
	if err != nil {
		return nil, err
	}
	p.Details = d
	return &p, nil
}

func insertProposal(ctx context.Context, q pgxQuerier, p *models.Proposal, createdAt *time.Time) error {
	details, err := jsonParam(p.Details)
	if err != nil {
		return err
	}
	if details == nil {
		details = "{}"
	}
	return mapError(q.QueryRow(ctx, `
		INSERT INTO proposals (id, plan_id, author_id, author_name, category, title, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, COALESCE($8::timestamptz, clock_timestamp()))
		RETURNING created_at
	`, p.ID, p.PlanID, p.AuthorID, p.AuthorName, string(p.Category), p.Title, details, createdAt).Scan(&p.CreatedAt))
}

func (s *Store) CreateProposal(ctx context.Context, p *models.Proposal) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return insertProposal(ctx, s.pool, p, nil)
}

func (s *Store) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return scanProposal(s.pool.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id=$1`, id))
}

func listProposals(ctx context.Context, q pgxQuerier, planID uuid.UUID, category models.Category) ([]models.Proposal, error) {
	rows, err := q.Query(ctx, `
		SELECT `+proposalColumns+`
		FROM proposals
		WHERE plan_id=$1 AND ($2::text = '' OR category = $2::text)
		ORDER BY created_at, id
	`, planID, string(category))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]models.Proposal, 0)
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, mapError(rows.Err())
}

func (s *Store) ListProposals(ctx context.Context, planID uuid.UUID, category models.Category) ([]models.Proposal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return listProposals(ctx, s.pool, planID, category)
}

func (s *Store) DeleteProposal(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var deleted uuid.UUID
	return mapError(s.pool.QueryRow(ctx, `DELETE FROM proposals WHERE id=$1 RETURNING id`, id).Scan(&deleted))
}

// SeedProposals claims the per-plan seed marker and inserts the batch in one
// transaction. A concurrent caller blocks on the marker row and then inserts nothing.
func (s *Store) SeedProposals(ctx context.Context, planID uuid.UUID, proposals []models.Proposal) (int, error) {
	inserted := 0
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `INSERT INTO proposal_seeds (plan_id) VALUES ($1) ON CONFLICT (plan_id) DO NOTHING`, planID)
		if err != nil {
			return mapError(err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		populated := make(map[models.Category]bool)
		rows, err := tx.Query(ctx, `SELECT DISTINCT category FROM proposals WHERE plan_id=$1`, planID)
		if err != nil {
			return mapError(err)
		}
		for rows.Next() {
			var c string
			if err := rows.Scan(&c); err != nil {
				rows.Close()
				return mapError(err)
			}
			populated[models.Category(c)] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return mapError(err)
		}

		// explicit timestamps keep batch order stable; now() is fixed inside a transaction
		base := time.Now().UTC().Truncate(time.Microsecond)
		for i := range proposals {
			p := proposals[i]
			if populated[p.Category] {
				continue
			}
			p.PlanID = planID
			at := base.Add(time.Duration(inserted) * time.Microsecond)
			if err := insertProposal(ctx, tx, &p, &at); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
