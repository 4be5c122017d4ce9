package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"TRIPCOLLAB_BACK-END/internal/models"
)

const voteColumns = `proposal_id, plan_id, user_id, type, created_at, updated_at`

func scanVote(row pgx.Row) (*models.Vote, error) {
	var (
		v   models.Vote
		typ string
	)
	if err := row.Scan(&v.ProposalID, &v.PlanID, &v.UserID, &typ, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	v.Type = models.VoteType(typ)
	return &v, nil
}

// ToggleVote serializes concurrent toggles by the same user on the same
// proposal with a transaction scoped advisory lock, then applies exactly one
// of insert, switch or delete. The unique (proposal_id, user_id) constraint
// backs it up.
func (s *Store) ToggleVote(ctx context.Context, v models.Vote) (models.VoteOutcome, error) {
	var outcome models.VoteOutcome
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))`,
			v.ProposalID.String(), v.UserID.String(),
		); err != nil {
			return mapError(err)
		}

		if err := tx.QueryRow(ctx, `SELECT plan_id FROM proposals WHERE id=$1`, v.ProposalID).Scan(&v.PlanID); err != nil {
			return mapError(err)
		}

		var current string
		err := tx.QueryRow(ctx, `SELECT type FROM votes WHERE proposal_id=$1 AND user_id=$2`, v.ProposalID, v.UserID).Scan(&current)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			_, err = tx.Exec(ctx, `
				INSERT INTO votes (proposal_id, plan_id, user_id, type)
				VALUES ($1, $2, $3, $4)
			`, v.ProposalID, v.PlanID, v.UserID, string(v.Type))
			outcome = models.VoteAdded
		case err != nil:
			return mapError(err)
		case models.VoteType(current) == v.Type:
			_, err = tx.Exec(ctx, `DELETE FROM votes WHERE proposal_id=$1 AND user_id=$2`, v.ProposalID, v.UserID)
			outcome = models.VoteRemoved
		default:
			_, err = tx.Exec(ctx, `
				UPDATE votes SET type=$3, updated_at=clock_timestamp()
				WHERE proposal_id=$1 AND user_id=$2
			`, v.ProposalID, v.UserID, string(v.Type))
			outcome = models.VoteSwitched
		}
		return mapError(err)
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *Store) listVotes(ctx context.Context, where string, arg any) ([]models.Vote, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, `SELECT `+voteColumns+` FROM votes WHERE `+where+` ORDER BY created_at`, arg)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]models.Vote, 0)
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, mapError(rows.Err())
}

func (s *Store) ListVotes(ctx context.Context, proposalID uuid.UUID) ([]models.Vote, error) {
	return s.listVotes(ctx, "proposal_id=$1", proposalID)
}

func (s *Store) ListPlanVotes(ctx context.Context, planID uuid.UUID) ([]models.Vote, error) {
	return s.listVotes(ctx, "plan_id=$1", planID)
}
