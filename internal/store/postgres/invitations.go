package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/models"
)

const invitationColumns = `id, plan_id, invited_email, invited_user_id, invited_by, status, created_at, resolved_at`

func scanInvitation(row pgx.Row) (*models.Invitation, error) {
	var (
		inv    models.Invitation
		status string
	)
	if err := row.Scan(&inv.ID, &inv.PlanID, &inv.InvitedEmail, &inv.InvitedUserID, &inv.InvitedBy, &status, &inv.CreatedAt, &inv.ResolvedAt); err != nil {
		return nil, mapError(err)
	}
	inv.Status = models.InvitationStatus(status)
	return &inv, nil
}

func (s *Store) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	inv.InvitedEmail = models.NormalizeEmail(inv.InvitedEmail)
	if inv.Status == "" {
		inv.Status = models.InvitationPending
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO invitations (id, plan_id, invited_email, invited_user_id, invited_by, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, inv.ID, inv.PlanID, inv.InvitedEmail, inv.InvitedUserID, inv.InvitedBy, string(inv.Status)).Scan(&inv.CreatedAt)
	return mapError(err)
}

func (s *Store) GetInvitation(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return scanInvitation(s.pool.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id=$1`, id))
}

func (s *Store) listInvitations(ctx context.Context, where string, arg any) ([]models.Invitation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE `+where+` ORDER BY created_at`, arg)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]models.Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, mapError(rows.Err())
}

func (s *Store) ListInvitations(ctx context.Context, planID uuid.UUID) ([]models.Invitation, error) {
	return s.listInvitations(ctx, "plan_id=$1", planID)
}

func (s *Store) ListInvitationsByEmail(ctx context.Context, email string) ([]models.Invitation, error) {
	return s.listInvitations(ctx, "invited_email=$1", models.NormalizeEmail(email))
}

func (s *Store) AcceptInvitation(ctx context.Context, id uuid.UUID, member models.Member) (*models.Invitation, error) {
	var out *models.Invitation
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		inv, err := scanInvitation(tx.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		member.PlanID = inv.PlanID

		switch inv.Status {
		case models.InvitationDeclined:
			return common.ErrAlreadyResolved
		case models.InvitationAccepted:
			if inv.InvitedUserID == nil || *inv.InvitedUserID != member.UserID {
				return common.ErrAlreadyResolved
			}
		default:
			inv, err = scanInvitation(tx.QueryRow(ctx, `
				UPDATE invitations
				SET status='accepted', invited_user_id=$2, resolved_at=clock_timestamp()
				WHERE id=$1
				RETURNING `+invitationColumns, id, member.UserID))
			if err != nil {
				return err
			}
		}
		if _, err := addMember(ctx, tx, member); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeclineInvitation(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Invitation, error) {
	var out *models.Invitation
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		inv, err := scanInvitation(tx.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		switch inv.Status {
		case models.InvitationAccepted:
			return common.ErrAlreadyResolved
		case models.InvitationDeclined:
			out = inv
			return nil
		}
		out, err = scanInvitation(tx.QueryRow(ctx, `
			UPDATE invitations
			SET status='declined', invited_user_id=$2, resolved_at=clock_timestamp()
			WHERE id=$1
			RETURNING `+invitationColumns, id, userID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
