package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/store"
)

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	data, err := jsonParam(n.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	var message, actionURL *string
	if n.Message != "" {
		message = &n.Message
	}
	if n.ActionURL != "" {
		actionURL = &n.ActionURL
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return mapError(s.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, data, action_url)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
		RETURNING created_at
	`, n.ID, n.UserID, string(n.Type), n.Title, message, data, actionURL).Scan(&n.CreatedAt))
}

func (s *Store) ListNotifications(ctx context.Context, userID uuid.UUID, f store.NotificationFilter) (store.NotificationPage, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	page := store.NotificationPage{Items: make([]models.Notification, 0)}
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM notifications WHERE user_id=$1 AND read=false`, userID,
	).Scan(&page.UnreadCount); err != nil {
		return page, mapError(err)
	}

	// parameterized filters only
	args := []any{userID}
	where := `WHERE user_id=$1`
	argNum := 2
	if f.UnreadOnly {
		where += " AND read=false"
	}
	if f.Type != "" {
		where += fmt.Sprintf(" AND type=$%d", argNum)
		args = append(args, string(f.Type))
		argNum++
	}

	if err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(1) FROM notifications %s`, where), args...,
	).Scan(&page.Total); err != nil {
		return page, mapError(err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, user_id, type, title, COALESCE(message, ''), data, COALESCE(action_url, ''), read, created_at
		FROM notifications %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, argNum, argNum+1), args...)
	if err != nil {
		return page, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			n       models.Notification
			typ     string
			dataRaw []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &dataRaw, &n.ActionURL, &n.Read, &n.CreatedAt); err != nil {
			return page, mapError(err)
		}
		n.Type = models.NotificationType(typ)
		if len(dataRaw) > 0 && string(dataRaw) != "null" {
			if err := json.Unmarshal(dataRaw, &n.Data); err != nil {
				s.log.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("unreadable notification data")
				n.Data = nil
			}
		}
		page.Items = append(page.Items, n)
	}
	return page, mapError(rows.Err())
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read=true WHERE id=$1 AND user_id=$2 AND read=false`, id, userID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET read=true WHERE user_id=$1 AND read=false`, userID)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}
