package storage

import (
	"context"
	"database/sql"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// InsertNotification stores n. An empty id is generated; a repeated id fails
// with ErrDuplicate so redelivered queue messages are detectable.
func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if n.ID == "" {
		n.ID = s.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, actor_id, type, title, message, link, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.UserID, nullString(n.ActorID), n.Type, n.Title, n.Message, n.Link, n.Read, n.CreatedAt)
	if err != nil {
		return domain.Notification{}, mapErr("insert notification", err)
	}
	return n, nil
}

// ListNotifications returns the newest limit notifications of userID.
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, actor_id, type, title, message, link, is_read, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, mapErr("list notifications", err)
	}
	defer rows.Close()
	out := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		var actor sql.NullString
		var typ string
		if err := rows.Scan(&n.ID, &n.UserID, &actor, &typ, &n.Title, &n.Message, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, mapErr("scan notification", err)
		}
		n.ActorID = actor.String
		n.Type = domain.NotificationType(typ)
		out = append(out, n)
	}
	return out, mapErr("list notifications", rows.Err())
}

// UnreadCount counts userID's unread notifications.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID).Scan(&n)
	if err != nil {
		return 0, mapErr("unread count", err)
	}
	return n, nil
}

// MarkRead marks one of userID's notifications read.
func (s *Store) MarkRead(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapErr("mark read", err)
	}
	return affected("mark read", res)
}

// MarkAllRead marks every unread notification of userID read.
func (s *Store) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	return mapErr("mark all read", err)
}
