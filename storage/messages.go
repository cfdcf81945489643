package storage

import (
	"context"
	"database/sql"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// ListMessages returns the chat history of projectID, oldest first.
func (s *Store) ListMessages(ctx context.Context, projectID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.project_id, m.sender_id, m.content, m.client_token, m.created_at,
			p.id, p.full_name, p.avatar_url, p.email
		FROM messages m
		LEFT JOIN profiles p ON p.id = m.sender_id
		WHERE m.project_id = $1
		ORDER BY m.created_at ASC`, projectID)
	if err != nil {
		return nil, mapErr("list messages", err)
	}
	defer rows.Close()
	out := []domain.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, mapErr("scan message", err)
		}
		out = append(out, m)
	}
	return out, mapErr("list messages", rows.Err())
}

func scanMessage(row rowScanner) (domain.Message, error) {
	var m domain.Message
	var token sql.NullString
	var pc profileCols
	if err := row.Scan(append([]any{&m.ID, &m.ProjectID, &m.SenderID, &m.Content, &token, &m.CreatedAt}, pc.dest()...)...); err != nil {
		return domain.Message{}, err
	}
	m.ClientToken = token.String
	m.Sender = pc.profile()
	return m, nil
}

// InsertMessage stores a chat message. A repeated client token from the same
// sender fails with ErrDuplicate.
func (s *Store) InsertMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	m.ID = s.newID()
	m.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, project_id, sender_id, content, client_token, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ProjectID, m.SenderID, m.Content, nullString(m.ClientToken), m.CreatedAt)
	if err != nil {
		return domain.Message{}, mapErr("insert message", err)
	}
	return m, nil
}

// MessageByToken finds the message senderID stored with token.
func (s *Store) MessageByToken(ctx context.Context, senderID, token string) (domain.Message, error) {
	m, err := scanMessage(s.db.QueryRowContext(ctx,
		`SELECT m.id, m.project_id, m.sender_id, m.content, m.client_token, m.created_at,
			p.id, p.full_name, p.avatar_url, p.email
		FROM messages m
		LEFT JOIN profiles p ON p.id = m.sender_id
		WHERE m.sender_id = $1 AND m.client_token = $2`, senderID, token))
	if err != nil {
		return domain.Message{}, mapErr("message by token", err)
	}
	return m, nil
}

const commentSelect = `SELECT c.id, c.task_id, c.user_id, c.content, c.client_token, c.created_at,
	p.id, p.full_name, p.avatar_url, p.email
	FROM task_comments c
	LEFT JOIN profiles p ON p.id = c.user_id`

func scanComment(row rowScanner) (domain.Comment, error) {
	var c domain.Comment
	var token sql.NullString
	var pc profileCols
	if err := row.Scan(append([]any{&c.ID, &c.TaskID, &c.UserID, &c.Content, &token, &c.CreatedAt}, pc.dest()...)...); err != nil {
		return domain.Comment{}, err
	}
	c.ClientToken = token.String
	c.Author = pc.profile()
	return c, nil
}

// ListComments returns the comments of taskID, oldest first.
func (s *Store) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	rows, err := s.db.QueryContext(ctx, commentSelect+` WHERE c.task_id = $1 ORDER BY c.created_at ASC`, taskID)
	if err != nil {
		return nil, mapErr("list comments", err)
	}
	defer rows.Close()
	out := []domain.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, mapErr("scan comment", err)
		}
		out = append(out, c)
	}
	return out, mapErr("list comments", rows.Err())
}

// InsertComment stores a comment and returns it with the author profile.
func (s *Store) InsertComment(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	id := s.newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_comments (id, task_id, user_id, content, client_token, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, c.TaskID, c.UserID, c.Content, nullString(c.ClientToken), s.now().UTC())
	if err != nil {
		return domain.Comment{}, mapErr("insert comment", err)
	}
	out, err := scanComment(s.db.QueryRowContext(ctx, commentSelect+` WHERE c.id = $1`, id))
	if err != nil {
		return domain.Comment{}, mapErr("load comment", err)
	}
	return out, nil
}
