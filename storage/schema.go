package storage

import (
	"context"
	"fmt"
)

// Schema creates every relational table. Statements are idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		email TEXT UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		color TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL REFERENCES profiles(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS project_members (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		role TEXT NOT NULL CHECK (role IN ('owner', 'member')),
		joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (project_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK (status IN ('todo', 'in_progress', 'done')),
		assignee_id TEXT REFERENCES profiles(id) ON DELETE SET NULL,
		created_by TEXT NOT NULL REFERENCES profiles(id),
		due_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_project_idx ON tasks (project_id)`,
	`CREATE INDEX IF NOT EXISTS tasks_assignee_due_idx ON tasks (assignee_id, due_date)`,
	`CREATE TABLE IF NOT EXISTS task_comments (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES profiles(id),
		content TEXT NOT NULL,
		client_token TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS task_comments_token_idx ON task_comments (user_id, client_token) WHERE client_token IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL REFERENCES profiles(id),
		content TEXT NOT NULL,
		client_token TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS messages_project_created_idx ON messages (project_id, created_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS messages_token_idx ON messages (sender_id, client_token) WHERE client_token IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		file_path TEXT NOT NULL,
		size BIGINT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		uploaded_by TEXT NOT NULL REFERENCES profiles(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS calendar_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('event', 'meeting', 'reminder')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (end_time > start_time)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		actor_id TEXT,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		link TEXT NOT NULL DEFAULT '',
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_created_idx ON notifications (user_id, created_at DESC)`,
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
