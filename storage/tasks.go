package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

const taskSelect = `SELECT t.id, t.project_id, t.title, t.description, t.status, t.assignee_id, t.created_by,
	t.due_date, t.created_at, pr.name, a.id, a.full_name, a.avatar_url, a.email
	FROM tasks t
	JOIN projects pr ON pr.id = t.project_id
	LEFT JOIN profiles a ON a.id = t.assignee_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var status string
	var assignee sql.NullString
	var due sql.NullTime
	var pc profileCols
	dest := []any{&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &assignee, &t.CreatedBy, &due, &t.CreatedAt, &t.ProjectName}
	if err := row.Scan(append(dest, pc.dest()...)...); err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.Status(status)
	t.AssigneeID = assignee.String
	t.DueDate = timePtr(due)
	t.Assignee = pc.profile()
	return t, nil
}

func (s *Store) queryTasks(ctx context.Context, op, query string, args ...any) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()
	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, mapErr(op, rows.Err())
}

// ListTasks returns the tasks of projectID in creation order.
func (s *Store) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	return s.queryTasks(ctx, "list tasks", taskSelect+` WHERE t.project_id = $1 ORDER BY t.created_at`, projectID)
}

// GetTask returns a task by id.
func (s *Store) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, taskSelect+` WHERE t.id = $1`, taskID))
	if err != nil {
		return domain.Task{}, mapErr("get task", err)
	}
	return t, nil
}

// CreateTask inserts a new todo task into projectID.
func (s *Store) CreateTask(ctx context.Context, createdBy, projectID string, in domain.NewTask) (domain.Task, error) {
	t := domain.Task{
		ID:          s.newID(),
		ProjectID:   projectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      domain.StatusTodo,
		AssigneeID:  in.AssigneeID,
		CreatedBy:   createdBy,
		DueDate:     in.DueDate,
		CreatedAt:   s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project_id, title, description, status, assignee_id, created_by, due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.ProjectID, t.Title, t.Description, t.Status, nullString(t.AssigneeID), t.CreatedBy, nullTime(t.DueDate), t.CreatedAt)
	if err != nil {
		return domain.Task{}, mapErr("create task", err)
	}
	return t, nil
}

// UpdateTaskStatus sets the status of taskID inside projectID.
func (s *Store) UpdateTaskStatus(ctx context.Context, projectID, taskID string, status domain.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = $3 WHERE id = $1 AND project_id = $2`, taskID, projectID, status)
	if err != nil {
		return mapErr("update task status", err)
	}
	return affected("update task status", res)
}

// DeleteTask removes taskID from projectID.
func (s *Store) DeleteTask(ctx context.Context, projectID, taskID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND project_id = $2`, taskID, projectID)
	if err != nil {
		return mapErr("delete task", err)
	}
	return affected("delete task", res)
}

// PendingTasks returns up to limit unfinished tasks assigned to userID, by due date.
func (s *Store) PendingTasks(ctx context.Context, userID string, limit int) ([]domain.Task, error) {
	return s.queryTasks(ctx, "pending tasks",
		taskSelect+` WHERE t.assignee_id = $1 AND t.status <> 'done' ORDER BY t.due_date ASC NULLS LAST LIMIT $2`,
		userID, limit)
}

// AssignedTasksDue returns tasks assigned to userID due within [start, end].
func (s *Store) AssignedTasksDue(ctx context.Context, userID string, start, end time.Time) ([]domain.Task, error) {
	return s.queryTasks(ctx, "tasks due",
		taskSelect+` WHERE t.assignee_id = $1 AND t.due_date >= $2 AND t.due_date <= $3 ORDER BY t.due_date`,
		userID, start, end)
}
