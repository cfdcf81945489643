package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// ListProjects returns the projects userID belongs to, newest first, with
// member profiles.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	return s.listProjects(ctx, userID, 0)
}

// RecentProjects returns at most limit of userID's newest projects.
func (s *Store) RecentProjects(ctx context.Context, userID string, limit int) ([]domain.Project, error) {
	return s.listProjects(ctx, userID, limit)
}

func (s *Store) listProjects(ctx context.Context, userID string, limit int) ([]domain.Project, error) {
	query := `SELECT p.id, p.name, p.color, p.description, p.created_by, p.created_at
		FROM projects p
		JOIN project_members m ON m.project_id = p.id
		WHERE m.user_id = $1
		ORDER BY p.created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("list projects", err)
	}
	defer rows.Close()
	projects := []domain.Project{}
	index := map[string]int{}
	var ids []string
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Color, &p.Description, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, mapErr("scan project", err)
		}
		index[p.ID] = len(projects)
		ids = append(ids, p.ID)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list projects", err)
	}
	if len(ids) == 0 {
		return projects, nil
	}
	members, err := s.membersOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.Profile != nil {
			i := index[m.ProjectID]
			projects[i].Members = append(projects[i].Members, *m.Profile)
		}
	}
	return projects, nil
}

// GetProject returns projectID when userID is a member.
func (s *Store) GetProject(ctx context.Context, userID, projectID string) (domain.Project, error) {
	var p domain.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT p.id, p.name, p.color, p.description, p.created_by, p.created_at
		FROM projects p
		JOIN project_members m ON m.project_id = p.id AND m.user_id = $2
		WHERE p.id = $1`, projectID, userID).
		Scan(&p.ID, &p.Name, &p.Color, &p.Description, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return domain.Project{}, mapErr("get project", err)
	}
	return p, nil
}

// CreateProject inserts the project and the owner membership in one transaction.
func (s *Store) CreateProject(ctx context.Context, ownerID string, in domain.NewProject) (domain.Project, error) {
	p := domain.Project{
		ID:          s.newID(),
		Name:        in.Name,
		Color:       in.Color,
		Description: in.Description,
		CreatedBy:   ownerID,
		CreatedAt:   s.now().UTC(),
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, mapErr("begin create project", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO projects (id, name, color, description, created_by, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.Color, p.Description, p.CreatedBy, p.CreatedAt); err != nil {
		return domain.Project{}, mapErr("insert project", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)`,
		p.ID, ownerID, domain.RoleOwner, p.CreatedAt); err != nil {
		return domain.Project{}, mapErr("insert owner membership", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, mapErr("commit create project", err)
	}
	return p, nil
}

// UpdateProject changes the name, color and description of projectID.
func (s *Store) UpdateProject(ctx context.Context, projectID string, in domain.NewProject) (domain.Project, error) {
	var p domain.Project
	err := s.db.QueryRowContext(ctx,
		`UPDATE projects SET name = $2, color = $3, description = $4 WHERE id = $1
		RETURNING id, name, color, description, created_by, created_at`,
		projectID, in.Name, in.Color, in.Description).
		Scan(&p.ID, &p.Name, &p.Color, &p.Description, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return domain.Project{}, mapErr("update project", err)
	}
	return p, nil
}

// MemberRole returns userID's role in projectID, or ErrNotFound for non-members.
func (s *Store) MemberRole(ctx context.Context, projectID, userID string) (domain.Role, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID).Scan(&role)
	if err != nil {
		return "", mapErr("member role", err)
	}
	return domain.Role(role), nil
}

// ListMembers returns the members of projectID with their profiles.
func (s *Store) ListMembers(ctx context.Context, projectID string) ([]domain.Member, error) {
	return s.membersOf(ctx, []string{projectID})
}

func (s *Store) membersOf(ctx context.Context, projectIDs []string) ([]domain.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.project_id, m.user_id, m.role, m.joined_at, p.id, p.full_name, p.avatar_url, p.email
		FROM project_members m
		LEFT JOIN profiles p ON p.id = m.user_id
		WHERE m.project_id = ANY($1)
		ORDER BY m.joined_at`, pq.Array(projectIDs))
	if err != nil {
		return nil, mapErr("list members", err)
	}
	defer rows.Close()
	members := []domain.Member{}
	for rows.Next() {
		var m domain.Member
		var role string
		var pc profileCols
		if err := rows.Scan(append([]any{&m.ProjectID, &m.UserID, &role, &m.JoinedAt}, pc.dest()...)...); err != nil {
			return nil, mapErr("scan member", err)
		}
		m.Role = domain.Role(role)
		m.Profile = pc.profile()
		members = append(members, m)
	}
	return members, mapErr("list members", rows.Err())
}

// AddMember adds userID to projectID as a plain member. A second insert for
// the same pair fails with ErrDuplicate.
func (s *Store) AddMember(ctx context.Context, projectID, userID string) (domain.Member, error) {
	m := domain.Member{ProjectID: projectID, UserID: userID, Role: domain.RoleMember, JoinedAt: s.now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)`,
		m.ProjectID, m.UserID, m.Role, m.JoinedAt)
	if err != nil {
		return domain.Member{}, mapErr("add member", err)
	}
	return m, nil
}

// RemoveMember deletes userID's membership of projectID.
func (s *Store) RemoveMember(ctx context.Context, projectID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return mapErr("remove member", err)
	}
	return affected("remove member", res)
}

func affected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}
