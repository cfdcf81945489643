package storage

import (
	"context"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

const fileCols = `f.id, f.project_id, f.name, f.file_path, f.size, f.type, f.uploaded_by, f.created_at`

func scanFile(row rowScanner) (domain.File, error) {
	var f domain.File
	err := row.Scan(&f.ID, &f.ProjectID, &f.Name, &f.Path, &f.Size, &f.Type, &f.UploadedBy, &f.CreatedAt)
	return f, err
}

// ListFiles returns the file metadata of projectID, newest first.
func (s *Store) ListFiles(ctx context.Context, projectID string) ([]domain.File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileCols+` FROM files f WHERE f.project_id = $1 ORDER BY f.created_at DESC`, projectID)
	if err != nil {
		return nil, mapErr("list files", err)
	}
	defer rows.Close()
	out := []domain.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, mapErr("scan file", err)
		}
		out = append(out, f)
	}
	return out, mapErr("list files", rows.Err())
}

// InsertFile records metadata for an uploaded object.
func (s *Store) InsertFile(ctx context.Context, f domain.File) (domain.File, error) {
	f.ID = s.newID()
	f.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, project_id, name, file_path, size, type, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.ProjectID, f.Name, f.Path, f.Size, f.Type, f.UploadedBy, f.CreatedAt)
	if err != nil {
		return domain.File{}, mapErr("insert file", err)
	}
	return f, nil
}

// FileForMember returns file metadata when userID is a member of the file's project.
func (s *Store) FileForMember(ctx context.Context, userID, fileID string) (domain.File, error) {
	f, err := scanFile(s.db.QueryRowContext(ctx,
		`SELECT `+fileCols+` FROM files f
		JOIN project_members m ON m.project_id = f.project_id AND m.user_id = $2
		WHERE f.id = $1`, fileID, userID))
	if err != nil {
		return domain.File{}, mapErr("get file", err)
	}
	return f, nil
}
