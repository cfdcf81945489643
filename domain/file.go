package domain

import (
	"path"
	"strings"
	"time"
)

// FilesBucket is the object bucket holding project uploads.
const FilesBucket = "project_files"

// DownloadURLTTL is how long a signed download link stays valid.
const DownloadURLTTL = 60 * time.Second

// File is metadata for an object uploaded to a project.
type File struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Name       string    `json:"name"`
	Path       string    `json:"file_path"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// ObjectPath builds the storage key for an upload: <project>/<unique>.<ext>.
func ObjectPath(projectID, unique, fileName string) string {
	ext := strings.TrimPrefix(path.Ext(fileName), ".")
	if ext == "" {
		return projectID + "/" + unique
	}
	return projectID + "/" + unique + "." + ext
}
