package domain

import (
	"strings"
	"time"
)

// Role is a member's role inside a project.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Profile is the public face of a user.
type Profile struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Email     string `json:"email,omitempty"`
}

// DisplayName falls back to fallback when the profile has no name.
func (p *Profile) DisplayName(fallback string) string {
	if p == nil || strings.TrimSpace(p.FullName) == "" {
		return fallback
	}
	return p.FullName
}

// Project groups tasks, chat, and files for a set of members.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	Members     []Profile `json:"members,omitempty"`
}

// Member links a user to a project.
type Member struct {
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Profile   *Profile  `json:"profile,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
}

// NewProject carries the fields accepted when creating a project.
type NewProject struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

func (n NewProject) Validate() error {
	if strings.TrimSpace(n.Name) == "" || strings.TrimSpace(n.Color) == "" {
		return NewValidationError("Name and color are required")
	}
	return nil
}

// ProfileUpdate carries editable profile fields.
type ProfileUpdate struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (u ProfileUpdate) Validate() error {
	if len([]rune(strings.TrimSpace(u.FullName))) < 2 {
		return NewValidationError("Name must be at least 2 characters")
	}
	return nil
}
