package storage

import (
	"context"
	"strings"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

func (s *Store) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var p domain.Profile
	var email *string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, full_name, avatar_url, email FROM profiles WHERE id = $1`, userID).
		Scan(&p.ID, &p.FullName, &p.AvatarURL, &email)
	if err != nil {
		return domain.Profile{}, mapErr("get profile", err)
	}
	if email != nil {
		p.Email = *email
	}
	return p, nil
}

// ProfileByEmail looks a user up by email, case-insensitively.
func (s *Store) ProfileByEmail(ctx context.Context, email string) (domain.Profile, error) {
	var p domain.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, full_name, avatar_url, email FROM profiles WHERE lower(email) = $1`,
		strings.ToLower(strings.TrimSpace(email))).
		Scan(&p.ID, &p.FullName, &p.AvatarURL, &p.Email)
	if err != nil {
		return domain.Profile{}, mapErr("profile by email", err)
	}
	return p, nil
}

// EnsureProfile creates a profile row for a newly seen identity and leaves
// existing rows untouched.
func (s *Store) EnsureProfile(ctx context.Context, p domain.Profile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, full_name, avatar_url, email) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.FullName, p.AvatarURL, nullString(p.Email))
	return mapErr("ensure profile", err)
}

// UpdateProfile stores the editable profile fields of userID.
func (s *Store) UpdateProfile(ctx context.Context, userID string, in domain.ProfileUpdate) (domain.Profile, error) {
	var p domain.Profile
	var email *string
	err := s.db.QueryRowContext(ctx,
		`UPDATE profiles SET full_name = $2, avatar_url = $3 WHERE id = $1
		RETURNING id, full_name, avatar_url, email`,
		userID, strings.TrimSpace(in.FullName), in.AvatarURL).
		Scan(&p.ID, &p.FullName, &p.AvatarURL, &email)
	if err != nil {
		return domain.Profile{}, mapErr("update profile", err)
	}
	if email != nil {
		p.Email = *email
	}
	return p, nil
}
