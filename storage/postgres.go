package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// Store is the relational store for projects, tasks, chat, files, calendar
// and notifications. Every read that returns project data is scoped to the
// caller's memberships.
type Store struct {
	db    *sql.DB
	newID func() string
	now   func() time.Time
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, newID: uuid.NewString, now: time.Now}
}

// Open connects to Postgres using a lib/pq DSN.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewStore(db), nil
}

// DB exposes the underlying handle for schema setup.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

const uniqueViolation = "23505"

// mapErr converts driver errors into the domain taxonomy.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicate)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrPersistence, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// profileCols scans an optional joined profile.
type profileCols struct {
	id, name, avatar, email sql.NullString
}

func (p *profileCols) dest() []any { return []any{&p.id, &p.name, &p.avatar, &p.email} }

func (p *profileCols) profile() *domain.Profile {
	if !p.id.Valid {
		return nil
	}
	return &domain.Profile{ID: p.id.String, FullName: p.name.String, AvatarURL: p.avatar.String, Email: p.email.String}
}
