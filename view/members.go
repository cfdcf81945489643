package view

import (
	"context"
	"errors"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// ErrCancelled is returned when the user declines a confirmation.
var ErrCancelled = errors.New("view: cancelled")

// Confirm asks the user to confirm a destructive action.
type Confirm func(prompt string) bool

// MemberRow is one line of the project members list.
type MemberRow struct {
	Member domain.Member
	IsYou  bool
	// CanRemove controls whether the removal control is rendered.
	CanRemove bool
}

// MemberRows builds the members list. Only the owner sees removal controls,
// and never on their own row.
func MemberRows(members []domain.Member, currentUserID string, isOwner bool) []MemberRow {
	rows := make([]MemberRow, 0, len(members))
	for _, m := range members {
		you := m.UserID == currentUserID
		rows = append(rows, MemberRow{Member: m, IsYou: you, CanRemove: isOwner && !you})
	}
	return rows
}

// RemoveMember removes row's member after confirmation.
func RemoveMember(ctx context.Context, row MemberRow, confirm Confirm, remove func(ctx context.Context, userID string) error) error {
	if !row.CanRemove {
		return domain.ErrForbidden
	}
	name := row.Member.Profile.DisplayName("this member")
	return Confirmed(ctx, confirm, "Remove "+name+" from the project?", func(ctx context.Context) error {
		return remove(ctx, row.Member.UserID)
	})
}

// Confirmed runs action only when confirm accepts prompt.
func Confirmed(ctx context.Context, confirm Confirm, prompt string, action func(context.Context) error) error {
	if confirm != nil && !confirm(prompt) {
		return ErrCancelled
	}
	return action(ctx)
}
