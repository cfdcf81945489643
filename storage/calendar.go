package storage

import (
	"context"
	"time"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// EventsInRange returns userID's events starting within [start, end].
func (s *Store) EventsInRange(ctx context.Context, userID string, start, end time.Time) ([]domain.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, description, start_time, end_time, type
		FROM calendar_events
		WHERE user_id = $1 AND start_time >= $2 AND start_time <= $3
		ORDER BY start_time`, userID, start, end)
	if err != nil {
		return nil, mapErr("list events", err)
	}
	defer rows.Close()
	out := []domain.CalendarEvent{}
	for rows.Next() {
		var ev domain.CalendarEvent
		var typ string
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Title, &ev.Description, &ev.Start, &ev.End, &typ); err != nil {
			return nil, mapErr("scan event", err)
		}
		ev.Type = domain.ItemType(typ)
		out = append(out, ev)
	}
	return out, mapErr("list events", rows.Err())
}

func (s *Store) InsertEvent(ctx context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error) {
	ev.ID = s.newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calendar_events (id, user_id, title, description, start_time, end_time, type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.UserID, ev.Title, ev.Description, ev.Start, ev.End, ev.Type)
	if err != nil {
		return domain.CalendarEvent{}, mapErr("insert event", err)
	}
	return ev, nil
}

// DeleteEvent removes an event owned by userID.
func (s *Store) DeleteEvent(ctx context.Context, userID, eventID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return mapErr("delete event", err)
	}
	return affected("delete event", res)
}
