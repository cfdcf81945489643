package domain

import (
	"sort"
	"strings"
	"time"
)

// ItemType classifies calendar entries.
type ItemType string

const (
	ItemTask     ItemType = "task"
	ItemEvent    ItemType = "event"
	ItemMeeting  ItemType = "meeting"
	ItemReminder ItemType = "reminder"
)

// CalendarEvent is a user owned entry with a start and end time.
type CalendarEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start_time"`
	End         time.Time `json:"end_time"`
	Type        ItemType  `json:"type"`
}

// CalendarItem is the merged projection of tasks and events shown on the calendar.
type CalendarItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end,omitempty"`
	Type        ItemType   `json:"type"`
	Status      Status     `json:"status,omitempty"`
	AllDay      bool       `json:"isAllDay"`
}

// NewCalendarEvent is the form submitted to create an event. Date is YYYY-MM-DD,
// times are HH:MM.
type NewCalendarEvent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Type        string `json:"type"`
}

// Build validates the form and converts it into an event for userID.
func (n NewCalendarEvent) Build(userID string, loc *time.Location) (CalendarEvent, error) {
	if strings.TrimSpace(n.Title) == "" {
		return CalendarEvent{}, NewValidationError("Title is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation("2006-01-02T15:04", n.Date+"T"+n.StartTime, loc)
	if err != nil {
		return CalendarEvent{}, NewValidationError("Invalid start time")
	}
	end, err := time.ParseInLocation("2006-01-02T15:04", n.Date+"T"+n.EndTime, loc)
	if err != nil {
		return CalendarEvent{}, NewValidationError("Invalid end time")
	}
	if !end.After(start) {
		return CalendarEvent{}, NewValidationError("End time must be after start time")
	}
	typ := ItemType(n.Type)
	switch typ {
	case "":
		typ = ItemEvent
	case ItemEvent, ItemMeeting, ItemReminder:
	default:
		return CalendarEvent{}, NewValidationError("Invalid event type")
	}
	return CalendarEvent{
		UserID:      userID,
		Title:       n.Title,
		Description: n.Description,
		Start:       start.UTC(),
		End:         end.UTC(),
		Type:        typ,
	}, nil
}

// BuildCalendar merges due tasks and events into a single list ordered by start.
// Tasks without a due date are skipped.
func BuildCalendar(tasks []Task, events []CalendarEvent) []CalendarItem {
	items := make([]CalendarItem, 0, len(tasks)+len(events))
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		items = append(items, CalendarItem{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Start:       *t.DueDate,
			Type:        ItemTask,
			Status:      t.Status,
			AllDay:      true,
		})
	}
	for _, ev := range events {
		end := ev.End
		items = append(items, CalendarItem{
			ID:          ev.ID,
			Title:       ev.Title,
			Description: ev.Description,
			Start:       ev.Start,
			End:         &end,
			Type:        ev.Type,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Start.Before(items[j].Start) })
	return items
}
