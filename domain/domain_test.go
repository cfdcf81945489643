package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses {
		got, err := ParseStatus(string(s))
		if err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}
		if got != s {
			t.Fatalf("expected %s, got %s", s, got)
		}
	}
	if _, err := ParseStatus("blocked"); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ParseStatus(""); err == nil {
		t.Fatal("expected empty status to be rejected")
	}
}

func TestObjectPath(t *testing.T) {
	if got := ObjectPath("p1", "u1", "report.final.pdf"); got != "p1/u1.pdf" {
		t.Fatalf("unexpected path %s", got)
	}
	if got := ObjectPath("p1", "u1", "Makefile"); got != "p1/u1" {
		t.Fatalf("unexpected path %s", got)
	}
}

func TestNewCalendarEventBuild(t *testing.T) {
	ev, err := NewCalendarEvent{Title: "Standup", Date: "2024-05-02", StartTime: "09:00", EndTime: "09:15"}.Build("u1", time.UTC)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if ev.Type != ItemEvent {
		t.Fatalf("expected default type event, got %s", ev.Type)
	}
	if ev.End.Sub(ev.Start) != 15*time.Minute {
		t.Fatalf("unexpected duration %v", ev.End.Sub(ev.Start))
	}

	_, err = NewCalendarEvent{Title: "Backwards", Date: "2024-05-02", StartTime: "10:00", EndTime: "10:00"}.Build("u1", time.UTC)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != "End time must be after start time" {
		t.Fatalf("expected end-before-start validation, got %v", err)
	}

	if _, err := (NewCalendarEvent{Title: "x", Date: "2024-05-02", StartTime: "09:00", EndTime: "10:00", Type: "party"}).Build("u1", nil); !IsValidation(err) {
		t.Fatalf("expected invalid type to be rejected, got %v", err)
	}
}

func TestBuildCalendarSortsAndSkipsUndatedTasks(t *testing.T) {
	day := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	later := day.Add(48 * time.Hour)
	tasks := []Task{
		{ID: "t1", Title: "late", DueDate: &later, Status: StatusTodo},
		{ID: "t2", Title: "undated"},
	}
	events := []CalendarEvent{{ID: "e1", Title: "meet", Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour), Type: ItemMeeting}}

	items := BuildCalendar(tasks, events)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "e1" || items[1].ID != "t1" {
		t.Fatalf("unexpected order: %s, %s", items[0].ID, items[1].ID)
	}
	if !items[1].AllDay || items[1].Type != ItemTask {
		t.Fatalf("expected task to be an all-day task item: %+v", items[1])
	}
	if items[0].End == nil || items[0].AllDay {
		t.Fatalf("expected timed event: %+v", items[0])
	}
}

func TestNotificationBuilders(t *testing.T) {
	actor := &Profile{ID: "a", FullName: "Ana"}
	cmd := TaskAssignedNotification(actor, "a", "b", Project{ID: "p", Name: "Apollo"}, Task{ID: "t", ProjectID: "p", Title: "Ship"})
	if cmd.Type != NotificationTaskAssigned || cmd.UserID != "b" {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if !strings.Contains(cmd.Message, "Ana assigned you a new task in Apollo") {
		t.Fatalf("unexpected message %q", cmd.Message)
	}
	if cmd.SelfNotification() {
		t.Fatal("expected notification to another user")
	}

	anon := TaskCommentNotification(nil, "a", Task{ID: "t", AssigneeID: "a", Title: "Ship"})
	if !anon.SelfNotification() {
		t.Fatal("expected self notification to be detected")
	}
	if !strings.HasPrefix(anon.Message, "Someone") {
		t.Fatalf("expected fallback name, got %q", anon.Message)
	}
}

func TestSplitTopic(t *testing.T) {
	kind, id, ok := SplitTopic(ChatTopic("p1"))
	if !ok || kind != TopicChat || id != "p1" {
		t.Fatalf("unexpected split %s %s %v", kind, id, ok)
	}
	if _, _, ok := SplitTopic("unknown:1"); ok {
		t.Fatal("expected unknown kind to be rejected")
	}
	if _, _, ok := SplitTopic("comments:"); ok {
		t.Fatal("expected empty id to be rejected")
	}
}

func TestProfileUpdateValidate(t *testing.T) {
	if err := (ProfileUpdate{FullName: " A "}).Validate(); !IsValidation(err) {
		t.Fatalf("expected short name rejected, got %v", err)
	}
	if err := (ProfileUpdate{FullName: "Al"}).Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
