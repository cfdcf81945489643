package domain

import (
	"fmt"
	"time"
)

// NotificationType classifies a notification.
type NotificationType string

const (
	NotificationTaskAssigned  NotificationType = "task_assigned"
	NotificationTaskComment   NotificationType = "task_comment"
	NotificationProjectInvite NotificationType = "project_invite"
	NotificationInfo          NotificationType = "info"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTaskAssigned, NotificationTaskComment, NotificationProjectInvite, NotificationInfo:
		return true
	}
	return false
}

// NotificationListLimit is how many notifications a user sees at once.
const NotificationListLimit = 20

// Notification is an alert delivered to a single user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	ActorID   string           `json:"actor_id,omitempty"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	Read      bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

func (n Notification) Key() string      { return n.ID }
func (n Notification) AuthorID() string { return n.ActorID }
func (n Notification) Body() string     { return n.Message }
func (n Notification) Token() string    { return "" }

// NotificationCommand asks the notification worker to deliver a notification.
type NotificationCommand struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	ActorID   string           `json:"actorId,omitempty"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// SelfNotification reports whether the command would notify its own actor.
func (c NotificationCommand) SelfNotification() bool {
	return c.ActorID != "" && c.ActorID == c.UserID
}

// TaskAssignedNotification builds the command sent when a task is assigned.
func TaskAssignedNotification(actor *Profile, actorID, assigneeID string, project Project, task Task) NotificationCommand {
	projectName := project.Name
	if projectName == "" {
		projectName = "a project"
	}
	return NotificationCommand{
		UserID:  assigneeID,
		ActorID: actorID,
		Type:    NotificationTaskAssigned,
		Title:   "New Task Assigned",
		Message: fmt.Sprintf("%s assigned you a new task in %s: %q", actor.DisplayName("Someone"), projectName, task.Title),
		Link:    fmt.Sprintf("/dashboard/projects/%s/tasks?task=%s", task.ProjectID, task.ID),
	}
}

// TaskCommentNotification builds the command sent to an assignee when someone comments.
func TaskCommentNotification(actor *Profile, actorID string, task Task) NotificationCommand {
	return NotificationCommand{
		UserID:  task.AssigneeID,
		ActorID: actorID,
		Type:    NotificationTaskComment,
		Title:   "New Comment",
		Message: fmt.Sprintf("%s commented on %q", actor.DisplayName("Someone"), task.Title),
		Link:    fmt.Sprintf("/dashboard/projects/%s/tasks?task=%s", task.ProjectID, task.ID),
	}
}

// ProjectInviteNotification builds the command sent to a newly added member.
func ProjectInviteNotification(actor *Profile, actorID, userID string, project Project) NotificationCommand {
	return NotificationCommand{
		UserID:  userID,
		ActorID: actorID,
		Type:    NotificationProjectInvite,
		Title:   "Added to Project",
		Message: fmt.Sprintf("%s added you to %s", actor.DisplayName("Someone"), project.Name),
		Link:    fmt.Sprintf("/dashboard/projects/%s", project.ID),
	}
}
