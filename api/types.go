package api

import (
	"context"
	"io"
	"time"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// ProjectStore covers projects and their memberships.
type ProjectStore interface {
	ListProjects(ctx context.Context, userID string) ([]domain.Project, error)
	RecentProjects(ctx context.Context, userID string, limit int) ([]domain.Project, error)
	GetProject(ctx context.Context, userID, projectID string) (domain.Project, error)
	CreateProject(ctx context.Context, ownerID string, in domain.NewProject) (domain.Project, error)
	UpdateProject(ctx context.Context, projectID string, in domain.NewProject) (domain.Project, error)
	ListMembers(ctx context.Context, projectID string) ([]domain.Member, error)
	AddMember(ctx context.Context, projectID, userID string) (domain.Member, error)
	RemoveMember(ctx context.Context, projectID, userID string) error
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	ProfileByEmail(ctx context.Context, email string) (domain.Profile, error)
	EnsureProfile(ctx context.Context, p domain.Profile) error
	UpdateProfile(ctx context.Context, userID string, in domain.ProfileUpdate) (domain.Profile, error)
}

type TaskStore interface {
	ListTasks(ctx context.Context, projectID string) ([]domain.Task, error)
	GetTask(ctx context.Context, taskID string) (domain.Task, error)
	CreateTask(ctx context.Context, createdBy, projectID string, in domain.NewTask) (domain.Task, error)
	UpdateTaskStatus(ctx context.Context, projectID, taskID string, status domain.Status) error
	DeleteTask(ctx context.Context, projectID, taskID string) error
	PendingTasks(ctx context.Context, userID string, limit int) ([]domain.Task, error)
	AssignedTasksDue(ctx context.Context, userID string, start, end time.Time) ([]domain.Task, error)
}

type ChatStore interface {
	ListMessages(ctx context.Context, projectID string) ([]domain.Message, error)
	InsertMessage(ctx context.Context, m domain.Message) (domain.Message, error)
	MessageByToken(ctx context.Context, senderID, token string) (domain.Message, error)
	ListComments(ctx context.Context, taskID string) ([]domain.Comment, error)
	InsertComment(ctx context.Context, c domain.Comment) (domain.Comment, error)
}

type FileStore interface {
	ListFiles(ctx context.Context, projectID string) ([]domain.File, error)
	InsertFile(ctx context.Context, f domain.File) (domain.File, error)
	FileForMember(ctx context.Context, userID, fileID string) (domain.File, error)
}

type CalendarStore interface {
	EventsInRange(ctx context.Context, userID string, start, end time.Time) ([]domain.CalendarEvent, error)
	InsertEvent(ctx context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error)
	DeleteEvent(ctx context.Context, userID, eventID string) error
}

type NotificationStore interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// Store abstracts relational persistence for handlers.
type Store interface {
	ProjectStore
	ProfileStore
	TaskStore
	ChatStore
	FileStore
	CalendarStore
	NotificationStore
	Ping(ctx context.Context) error
}

// SettingsStore persists per-user UI preferences.
type SettingsStore interface {
	FetchSettings(ctx context.Context, userID string) (domain.Settings, error)
	SaveSettings(ctx context.Context, userID string, s domain.Settings) error
}

// Memberships answers role lookups through a cache that must be told about
// membership changes.
type Memberships interface {
	MemberRole(ctx context.Context, projectID, userID string) (domain.Role, error)
	EvictMember(ctx context.Context, projectID, userID string)
}

// ObjectStore holds uploaded file bodies.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Publisher pushes change events to realtime subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// NotificationSink accepts notification commands for asynchronous delivery.
type NotificationSink interface {
	Enqueue(ctx context.Context, cmd domain.NotificationCommand) error
}

// Identity is the verified caller of a request.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// Authenticator is implemented by types able to resolve callers from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
	IdentityFromAuthHeader(string) (Identity, error)
}

// Deduper prevents processing of duplicate client submissions.
type Deduper interface {
	// Add records the key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, userID, key string) error
}
