package domain

import (
	"strings"

	"github.com/bytedance/sonic"
)

// Event types published on push topics.
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

// Entity types carried by events.
const (
	EntityMessage      = "message"
	EntityComment      = "comment"
	EntityTask         = "task"
	EntityNotification = "notification"
)

// Topic kinds.
const (
	TopicChat          = "project_chat"
	TopicComments      = "comments"
	TopicTasks         = "project_tasks"
	TopicNotifications = "notifications"
)

// Event is the envelope delivered on a push topic.
type Event struct {
	ID         string                 `json:"id"`
	Topic      string                 `json:"topic"`
	Type       string                 `json:"type"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	UserID     string                 `json:"userId"`
	Data       sonic.NoCopyRawMessage `json:"data,omitempty"`
	Time       int64                  `json:"time"`
}

func ChatTopic(projectID string) string       { return TopicChat + ":" + projectID }
func CommentsTopic(taskID string) string      { return TopicComments + ":" + taskID }
func TasksTopic(projectID string) string      { return TopicTasks + ":" + projectID }
func NotificationsTopic(userID string) string { return TopicNotifications + ":" + userID }

// SplitTopic returns the kind and scope id of topic.
func SplitTopic(topic string) (kind, id string, ok bool) {
	kind, id, ok = strings.Cut(topic, ":")
	if !ok || kind == "" || id == "" {
		return "", "", false
	}
	switch kind {
	case TopicChat, TopicComments, TopicTasks, TopicNotifications:
		return kind, id, true
	}
	return "", "", false
}
