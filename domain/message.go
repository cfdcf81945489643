package domain

import "time"

// Message is a chat entry inside a project.
type Message struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	SenderID    string    `json:"sender_id"`
	Sender      *Profile  `json:"sender,omitempty"`
	Content     string    `json:"content"`
	ClientToken string    `json:"client_token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (m Message) Key() string      { return m.ID }
func (m Message) AuthorID() string { return m.SenderID }
func (m Message) Body() string     { return m.Content }
func (m Message) Token() string    { return m.ClientToken }

// Comment is a note attached to a task.
type Comment struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	UserID      string    `json:"user_id"`
	Author      *Profile  `json:"profiles,omitempty"`
	Content     string    `json:"content"`
	ClientToken string    `json:"client_token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c Comment) Key() string      { return c.ID }
func (c Comment) AuthorID() string { return c.UserID }
func (c Comment) Body() string     { return c.Content }
func (c Comment) Token() string    { return c.ClientToken }

// Draft is a text payload submitted by a user together with its correlation token.
type Draft struct {
	Content     string `json:"content"`
	ClientToken string `json:"client_token,omitempty"`
}
