package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// memStore is an in-memory Store and Memberships used by handler tests.
type memStore struct {
	mu            sync.Mutex
	seq           int
	profiles      map[string]domain.Profile
	projects      map[string]domain.Project
	members       map[string]map[string]domain.Role
	tasks         map[string]domain.Task
	messages      []domain.Message
	comments      []domain.Comment
	files         map[string]domain.File
	events        map[string]domain.CalendarEvent
	notifications []domain.Notification
	evicted       []string
	pingErr       error
	insertFileErr error
	messageWrites int
}

func newMemStore() *memStore {
	return &memStore{
		profiles: map[string]domain.Profile{},
		projects: map[string]domain.Project{},
		members:  map[string]map[string]domain.Role{},
		tasks:    map[string]domain.Task{},
		files:    map[string]domain.File{},
		events:   map[string]domain.CalendarEvent{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

// seedProject creates a project owned by owner with the extra members.
func (m *memStore) seedProject(id, name, owner string, members ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[id] = domain.Project{ID: id, Name: name, Color: "#fff", CreatedBy: owner}
	m.members[id] = map[string]domain.Role{owner: domain.RoleOwner}
	for _, u := range members {
		m.members[id][u] = domain.RoleMember
	}
}

func (m *memStore) seedProfile(p domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

func (m *memStore) seedTask(t domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) ListProjects(_ context.Context, userID string) ([]domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Project
	for id, p := range m.projects {
		if _, ok := m.members[id][userID]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) RecentProjects(ctx context.Context, userID string, limit int) ([]domain.Project, error) {
	out, _ := m.ListProjects(ctx, userID)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetProject(_ context.Context, userID, projectID string) (domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[projectID][userID]; !ok {
		return domain.Project{}, domain.ErrNotFound
	}
	return m.projects[projectID], nil
}

func (m *memStore) CreateProject(_ context.Context, ownerID string, in domain.NewProject) (domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := domain.Project{ID: m.nextID("project"), Name: in.Name, Color: in.Color, CreatedBy: ownerID}
	m.projects[p.ID] = p
	m.members[p.ID] = map[string]domain.Role{ownerID: domain.RoleOwner}
	return p, nil
}

func (m *memStore) UpdateProject(_ context.Context, projectID string, in domain.NewProject) (domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return domain.Project{}, domain.ErrNotFound
	}
	p.Name, p.Color = in.Name, in.Color
	m.projects[projectID] = p
	return p, nil
}

func (m *memStore) MemberRole(_ context.Context, projectID, userID string) (domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.members[projectID][userID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return role, nil
}

func (m *memStore) EvictMember(_ context.Context, projectID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evicted = append(m.evicted, projectID+":"+userID)
}

func (m *memStore) ListMembers(_ context.Context, projectID string) ([]domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Member
	for u, role := range m.members[projectID] {
		out = append(out, domain.Member{ProjectID: projectID, UserID: u, Role: role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *memStore) AddMember(_ context.Context, projectID, userID string) (domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[projectID][userID]; ok {
		return domain.Member{}, fmt.Errorf("add member: %w", domain.ErrDuplicate)
	}
	m.members[projectID][userID] = domain.RoleMember
	return domain.Member{ProjectID: projectID, UserID: userID, Role: domain.RoleMember}, nil
}

func (m *memStore) RemoveMember(_ context.Context, projectID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[projectID][userID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.members[projectID], userID)
	return nil
}

func (m *memStore) GetProfile(_ context.Context, userID string) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ProfileByEmail(_ context.Context, email string) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return domain.Profile{}, domain.ErrNotFound
}

func (m *memStore) EnsureProfile(_ context.Context, p domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; !ok {
		m.profiles[p.ID] = p
	}
	return nil
}

func (m *memStore) UpdateProfile(_ context.Context, userID string, in domain.ProfileUpdate) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	p.FullName, p.AvatarURL = in.FullName, in.AvatarURL
	m.profiles[userID] = p
	return p, nil
}

func (m *memStore) ListTasks(_ context.Context, projectID string) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Task
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetTask(_ context.Context, taskID string) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memStore) CreateTask(_ context.Context, createdBy, projectID string, in domain.NewTask) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := domain.Task{
		ID:          m.nextID("task"),
		ProjectID:   projectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      domain.StatusTodo,
		AssigneeID:  in.AssigneeID,
		CreatedBy:   createdBy,
		DueDate:     in.DueDate,
	}
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memStore) UpdateTaskStatus(_ context.Context, projectID, taskID string, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.ProjectID != projectID {
		return domain.ErrNotFound
	}
	t.Status = status
	m.tasks[taskID] = t
	return nil
}

func (m *memStore) DeleteTask(_ context.Context, projectID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.ProjectID != projectID {
		return domain.ErrNotFound
	}
	delete(m.tasks, taskID)
	return nil
}

func (m *memStore) PendingTasks(_ context.Context, userID string, limit int) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Task
	for _, t := range m.tasks {
		if t.AssigneeID == userID && t.Status != domain.StatusDone {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) AssignedTasksDue(_ context.Context, userID string, start, end time.Time) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Task
	for _, t := range m.tasks {
		if t.AssigneeID == userID && t.DueDate != nil && !t.DueDate.Before(start) && t.DueDate.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) ListMessages(_ context.Context, projectID string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.messages {
		if msg.ProjectID == projectID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) InsertMessage(_ context.Context, msg domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messageWrites++
	for _, existing := range m.messages {
		if msg.ClientToken != "" && existing.SenderID == msg.SenderID && existing.ClientToken == msg.ClientToken {
			return domain.Message{}, fmt.Errorf("insert message: %w", domain.ErrDuplicate)
		}
	}
	msg.ID = m.nextID("msg")
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memStore) MessageByToken(_ context.Context, senderID, token string) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.SenderID == senderID && msg.ClientToken == token {
			return msg, nil
		}
	}
	return domain.Message{}, domain.ErrNotFound
}

func (m *memStore) ListComments(_ context.Context, taskID string) ([]domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Comment
	for _, c := range m.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) InsertComment(_ context.Context, c domain.Comment) (domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID("comment")
	if p, ok := m.profiles[c.UserID]; ok {
		c.Author = &p
	}
	m.comments = append(m.comments, c)
	return c, nil
}

func (m *memStore) ListFiles(_ context.Context, projectID string) ([]domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.File
	for _, f := range m.files {
		if f.ProjectID == projectID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memStore) InsertFile(_ context.Context, f domain.File) (domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertFileErr != nil {
		return domain.File{}, m.insertFileErr
	}
	f.ID = m.nextID("file")
	m.files[f.ID] = f
	return f, nil
}

func (m *memStore) FileForMember(_ context.Context, userID, fileID string) (domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return domain.File{}, domain.ErrNotFound
	}
	if _, member := m.members[f.ProjectID][userID]; !member {
		return domain.File{}, domain.ErrNotFound
	}
	return f, nil
}

func (m *memStore) EventsInRange(_ context.Context, userID string, start, end time.Time) ([]domain.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CalendarEvent
	for _, ev := range m.events {
		if ev.UserID == userID && !ev.Start.Before(start) && ev.Start.Before(end) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) InsertEvent(_ context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = m.nextID("event")
	m.events[ev.ID] = ev
	return ev, nil
}

func (m *memStore) DeleteEvent(_ context.Context, userID, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok || ev.UserID != userID {
		return domain.ErrNotFound
	}
	delete(m.events, eventID)
	return nil
}

func (m *memStore) ListNotifications(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) UnreadCount(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, item := range m.notifications {
		if item.UserID == userID && !item.Read {
			n++
		}
	}
	return n, nil
}

func (m *memStore) MarkRead(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notifications {
		if n.ID == id && n.UserID == userID {
			m.notifications[i].Read = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) MarkAllRead(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notifications {
		if n.UserID == userID {
			m.notifications[i].Read = true
		}
	}
	return nil
}

type memSettings struct {
	mu   sync.Mutex
	data map[string]domain.Settings
}

func (s *memSettings) FetchSettings(_ context.Context, userID string) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.data[userID]; ok {
		return st, nil
	}
	return domain.DefaultSettings(), nil
}

func (s *memSettings) SaveSettings(_ context.Context, userID string, st domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = map[string]domain.Settings{}
	}
	s.data[userID] = st
	return nil
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
}

func (o *memObjects) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.objects == nil {
		o.objects = map[string][]byte{}
	}
	o.objects[key] = data
	return nil
}

func (o *memObjects) Remove(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	o.removed = append(o.removed, key)
	return nil
}

func (o *memObjects) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://objects.test/%s?expires=%d", key, int(ttl.Seconds())), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Events() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}

type recordingSink struct {
	mu   sync.Mutex
	cmds []domain.NotificationCommand
	err  error
}

func (s *recordingSink) Enqueue(_ context.Context, cmd domain.NotificationCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.cmds = append(s.cmds, cmd)
	return nil
}

func (s *recordingSink) Commands() []domain.NotificationCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.NotificationCommand(nil), s.cmds...)
}

// headerAuth treats the bearer value as the user id.
type headerAuth struct{}

func (headerAuth) IdentityFromAuthHeader(h string) (Identity, error) {
	user := strings.TrimPrefix(h, "Bearer ")
	if user == "" || user == h {
		return Identity{}, errors.New("unauthorized")
	}
	return Identity{UserID: user, Email: user + "@example.com"}, nil
}

func (a headerAuth) UserIDFromAuthHeader(h string) (string, error) {
	id, err := a.IdentityFromAuthHeader(h)
	return id.UserID, err
}

type testServer struct {
	e         *echo.Echo
	store     *memStore
	settings  *memSettings
	objects   *memObjects
	publisher *recordingPublisher
	sink      *recordingSink
	hook      *test.Hook
}

func newTestServer() *testServer {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	ts := &testServer{
		e:         echo.New(),
		store:     newMemStore(),
		settings:  &memSettings{},
		objects:   &memObjects{},
		publisher: &recordingPublisher{},
		sink:      &recordingSink{},
		hook:      hook,
	}
	Register(ts.e, &Server{
		Store:       ts.store,
		Settings:    ts.settings,
		Memberships: ts.store,
		Objects:     ts.objects,
		Publisher:   ts.publisher,
		Notifier:    NewDispatcher(ts.sink, logger, DispatcherConfig{Workers: 0}),
		Auth:        headerAuth{},
		Logger:      logger,
	})
	return ts
}
