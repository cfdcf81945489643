package view

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// RollbackPolicy decides what happens to a dropped task when persisting its
// new status fails.
type RollbackPolicy int

const (
	// KeepLocal leaves the dropped status in place until the next reload.
	KeepLocal RollbackPolicy = iota
	// RollbackOnFailure restores the last confirmed status unless the task
	// was dragged again since.
	RollbackOnFailure
)

// StatusPersister stores a task's status.
type StatusPersister func(ctx context.Context, projectID, taskID string, status domain.Status) error

// BoardOptions configures a Board.
type BoardOptions struct {
	Persist StatusPersister
	Policy  RollbackPolicy
	Alerts  AlertSink
	Logger  *log.Logger
}

type statusWrite struct {
	status domain.Status
	seq    uint64
}

type taskWriter struct {
	inflight bool
	pending  *statusWrite
}

// Board is the Kanban view of one project's tasks.
type Board struct {
	mu        sync.Mutex
	tasks     []domain.Task
	active    string
	confirmed map[string]domain.Status
	seqs      map[string]uint64
	writers   map[string]*taskWriter
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	persist StatusPersister
	policy  RollbackPolicy
	alerts  AlertSink
	logger  *log.Logger
}

func NewBoard(tasks []domain.Task, opts BoardOptions) *Board {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Board{
		confirmed: make(map[string]domain.Status),
		seqs:      make(map[string]uint64),
		writers:   make(map[string]*taskWriter),
		ctx:       ctx,
		cancel:    cancel,
		persist:   opts.Persist,
		policy:    opts.Policy,
		alerts:    opts.Alerts,
		logger:    opts.Logger,
	}
	if b.alerts == nil {
		b.alerts = discardAlerts{}
	}
	if b.logger == nil {
		b.logger = log.StandardLogger()
	}
	b.reset(tasks)
	return b
}

func (b *Board) reset(tasks []domain.Task) {
	b.tasks = append(b.tasks[:0], tasks...)
	for _, t := range tasks {
		b.confirmed[t.ID] = t.Status
	}
}

// Tasks returns every task in board order.
func (b *Board) Tasks() []domain.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Task(nil), b.tasks...)
}

// Column returns the tasks with status s in board order.
func (b *Board) Column(s domain.Status) []domain.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Task
	for _, t := range b.tasks {
		if t.Status == s {
			out = append(out, t)
		}
	}
	return out
}

// Task returns the task with id.
func (b *Board) Task(id string) (domain.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.index(id); i >= 0 {
		return b.tasks[i], true
	}
	return domain.Task{}, false
}

// Active is the task being dragged, if any.
func (b *Board) Active() (domain.Task, bool) {
	b.mu.Lock()
	id := b.active
	b.mu.Unlock()
	if id == "" {
		return domain.Task{}, false
	}
	return b.Task(id)
}

func (b *Board) index(id string) int {
	for i, t := range b.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (b *Board) DragStart(id string) {
	b.mu.Lock()
	if b.index(id) >= 0 {
		b.active = id
	}
	b.mu.Unlock()
}

// DragOver previews a drop. Hovering a column applies its status; hovering a
// task in another column applies that task's status and moves the active
// task to its position.
func (b *Board) DragOver(activeID, overID string) {
	if overID == "" || activeID == overID {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ai := b.index(activeID)
	if ai < 0 {
		return
	}
	if s, err := domain.ParseStatus(overID); err == nil {
		b.tasks[ai].Status = s
		return
	}
	oi := b.index(overID)
	if oi < 0 || b.tasks[ai].Status == b.tasks[oi].Status {
		return
	}
	b.tasks[ai].Status = b.tasks[oi].Status
	moveTask(b.tasks, ai, oi)
}

func moveTask(tasks []domain.Task, from, to int) {
	t := tasks[from]
	if from < to {
		copy(tasks[from:to], tasks[from+1:to+1])
	} else {
		copy(tasks[to+1:from+1], tasks[to:from])
	}
	tasks[to] = t
}

// DragEnd completes a drag. Without a drop target nothing is persisted;
// otherwise the task's current local status is written. Writes for one task
// are serialized and coalesced so the last drop wins.
func (b *Board) DragEnd(activeID, overID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = ""
	if overID == "" || b.closed {
		return
	}
	i := b.index(activeID)
	if i < 0 {
		return
	}
	t := b.tasks[i]
	b.seqs[t.ID]++
	req := statusWrite{status: t.Status, seq: b.seqs[t.ID]}
	w := b.writers[t.ID]
	if w == nil {
		w = &taskWriter{}
		b.writers[t.ID] = w
	}
	if w.inflight {
		w.pending = &req
		return
	}
	w.inflight = true
	b.wg.Add(1)
	go b.write(t.ProjectID, t.ID, req)
}

func (b *Board) write(projectID, taskID string, req statusWrite) {
	defer b.wg.Done()
	for {
		err := b.persist(b.ctx, projectID, taskID, req.status)

		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return
		}
		w := b.writers[taskID]
		var alert *Alert
		if err != nil {
			b.logger.WithFields(log.Fields{
				"task":   taskID,
				"status": req.status,
			}).WithError(err).Error("task status update failed")
			alert = &Alert{Level: LevelError, Title: "Failed to update task", Message: err.Error()}
			if b.policy == RollbackOnFailure && w.pending == nil && req.seq == b.seqs[taskID] {
				if i := b.index(taskID); i >= 0 {
					b.tasks[i].Status = b.confirmed[taskID]
				}
			}
		} else {
			b.confirmed[taskID] = req.status
		}
		next := w.pending
		w.pending = nil
		if next == nil {
			w.inflight = false
			if b.index(taskID) < 0 {
				b.forget(taskID)
			}
		}
		b.mu.Unlock()

		if alert != nil {
			b.alerts.Alert(*alert)
		}
		if next == nil {
			return
		}
		req = *next
	}
}

// Flush waits until no status write is in flight or ctx ends.
func (b *Board) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Upsert merges a task confirmed by the server. A task with a local write in
// flight keeps its local status.
func (b *Board) Upsert(t domain.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	i := b.index(t.ID)
	if i < 0 {
		b.tasks = append(b.tasks, t)
		b.confirmed[t.ID] = t.Status
		return
	}
	if w := b.writers[t.ID]; w != nil && w.inflight {
		t.Status = b.tasks[i].Status
	} else {
		b.confirmed[t.ID] = t.Status
	}
	b.tasks[i] = t
}

// Remove drops a task deleted on the server.
func (b *Board) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.index(id); i >= 0 {
		b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
	}
	if w := b.writers[id]; w != nil && w.inflight {
		// the writer cleans up once its last write returns
		return
	}
	b.forget(id)
}

func (b *Board) forget(id string) {
	delete(b.confirmed, id)
	delete(b.writers, id)
	delete(b.seqs, id)
}

// Run applies task events from feed until ctx ends or the feed closes.
func (b *Board) Run(ctx context.Context, feed Feed[TaskChange]) error {
	events := feed.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.ctx.Done():
			return nil
		case ch, ok := <-events:
			if !ok {
				return nil
			}
			if ch.Deleted {
				b.Remove(ch.Task.ID)
			} else {
				b.Upsert(ch.Task)
			}
		case <-feed.Lagged():
			b.logger.Warn("task feed lagged, board may be stale until reload")
		}
	}
}

// Close stops in-flight writes from touching the board.
func (b *Board) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cancel()
	b.wg.Wait()
}

// TaskChange is a task event delivered on the board's feed.
type TaskChange struct {
	Task    domain.Task
	Deleted bool
}
