package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

type recordingPersister struct {
	mu    sync.Mutex
	calls []domain.Status
	gate  chan struct{}
	fail  map[domain.Status]error
}

func (r *recordingPersister) persist(ctx context.Context, projectID, taskID string, s domain.Status) error {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
	return r.fail[s]
}

func (r *recordingPersister) history() []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Status(nil), r.calls...)
}

func boardTasks() []domain.Task {
	return []domain.Task{
		{ID: "t1", ProjectID: "p1", Title: "one", Status: domain.StatusTodo},
		{ID: "t2", ProjectID: "p1", Title: "two", Status: domain.StatusTodo},
		{ID: "t3", ProjectID: "p1", Title: "three", Status: domain.StatusInProgress},
		{ID: "t4", ProjectID: "p1", Title: "four", Status: domain.StatusDone},
	}
}

func flush(t *testing.T, b *Board) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func ids(tasks []domain.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestDragOverColumnAppliesStatus(t *testing.T) {
	b := NewBoard(boardTasks(), BoardOptions{Persist: (&recordingPersister{}).persist})
	b.DragStart("t1")
	b.DragOver("t1", string(domain.StatusDone))
	task, _ := b.Task("t1")
	if task.Status != domain.StatusDone {
		t.Fatalf("expected done, got %s", task.Status)
	}
	if active, ok := b.Active(); !ok || active.ID != "t1" {
		t.Fatalf("expected t1 active")
	}
}

func TestDragOverTaskTakesStatusAndPosition(t *testing.T) {
	b := NewBoard(boardTasks(), BoardOptions{Persist: (&recordingPersister{}).persist})
	b.DragOver("t1", "t3")
	got := ids(b.Column(domain.StatusInProgress))
	if len(got) != 2 || got[0] != "t3" || got[1] != "t1" {
		t.Fatalf("unexpected in_progress column %v", got)
	}
	all := ids(b.Tasks())
	want := []string{"t2", "t3", "t1", "t4"}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, all)
		}
	}
}

func TestDragOverIgnoresNoops(t *testing.T) {
	b := NewBoard(boardTasks(), BoardOptions{Persist: (&recordingPersister{}).persist})
	b.DragOver("t1", "t1")
	b.DragOver("t1", "t2")
	b.DragOver("missing", "t3")
	b.DragOver("t1", "")
	all := ids(b.Tasks())
	if all[0] != "t1" || all[1] != "t2" {
		t.Fatalf("board changed on no-op: %v", all)
	}
}

func TestDragEndWithoutTargetPersistsNothing(t *testing.T) {
	rp := &recordingPersister{}
	b := NewBoard(boardTasks(), BoardOptions{Persist: rp.persist})
	b.DragStart("t1")
	b.DragOver("t1", string(domain.StatusDone))
	b.DragEnd("t1", "")
	flush(t, b)
	if len(rp.history()) != 0 {
		t.Fatalf("expected no writes, got %v", rp.history())
	}
	if _, ok := b.Active(); ok {
		t.Fatalf("active task not cleared")
	}
}

func TestQuickSuccessiveDropsPersistLastStatus(t *testing.T) {
	rp := &recordingPersister{gate: make(chan struct{})}
	b := NewBoard(boardTasks(), BoardOptions{Persist: rp.persist})

	b.DragOver("t1", string(domain.StatusInProgress))
	b.DragEnd("t1", string(domain.StatusInProgress))
	b.DragOver("t1", string(domain.StatusDone))
	b.DragEnd("t1", string(domain.StatusDone))

	b.DragOver("t2", string(domain.StatusInProgress))
	b.DragEnd("t2", string(domain.StatusInProgress))
	b.DragOver("t2", string(domain.StatusDone))
	b.DragEnd("t2", string(domain.StatusDone))
	close(rp.gate)
	flush(t, b)

	h := rp.history()
	if len(h) != 4 {
		t.Fatalf("expected 4 serialized writes, got %v", h)
	}
	for _, id := range []string{"t1", "t2"} {
		task, _ := b.Task(id)
		if task.Status != domain.StatusDone {
			t.Fatalf("%s: expected done, got %s", id, task.Status)
		}
		b.mu.Lock()
		confirmed := b.confirmed[id]
		b.mu.Unlock()
		if confirmed != domain.StatusDone {
			t.Fatalf("%s: last persisted status %s", id, confirmed)
		}
	}
}

func TestPendingWritesAreCoalesced(t *testing.T) {
	rp := &recordingPersister{gate: make(chan struct{})}
	b := NewBoard(boardTasks(), BoardOptions{Persist: rp.persist})
	for _, s := range []domain.Status{domain.StatusInProgress, domain.StatusDone, domain.StatusTodo, domain.StatusDone} {
		b.DragOver("t1", string(s))
		b.DragEnd("t1", string(s))
	}
	close(rp.gate)
	flush(t, b)
	h := rp.history()
	if len(h) != 2 || h[0] != domain.StatusInProgress || h[1] != domain.StatusDone {
		t.Fatalf("expected [in_progress done], got %v", h)
	}
}

func TestFailedDropRollsBack(t *testing.T) {
	alerts := &alertLog{}
	rp := &recordingPersister{fail: map[domain.Status]error{domain.StatusDone: errors.New("boom")}}
	b := NewBoard(boardTasks(), BoardOptions{Persist: rp.persist, Policy: RollbackOnFailure, Alerts: alerts})
	b.DragOver("t1", string(domain.StatusDone))
	b.DragEnd("t1", string(domain.StatusDone))
	task, _ := b.Task("t1")
	if task.Status != domain.StatusDone {
		t.Fatalf("drop must apply immediately, got %s", task.Status)
	}
	flush(t, b)
	task, _ = b.Task("t1")
	if task.Status != domain.StatusTodo {
		t.Fatalf("expected rollback to todo, got %s", task.Status)
	}
	if alerts.count() != 1 {
		t.Fatalf("expected one alert, got %d", alerts.count())
	}
}

func TestFailedDropKeepsLocalStatus(t *testing.T) {
	alerts := &alertLog{}
	rp := &recordingPersister{fail: map[domain.Status]error{domain.StatusDone: errors.New("boom")}}
	b := NewBoard(boardTasks(), BoardOptions{Persist: rp.persist, Alerts: alerts})
	b.DragOver("t1", string(domain.StatusDone))
	b.DragEnd("t1", string(domain.StatusDone))
	flush(t, b)
	task, _ := b.Task("t1")
	if task.Status != domain.StatusDone {
		t.Fatalf("expected drop target kept with default options, got %s", task.Status)
	}
	if alerts.count() != 1 {
		t.Fatalf("expected one alert, got %d", alerts.count())
	}
}

func TestRemoveForgetsWriteState(t *testing.T) {
	rp := &recordingPersister{}
	b := NewBoard(boardTasks(), BoardOptions{Persist: rp.persist})
	b.DragOver("t1", string(domain.StatusDone))
	b.DragEnd("t1", string(domain.StatusDone))
	flush(t, b)
	b.Remove("t1")
	assertForgotten(t, b, "t1")
}

func TestRemoveDuringWriteForgetsAfterWrite(t *testing.T) {
	rp := &recordingPersister{gate: make(chan struct{})}
	b := NewBoard(boardTasks(), BoardOptions{Persist: rp.persist})
	b.DragOver("t2", string(domain.StatusDone))
	b.DragEnd("t2", string(domain.StatusDone))
	b.Remove("t2")
	close(rp.gate)
	flush(t, b)
	if _, ok := b.Task("t2"); ok {
		t.Fatal("removed task came back")
	}
	assertForgotten(t, b, "t2")
}

func assertForgotten(t *testing.T, b *Board, id string) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	_, c := b.confirmed[id]
	_, w := b.writers[id]
	_, s := b.seqs[id]
	if c || w || s {
		t.Fatalf("state left for %s: confirmed=%v writer=%v seq=%v", id, c, w, s)
	}
}

func TestFailureSupersededByNewerDropDoesNotRollBack(t *testing.T) {
	rp := &recordingPersister{
		gate: make(chan struct{}),
		fail: map[domain.Status]error{domain.StatusInProgress: errors.New("boom")},
	}
	b := NewBoard(boardTasks(), BoardOptions{Persist: rp.persist, Policy: RollbackOnFailure})
	b.DragOver("t1", string(domain.StatusInProgress))
	b.DragEnd("t1", string(domain.StatusInProgress))
	b.DragOver("t1", string(domain.StatusDone))
	b.DragEnd("t1", string(domain.StatusDone))
	close(rp.gate)
	flush(t, b)
	task, _ := b.Task("t1")
	if task.Status != domain.StatusDone {
		t.Fatalf("expected done, got %s", task.Status)
	}
}

func TestBoardFeedUpsertsAndRemoves(t *testing.T) {
	b := NewBoard(boardTasks(), BoardOptions{Persist: (&recordingPersister{}).persist})
	feed := newChanFeed[TaskChange]()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = b.Run(ctx, feed)
		close(done)
	}()
	feed.events <- TaskChange{Task: domain.Task{ID: "t5", ProjectID: "p1", Status: domain.StatusTodo}}
	feed.events <- TaskChange{Task: domain.Task{ID: "t4"}, Deleted: true}
	waitFor(t, func() bool {
		_, added := b.Task("t5")
		_, kept := b.Task("t4")
		return added && !kept
	})
	cancel()
	<-done
	b.Close()
}
