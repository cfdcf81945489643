package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

const me = "user-1"

type chanFeed[T any] struct {
	events chan T
	lagged chan struct{}
	once   sync.Once
	closed chan struct{}
}

func newChanFeed[T any]() *chanFeed[T] {
	return &chanFeed[T]{events: make(chan T, 16), lagged: make(chan struct{}, 1), closed: make(chan struct{})}
}

func (f *chanFeed[T]) Events() <-chan T        { return f.events }
func (f *chanFeed[T]) Lagged() <-chan struct{} { return f.lagged }
func (f *chanFeed[T]) Close() error            { f.once.Do(func() { close(f.closed) }); return nil }
func (f *chanFeed[T]) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

type alertLog struct {
	mu     sync.Mutex
	alerts []Alert
}

func (a *alertLog) Alert(al Alert) {
	a.mu.Lock()
	a.alerts = append(a.alerts, al)
	a.mu.Unlock()
}

func (a *alertLog) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

func draftMessage(id, content, token string, at time.Time) domain.Message {
	return domain.Message{ID: id, ProjectID: "p1", SenderID: me, Content: content, ClientToken: token, CreatedAt: at}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type chat struct {
	view *View[domain.Message]
	rec  *Reconciler[domain.Message]
	ins  *Inserter[domain.Message]
}

func newChat(persist Persister[domain.Message], fetch Fetcher[domain.Message], alerts AlertSink) chat {
	v := New(Options[domain.Message]{CurrentUserID: me, Fetch: fetch, Alerts: alerts})
	r := NewReconciler(v)
	return chat{view: v, rec: r, ins: NewInserter(v, r, draftMessage, persist)}
}

func TestSubmitAppendsProvisionalAndClearsInput(t *testing.T) {
	release := make(chan struct{})
	c := newChat(func(ctx context.Context, d domain.Message) (domain.Message, error) {
		<-release
		d.ID = "m1"
		return d, nil
	}, nil, nil)
	c.view.SetInput("  hello ")
	p, err := c.ins.Submit(context.Background(), c.view.Input())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	items := c.view.Items()
	if len(items) != 1 || items[0].Content != "hello" || c.view.Pending() != 1 {
		t.Fatalf("unexpected provisional state: %+v", items)
	}
	if items[0].ID[:5] != "temp-" || items[0].ClientToken == "" {
		t.Fatalf("bad placeholder %+v", items[0])
	}
	if c.view.Input() != "" {
		t.Fatalf("input not cleared")
	}
	if _, err := c.ins.Submit(context.Background(), "again"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(release)
	if _, err := p.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	items = c.view.Items()
	if len(items) != 1 || items[0].ID != "m1" || c.view.Pending() != 0 {
		t.Fatalf("expected confirmed entry, got %+v", items)
	}
}

func TestSubmitRejectsBlankInput(t *testing.T) {
	c := newChat(func(ctx context.Context, d domain.Message) (domain.Message, error) {
		t.Fatalf("persist should not be called")
		return d, nil
	}, nil, nil)
	_, err := c.ins.Submit(context.Background(), "   ")
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(c.view.Items()) != 0 {
		t.Fatalf("nothing should be appended")
	}
}

func TestSubmitOfflineRestoresInput(t *testing.T) {
	alerts := &alertLog{}
	c := newChat(func(ctx context.Context, d domain.Message) (domain.Message, error) {
		return domain.Message{}, fmt.Errorf("send: %w", domain.ErrNetwork)
	}, nil, alerts)
	c.view.SetInput("hello")
	p, err := c.ins.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := p.Wait(context.Background()); !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if n := len(c.view.Items()); n != 0 {
		t.Fatalf("provisional entry not removed, %d items", n)
	}
	if c.view.Input() != "hello" {
		t.Fatalf("input not restored: %q", c.view.Input())
	}
	if alerts.count() != 1 {
		t.Fatalf("expected one alert, got %d", alerts.count())
	}
	if c.view.Sending() {
		t.Fatalf("sending flag not cleared")
	}
}

func TestPushBeforePersistResultLeavesOneEntry(t *testing.T) {
	release := make(chan struct{})
	var confirmed domain.Message
	c := newChat(func(ctx context.Context, d domain.Message) (domain.Message, error) {
		<-release
		return confirmed, nil
	}, nil, nil)
	p, err := c.ins.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	confirmed = p.Provisional
	confirmed.ID = "m1"
	c.rec.Apply(confirmed)
	close(release)
	if _, err := p.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	items := c.view.Items()
	if len(items) != 1 || items[0].ID != "m1" {
		t.Fatalf("expected exactly one confirmed entry, got %+v", items)
	}
}

func TestApplyMatchesByTokenBeforeContent(t *testing.T) {
	c := newChat(nil, nil, nil)
	c.view.list.Append(draftMessage("temp-1", "same", "tok-a", time.Now()), true)
	c.view.list.Append(draftMessage("temp-2", "same", "tok-b", time.Now()), true)

	c.rec.Apply(domain.Message{ID: "m2", SenderID: me, Content: "same", ClientToken: "tok-b"})
	items := c.view.Items()
	if items[0].ID != "temp-1" || items[1].ID != "m2" {
		t.Fatalf("token match replaced the wrong entry: %+v", items)
	}
}

func TestApplyContentFallbackWithoutToken(t *testing.T) {
	c := newChat(nil, nil, nil)
	c.view.list.Append(draftMessage("temp-1", "hi", "", time.Now()), true)
	c.rec.Apply(domain.Message{ID: "m1", SenderID: me, Content: "hi"})
	items := c.view.Items()
	if len(items) != 1 || items[0].ID != "m1" || c.view.Pending() != 0 {
		t.Fatalf("expected content match, got %+v", items)
	}
}

func TestApplyIsIdempotentForOtherUsers(t *testing.T) {
	c := newChat(nil, nil, nil)
	m := domain.Message{ID: "m9", SenderID: "user-2", Content: "yo"}
	c.rec.Apply(m)
	c.rec.Apply(m)
	if n := len(c.view.Items()); n != 1 {
		t.Fatalf("expected 1 entry, got %d", n)
	}
}

func TestApplyKeepsChronologicalOrder(t *testing.T) {
	c := newChat(nil, nil, nil)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		c.rec.Apply(domain.Message{ID: fmt.Sprintf("m%d", i), SenderID: "user-2", Content: "x", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	items := c.view.Items()
	for i := 1; i < len(items); i++ {
		if !items[i].CreatedAt.After(items[i-1].CreatedAt) {
			t.Fatalf("order broken at %d: %+v", i, items)
		}
	}
}

func TestCloseDropsStaleCompletion(t *testing.T) {
	alerts := &alertLog{}
	started := make(chan struct{})
	c := newChat(func(ctx context.Context, d domain.Message) (domain.Message, error) {
		close(started)
		<-ctx.Done()
		return domain.Message{}, ctx.Err()
	}, nil, alerts)
	p, err := c.ins.Submit(context.Background(), "late")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started
	if err := c.view.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := p.Wait(context.Background()); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if alerts.count() != 0 {
		t.Fatalf("stale failure must not alert")
	}
	if c.view.Input() != "" {
		t.Fatalf("stale failure must not restore input")
	}
	if _, err := c.ins.Submit(context.Background(), "after"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestAttachedFeedIsReconciledAndClosed(t *testing.T) {
	c := newChat(nil, nil, nil)
	feed := newChanFeed[domain.Message]()
	if err := c.rec.Attach(feed); err != nil {
		t.Fatalf("attach: %v", err)
	}
	feed.events <- domain.Message{ID: "m1", SenderID: "user-2", Content: "hey"}
	waitFor(t, func() bool { return len(c.view.Items()) == 1 })
	if err := c.view.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !feed.isClosed() {
		t.Fatalf("feed not closed on view teardown")
	}
}

func TestLagTriggersResyncKeepingProvisional(t *testing.T) {
	remote := []domain.Message{
		{ID: "m1", SenderID: "user-2", Content: "a"},
		{ID: "m2", SenderID: me, Content: "b", ClientToken: "tok-b"},
	}
	c := newChat(nil, func(ctx context.Context) ([]domain.Message, error) { return remote, nil }, nil)
	c.view.list.Append(draftMessage("temp-1", "b", "tok-b", time.Now()), true)
	c.view.list.Append(draftMessage("temp-2", "c", "tok-c", time.Now()), true)

	feed := newChanFeed[domain.Message]()
	if err := c.rec.Attach(feed); err != nil {
		t.Fatalf("attach: %v", err)
	}
	feed.lagged <- struct{}{}
	waitFor(t, func() bool { return len(c.view.Items()) == 3 })
	items := c.view.Items()
	if items[0].ID != "m1" || items[1].ID != "m2" || items[2].ID != "temp-2" {
		t.Fatalf("unexpected resync result %+v", items)
	}
	_ = c.view.Close()
}

func TestLoadReplacesState(t *testing.T) {
	c := newChat(nil, func(ctx context.Context) ([]domain.Message, error) {
		return []domain.Message{{ID: "m1"}, {ID: "m2"}}, nil
	}, nil)
	if err := c.view.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if n := len(c.view.Items()); n != 2 {
		t.Fatalf("expected 2 items, got %d", n)
	}
}
