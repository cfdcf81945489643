package view

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrBusy is returned when a submit is already in flight for the view.
	ErrBusy = errors.New("view: submit in progress")
	// ErrClosed is returned for operations on a torn down view.
	ErrClosed = errors.New("view: closed")
	// ErrStale reports a completion that arrived after the view was closed.
	ErrStale = errors.New("view: stale completion dropped")
)

// Fetcher loads the authoritative records of a view.
type Fetcher[T Item] func(ctx context.Context) ([]T, error)

// Persister stores a provisional record and returns the confirmed one.
type Persister[T Item] func(ctx context.Context, draft T) (T, error)

// Feed is a bounded stream of confirmed records. Lagged fires when the
// producer had to drop events.
type Feed[T any] interface {
	Events() <-chan T
	Lagged() <-chan struct{}
	Close() error
}

// Options configures a View.
type Options[T Item] struct {
	CurrentUserID string
	Fetch         Fetcher[T]
	Alerts        AlertSink
	Logger        *log.Logger
}

// View is the state of one mounted screen (a chat, a comment thread). All
// mutations go through the view lock and are tagged with the generation they
// were started in.
type View[T Item] struct {
	mu      sync.Mutex
	list    List[T]
	input   string
	sending bool
	gen     uint64
	closed  bool
	feeds   []Feed[T]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	userID string
	fetch  Fetcher[T]
	alerts AlertSink
	logger *log.Logger
}

// New returns an open view with empty state.
func New[T Item](opts Options[T]) *View[T] {
	ctx, cancel := context.WithCancel(context.Background())
	v := &View[T]{
		ctx:    ctx,
		cancel: cancel,
		gen:    1,
		userID: opts.CurrentUserID,
		fetch:  opts.Fetch,
		alerts: opts.Alerts,
		logger: opts.Logger,
	}
	if v.alerts == nil {
		v.alerts = discardAlerts{}
	}
	if v.logger == nil {
		v.logger = log.StandardLogger()
	}
	return v
}

// Load replaces the state with the authoritative list.
func (v *View[T]) Load(ctx context.Context) error {
	if v.fetch == nil {
		return nil
	}
	gen, ok := v.generation()
	if !ok {
		return ErrClosed
	}
	items, err := v.fetch(ctx)
	if err != nil {
		v.logger.WithError(err).Error("view load failed")
		return err
	}
	if !v.update(gen, func(l *List[T]) { l.Reset(items) }) {
		return ErrStale
	}
	return nil
}

// Items returns a snapshot of the current state in display order.
func (v *View[T]) Items() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.list.Items()
}

// Pending returns the number of unconfirmed entries.
func (v *View[T]) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.list.provisionals())
}

// Input is the current content of the input box.
func (v *View[T]) Input() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.input
}

func (v *View[T]) SetInput(s string) {
	v.mu.Lock()
	v.input = s
	v.mu.Unlock()
}

// Sending reports whether a submit is in flight.
func (v *View[T]) Sending() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sending
}

// Close tears down every attached feed and drops any completion that
// arrives afterwards. It waits for the feed consumers to exit.
func (v *View[T]) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.gen++
	feeds := v.feeds
	v.feeds = nil
	v.mu.Unlock()

	v.cancel()
	var errs []error
	for _, f := range feeds {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	v.wg.Wait()
	return errors.Join(errs...)
}

func (v *View[T]) generation() (uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gen, !v.closed
}

// update applies fn when gen is still current.
func (v *View[T]) update(gen uint64, fn func(*List[T])) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.gen != gen {
		return false
	}
	fn(&v.list)
	return true
}

func (v *View[T]) attach(f Feed[T]) (context.Context, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, false
	}
	v.feeds = append(v.feeds, f)
	v.wg.Add(1)
	return v.ctx, true
}
