package view

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// Draft builds the provisional record shown while a submit is in flight.
type Draft[T Item] func(id, content, token string, at time.Time) T

// Inserter applies a submit to local state before the server confirms it.
type Inserter[T Item] struct {
	view    *View[T]
	rec     *Reconciler[T]
	draft   Draft[T]
	persist Persister[T]

	// EmptyMessage is the validation message for blank input.
	EmptyMessage string
	// FailureTitle is the alert title raised when persisting fails.
	FailureTitle string

	now      func() time.Time
	newToken func() string
}

func NewInserter[T Item](v *View[T], r *Reconciler[T], draft Draft[T], persist Persister[T]) *Inserter[T] {
	return &Inserter[T]{
		view:         v,
		rec:          r,
		draft:        draft,
		persist:      persist,
		EmptyMessage: "Message cannot be empty",
		FailureTitle: "Failed to send message",
		now:          time.Now,
		newToken:     uuid.NewString,
	}
}

// Pending is the outcome of one submit.
type Pending[T Item] struct {
	// Provisional is the entry appended before persisting.
	Provisional T

	done chan struct{}
	rec  T
	err  error
}

// Done is closed once the persist attempt finished.
func (p *Pending[T]) Done() <-chan struct{} { return p.done }

// Wait blocks until the persist attempt finished or ctx ends.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.rec, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit appends a provisional record for text, clears the input box and
// persists in the background. Blank input is rejected without touching state.
func (in *Inserter[T]) Submit(ctx context.Context, text string) (*Pending[T], error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return nil, domain.NewValidationError(in.EmptyMessage)
	}
	v := in.view
	at := in.now()
	token := in.newToken()
	draft := in.draft(fmt.Sprintf("temp-%d", at.UnixNano()), content, token, at)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, ErrClosed
	}
	if v.sending {
		v.mu.Unlock()
		return nil, ErrBusy
	}
	v.sending = true
	v.list.Append(draft, true)
	v.input = ""
	gen := v.gen
	vctx := v.ctx
	v.mu.Unlock()

	p := &Pending[T]{Provisional: draft, done: make(chan struct{})}
	pctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(vctx, cancel)
	go func() {
		defer close(p.done)
		defer cancel()
		defer stop()
		rec, err := in.persist(pctx, draft)
		p.rec, p.err = rec, in.complete(gen, draft, content, rec, err)
		if err != nil && p.err == err {
			v.alerts.Alert(Alert{Level: LevelError, Title: in.FailureTitle, Message: err.Error()})
		}
	}()
	return p, nil
}

func (in *Inserter[T]) complete(gen uint64, draft T, content string, rec T, err error) error {
	v := in.view
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sending = false
	if v.closed || v.gen != gen {
		return ErrStale
	}
	if err != nil {
		i := v.list.IndexOfProvisional(draft.Token(), draft.Body())
		if i >= 0 {
			v.list.RemoveAt(i)
		}
		v.input = content
		v.logger.WithFields(log.Fields{"token": draft.Token()}).WithError(err).Error("persist failed")
		return err
	}
	in.rec.applyLocked(rec)
	return nil
}
