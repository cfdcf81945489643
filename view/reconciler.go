package view

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Reconciler merges confirmed records into a view.
type Reconciler[T Item] struct {
	view *View[T]
}

func NewReconciler[T Item](v *View[T]) *Reconciler[T] {
	return &Reconciler[T]{view: v}
}

// Apply merges one confirmed record. A record authored by the current user
// replaces its provisional entry in place; anything else is appended unless
// an entry with the same key is already present.
func (r *Reconciler[T]) Apply(rec T) {
	v := r.view
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	r.applyLocked(rec)
}

func (r *Reconciler[T]) applyLocked(rec T) {
	l := &r.view.list
	if rec.AuthorID() == r.view.userID {
		if i := l.IndexOfProvisional(rec.Token(), rec.Body()); i >= 0 {
			if l.IndexOfKey(rec.Key()) >= 0 {
				// confirmed twice (persist result and push event)
				l.RemoveAt(i)
				return
			}
			l.ReplaceAt(i, rec)
			return
		}
	}
	if l.IndexOfKey(rec.Key()) >= 0 {
		return
	}
	l.Append(rec, false)
}

// Attach consumes feed in the background until the view is closed.
func (r *Reconciler[T]) Attach(feed Feed[T]) error {
	ctx, ok := r.view.attach(feed)
	if !ok {
		_ = feed.Close()
		return ErrClosed
	}
	go func() {
		defer r.view.wg.Done()
		_ = r.Run(ctx, feed)
	}()
	return nil
}

// Run drains feed until ctx ends or the feed closes. A lag signal triggers a
// resync from the authoritative source.
func (r *Reconciler[T]) Run(ctx context.Context, feed Feed[T]) error {
	events, lagged := feed.Events(), feed.Lagged()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-events:
			if !ok {
				return nil
			}
			r.Apply(rec)
		case <-lagged:
			if err := r.Resync(ctx); err != nil {
				r.view.logger.WithError(err).Warn("resync after lag failed")
			}
		}
	}
}

// Resync reloads the authoritative list, keeping provisional entries that are
// still unconfirmed at the tail.
func (r *Reconciler[T]) Resync(ctx context.Context) error {
	v := r.view
	if v.fetch == nil {
		return nil
	}
	gen, ok := v.generation()
	if !ok {
		return ErrClosed
	}
	items, err := v.fetch(ctx)
	if err != nil {
		return err
	}
	kept := 0
	fresh := v.update(gen, func(l *List[T]) {
		pending := l.provisionals()
		l.Reset(items)
		for _, p := range pending {
			if l.confirms(v.userID, p.item) {
				continue
			}
			l.Append(p.item, true)
			kept++
		}
	})
	if !fresh {
		return ErrStale
	}
	v.logger.WithFields(log.Fields{"items": len(items), "provisional": kept}).Debug("view resynced")
	return nil
}

// confirms reports whether a confirmed entry authored by userID already
// stands for the provisional item p.
func (l *List[T]) confirms(userID string, p T) bool {
	for _, e := range l.entries {
		if e.provisional || e.item.AuthorID() != userID {
			continue
		}
		if p.Token() != "" && e.item.Token() == p.Token() {
			return true
		}
		if e.item.Token() == "" && e.item.Body() == p.Body() {
			return true
		}
	}
	return false
}
