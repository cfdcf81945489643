package view

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// NotificationStore is the remote side of the notification center.
type NotificationStore interface {
	FetchNotifications(ctx context.Context) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// NotificationCenter keeps the newest notifications of the session and the
// unread counter on the AppContext in sync.
type NotificationCenter struct {
	mu     sync.Mutex
	items  []domain.Notification
	closed bool
	feeds  []Feed[domain.Notification]
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	app    *AppContext
	store  NotificationStore
	alerts AlertSink
	logger *log.Logger
}

func NewNotificationCenter(app *AppContext, store NotificationStore, alerts AlertSink, logger *log.Logger) *NotificationCenter {
	if alerts == nil {
		alerts = discardAlerts{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &NotificationCenter{app: app, store: store, alerts: alerts, logger: logger, ctx: ctx, cancel: cancel}
}

// Load fetches the latest notifications and recomputes the unread count.
func (n *NotificationCenter) Load(ctx context.Context) error {
	items, err := n.store.FetchNotifications(ctx)
	if err != nil {
		n.logger.WithError(err).Error("load notifications failed")
		return err
	}
	if len(items) > domain.NotificationListLimit {
		items = items[:domain.NotificationListLimit]
	}
	unread := 0
	for _, it := range items {
		if !it.Read {
			unread++
		}
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrStale
	}
	n.items = items
	n.mu.Unlock()
	n.app.SetUnread(unread)
	return nil
}

// Items returns the notifications newest first.
func (n *NotificationCenter) Items() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.items...)
}

// Push prepends a delivered notification and raises a toast for it.
func (n *NotificationCenter) Push(nt domain.Notification) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	for _, it := range n.items {
		if it.ID == nt.ID {
			n.mu.Unlock()
			return
		}
	}
	n.items = append([]domain.Notification{nt}, n.items...)
	n.mu.Unlock()
	if !nt.Read {
		n.app.AddUnread(1)
	}
	n.alerts.Alert(Alert{Level: LevelInfo, Title: nt.Title, Message: nt.Message, Link: nt.Link})
}

// MarkRead marks one notification read locally, then remotely.
func (n *NotificationCenter) MarkRead(ctx context.Context, id string) error {
	n.mu.Lock()
	changed := false
	for i := range n.items {
		if n.items[i].ID == id && !n.items[i].Read {
			n.items[i].Read = true
			changed = true
		}
	}
	n.mu.Unlock()
	if changed {
		n.app.AddUnread(-1)
	}
	if err := n.store.MarkNotificationRead(ctx, id); err != nil {
		n.logger.WithError(err).WithField("notification", id).Error("mark read failed")
		return err
	}
	return nil
}

// MarkAllRead marks everything read locally, then remotely.
func (n *NotificationCenter) MarkAllRead(ctx context.Context) error {
	n.mu.Lock()
	for i := range n.items {
		n.items[i].Read = true
	}
	n.mu.Unlock()
	n.app.SetUnread(0)
	if err := n.store.MarkAllNotificationsRead(ctx); err != nil {
		n.logger.WithError(err).Error("mark all read failed")
		return err
	}
	return nil
}

// Attach consumes pushed notifications until Close.
func (n *NotificationCenter) Attach(feed Feed[domain.Notification]) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		_ = feed.Close()
		return ErrClosed
	}
	n.feeds = append(n.feeds, feed)
	n.wg.Add(1)
	n.mu.Unlock()
	go func() {
		defer n.wg.Done()
		events, lagged := feed.Events(), feed.Lagged()
		for {
			select {
			case <-n.ctx.Done():
				return
			case nt, ok := <-events:
				if !ok {
					return
				}
				n.Push(nt)
			case <-lagged:
				if err := n.Load(n.ctx); err != nil {
					n.logger.WithError(err).Warn("reload after lag failed")
				}
			}
		}
	}()
	return nil
}

// Close unsubscribes every attached feed.
func (n *NotificationCenter) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	feeds := n.feeds
	n.feeds = nil
	n.mu.Unlock()
	n.cancel()
	for _, f := range feeds {
		_ = f.Close()
	}
	n.wg.Wait()
}
