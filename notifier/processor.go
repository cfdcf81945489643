// Package notifier turns queued notification commands into stored
// notifications and pushes them to the recipient's realtime topic.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
	"github.com/LinkDevArch/vess-colaborative-platform/realtime"
)

// ErrInvalidCommand marks commands that can never be delivered.
var ErrInvalidCommand = errors.New("invalid notification command")

type Store interface {
	InsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Processor delivers a single command.
type Processor struct {
	store  Store
	pub    Publisher
	logger *log.Logger
}

func NewProcessor(store Store, pub Publisher, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Processor{store: store, pub: pub, logger: logger}
}

// Handle stores the notification described by cmd and publishes it. Commands
// notifying their own actor are skipped. A command that was already stored by
// an earlier delivery attempt is published again and reported as handled.
func (p *Processor) Handle(ctx context.Context, cmd domain.NotificationCommand) error {
	if cmd.SelfNotification() {
		p.logger.WithField("user", cmd.UserID).Debug("skipping self notification")
		return nil
	}
	if cmd.UserID == "" {
		return fmt.Errorf("%w: missing recipient", ErrInvalidCommand)
	}
	if !cmd.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCommand, cmd.Type)
	}

	n := domain.Notification{
		ID:      cmd.ID,
		UserID:  cmd.UserID,
		ActorID: cmd.ActorID,
		Type:    cmd.Type,
		Title:   cmd.Title,
		Message: cmd.Message,
		Link:    cmd.Link,
	}
	if cmd.Timestamp > 0 {
		n.CreatedAt = time.Unix(0, cmd.Timestamp).UTC()
	}

	stored, err := p.store.InsertNotification(ctx, n)
	switch {
	case errors.Is(err, domain.ErrDuplicate) && n.ID != "":
		p.logger.WithField("id", n.ID).Info("notification already stored, republishing")
		stored = n
	case err != nil:
		return err
	}

	p.publish(ctx, stored)
	return nil
}

func (p *Processor) publish(ctx context.Context, n domain.Notification) {
	if p.pub == nil {
		return
	}
	ev, err := realtime.NewEvent(domain.NotificationsTopic(n.UserID), domain.EventInsert, domain.EntityNotification, n.ID, n.ActorID, n)
	if err == nil {
		err = p.pub.Publish(ctx, ev)
	}
	if err != nil {
		p.logger.WithError(err).WithField("user", n.UserID).Warn("notification publish failed")
	}
}
