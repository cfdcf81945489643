package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
	"github.com/LinkDevArch/vess-colaborative-platform/storage"
)

// Queue is the subset of the notification queue the worker consumes.
type Queue interface {
	Dequeue(ctx context.Context, max int32, visibility time.Duration) ([]storage.QueueMessage, error)
	Delete(ctx context.Context, msg storage.QueueMessage) error
}

// WorkerConfig tunes the polling loop.
type WorkerConfig struct {
	Batch      int32
	Visibility time.Duration
	// Idle is the pause after an empty or failed dequeue.
	Idle time.Duration
	// MaxDeliveries drops a message after this many failed attempts.
	MaxDeliveries int64
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{Batch: 16, Visibility: 30 * time.Second, Idle: time.Second, MaxDeliveries: 5}
}

// Worker polls the queue and hands each command to a Processor.
type Worker struct {
	queue  Queue
	proc   *Processor
	logger *log.Logger
	cfg    WorkerConfig
}

func NewWorker(queue Queue, proc *Processor, logger *log.Logger, cfg WorkerConfig) *Worker {
	def := DefaultWorkerConfig()
	if cfg.Batch <= 0 {
		cfg.Batch = def.Batch
	}
	if cfg.Visibility <= 0 {
		cfg.Visibility = def.Visibility
	}
	if cfg.Idle <= 0 {
		cfg.Idle = def.Idle
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = def.MaxDeliveries
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Worker{queue: queue, proc: proc, logger: logger, cfg: cfg}
}

// Run processes messages until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := w.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.WithError(err).Error("dequeue failed")
		}
		if err != nil || n == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.cfg.Idle):
			}
		}
	}
}

// Poll receives one batch and processes it, returning how many messages were
// received.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	msgs, err := w.queue.Dequeue(ctx, w.cfg.Batch, w.cfg.Visibility)
	if err != nil {
		return 0, err
	}
	for _, msg := range msgs {
		w.handle(ctx, msg)
	}
	return len(msgs), nil
}

func (w *Worker) handle(ctx context.Context, msg storage.QueueMessage) {
	entry := w.logger.WithFields(log.Fields{"message": msg.ID, "deliveries": msg.DequeueCount})

	var cmd domain.NotificationCommand
	if err := sonic.UnmarshalString(msg.Text, &cmd); err != nil {
		entry.WithError(err).Error("dropping undecodable notification command")
		w.delete(ctx, entry, msg)
		return
	}

	err := w.proc.Handle(ctx, cmd)
	switch {
	case err == nil:
		w.delete(ctx, entry, msg)
	case errors.Is(err, ErrInvalidCommand):
		entry.WithError(err).Error("dropping invalid notification command")
		w.delete(ctx, entry, msg)
	case msg.DequeueCount >= w.cfg.MaxDeliveries:
		entry.WithError(err).Error("dropping notification command after repeated failures")
		w.delete(ctx, entry, msg)
	default:
		entry.WithError(err).Warn("notification delivery failed, leaving for redelivery")
	}
}

func (w *Worker) delete(ctx context.Context, entry *log.Entry, msg storage.QueueMessage) {
	if err := w.queue.Delete(ctx, msg); err != nil {
		entry.WithError(err).Warn("delete message failed")
	}
}
