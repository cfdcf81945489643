package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// DispatcherConfig sizes the notification worker pool.
type DispatcherConfig struct {
	Workers int
	Buffer  int
	// Timeout bounds a single enqueue call.
	Timeout time.Duration
	// Handoff is how long Dispatch waits for buffer space before enqueuing inline.
	Handoff time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{Workers: 8, Buffer: 1024, Timeout: 30 * time.Second, Handoff: 15 * time.Millisecond}
}

// Dispatcher hands notification commands to a bounded pool of workers that
// enqueue them on the notification queue. When the buffer is saturated the
// caller enqueues inline instead of waiting.
type Dispatcher struct {
	sink   NotificationSink
	logger *log.Logger
	cfg    DispatcherConfig
	jobs   chan domain.NotificationCommand
	wg     sync.WaitGroup
	once   sync.Once
}

func NewDispatcher(sink NotificationSink, logger *log.Logger, cfg DispatcherConfig) *Dispatcher {
	if sink == nil {
		panic("api.NewDispatcher: sink is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	def := DefaultDispatcherConfig()
	if cfg.Workers < 0 {
		cfg.Workers = 0
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	d := &Dispatcher{sink: sink, logger: logger, cfg: cfg}
	if cfg.Workers > 0 {
		d.jobs = make(chan domain.NotificationCommand, cfg.Buffer)
		for i := 0; i < cfg.Workers; i++ {
			d.wg.Add(1)
			go d.worker(i)
		}
	}
	logger.Infof("notification dispatcher started, workers: %d, buffer: %d, timeout: %v, handoff: %v",
		cfg.Workers, cfg.Buffer, cfg.Timeout, cfg.Handoff)
	return d
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for cmd := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		err := d.sink.Enqueue(ctx, cmd)
		cancel()
		if err != nil {
			d.logger.Errorf("notification enqueue failed, err: %v, user: %s, type: %s, worker: %d", err, cmd.UserID, cmd.Type, id)
		}
	}
}

// Dispatch schedules cmd for delivery. Commands addressed to their own actor
// or to nobody are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd domain.NotificationCommand) error {
	if cmd.UserID == "" || cmd.SelfNotification() {
		return nil
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	cmd.Timestamp = nextTimestamp()

	if d.tryHandoff(cmd) {
		return nil
	}
	if d.jobs != nil {
		d.logger.Warn("notification buffer saturated; enqueuing inline")
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
	defer cancel()
	return d.sink.Enqueue(ctx, cmd)
}

// Close stops accepting work and waits for queued commands to drain.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		if d.jobs != nil {
			close(d.jobs)
		}
		d.wg.Wait()
	})
}

func (d *Dispatcher) tryHandoff(cmd domain.NotificationCommand) bool {
	if d.jobs == nil {
		return false
	}
	if ok, closed := trySendNonBlocking(d.jobs, cmd); closed {
		return false
	} else if ok {
		return true
	}
	if d.cfg.Handoff <= 0 {
		return false
	}

	timer := time.NewTimer(d.cfg.Handoff)
	defer timer.Stop()
	ok, _ := sendWithTimer(d.jobs, cmd, timer.C)
	return ok
}

func trySendNonBlocking[T any](ch chan T, v T) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- v:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer[T any](ch chan T, v T, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- v:
		return true, false
	case <-timer:
		return false, false
	}
}
