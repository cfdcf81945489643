package realtime

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// ReconnectDelay is the pause before resubscribing after the pub/sub channel closed.
var ReconnectDelay = time.Second

// pump delivers decoded events from topics until ctx ends, resubscribing when
// the redis channel closes. lagged runs whenever a topic is subscribed again,
// since events published in between are gone.
func pump(ctx context.Context, rc *redis.Client, logger *log.Logger, topics []string, ready chan<- struct{}, deliver func(domain.Event), lagged func()) {
	seen := make(map[string]bool, len(topics))
	resubscribed := func(channel string) {
		if seen[channel] {
			logger.WithField("channel", channel).Warn("resubscribed, events may be missing")
			if lagged != nil {
				lagged()
			}
		}
		seen[channel] = true
	}
	for {
		sub := rc.Subscribe(ctx, topics...)
		first, err := sub.Receive(ctx)
		if err != nil && ctx.Err() == nil {
			logger.WithError(err).WithField("topics", topics).Warn("subscribe failed")
		}
		if s, ok := first.(*redis.Subscription); ok && s.Kind == "subscribe" {
			resubscribed(s.Channel)
		}
		if ready != nil {
			close(ready)
			ready = nil
		}
		ch := sub.ChannelWithSubscriptions()
	loop:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case raw, ok := <-ch:
				if !ok {
					break loop
				}
				switch msg := raw.(type) {
				case *redis.Subscription:
					if msg.Kind == "subscribe" {
						resubscribed(msg.Channel)
					}
				case *redis.Message:
					var ev domain.Event
					if err := sonic.UnmarshalString(msg.Payload, &ev); err != nil {
						logger.WithError(err).WithField("channel", msg.Channel).Error("unable to parse event")
						continue
					}
					if ev.Topic == "" {
						ev.Topic = msg.Channel
					}
					deliver(ev)
				}
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(ReconnectDelay):
		}
	}
}

// Subscribe opens a redis subscription to topics and returns its bounded
// queue. Closing the queue ends the subscription. Subscribe returns once the
// subscription is confirmed or failed for the first time.
func Subscribe(ctx context.Context, rc *redis.Client, logger *log.Logger, size int, topics ...string) *Queue[domain.Event] {
	if logger == nil {
		logger = log.StandardLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	q := NewQueue[domain.Event](size, cancel)
	ready := make(chan struct{})
	go func() {
		defer q.Close()
		pump(ctx, rc, logger, topics, ready, func(ev domain.Event) {
			if !q.Push(ev) {
				logger.WithField("topic", ev.Topic).Warn("subscriber queue full, event dropped")
			}
		}, q.MarkLagged)
	}()
	<-ready
	return q
}
