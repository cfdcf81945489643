package gateway

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
	"github.com/LinkDevArch/vess-colaborative-platform/realtime"
)

const maxFrame = 1 << 20

// Subscribe opens the SSE stream of topic. The first connection is made
// before returning so authorization failures surface here. Later drops are
// retried and raise the lag signal, since events may have been missed.
// Closing the queue ends the subscription.
func (c *Client) Subscribe(ctx context.Context, topic string) (*realtime.Queue[domain.Event], error) {
	ctx, cancel := context.WithCancel(ctx)
	body, err := c.openStream(ctx, topic)
	if err != nil {
		cancel()
		return nil, err
	}
	q := realtime.NewQueue[domain.Event](c.queueSize, cancel)
	go c.pump(ctx, topic, body, q)
	return q, nil
}

// Unsubscribe closes a queue returned by Subscribe or SubscribeRecords.
func Unsubscribe[T any](q *realtime.Queue[T]) error {
	return q.Close()
}

// SubscribeRecords decodes the insert and update events of topic whose
// entity type is entity into records.
func SubscribeRecords[T any](ctx context.Context, c *Client, topic, entity string) (*realtime.Queue[T], error) {
	src, err := c.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	return realtime.Map(src, func(ev domain.Event) (T, bool) {
		var rec T
		if ev.EntityType != entity || (ev.Type != domain.EventInsert && ev.Type != domain.EventUpdate) {
			return rec, false
		}
		if err := sonic.Unmarshal(ev.Data, &rec); err != nil {
			c.logger.WithError(err).WithField("topic", ev.Topic).Warn("undecodable event payload")
			return rec, false
		}
		return rec, true
	}), nil
}

func (c *Client) openStream(ctx context.Context, topic string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, c.stream, http.MethodGet, "/stream", url.Values{"topic": {topic}}, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	// The stream outlives any client-wide timeout.
	hc := *c.http
	hc.Timeout = 0
	resp, err := c.send(&hc, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readError(resp)
	}
	return resp.Body, nil
}

func (c *Client) pump(ctx context.Context, topic string, body io.ReadCloser, q *realtime.Queue[domain.Event]) {
	defer q.Close()
	entry := c.logger.WithField("topic", topic)
	for {
		err := readStream(body, func(name string, data []byte) {
			if name == realtime.LagEvent {
				q.MarkLagged()
				return
			}
			var ev domain.Event
			if err := sonic.Unmarshal(data, &ev); err != nil {
				entry.WithError(err).Warn("undecodable stream frame")
				return
			}
			if !q.Push(ev) {
				entry.Warn("subscriber queue full, event dropped")
			}
		})
		_ = body.Close()
		if ctx.Err() != nil {
			return
		}
		entry.WithError(err).Warn("stream interrupted, reconnecting")

		body = c.reopen(ctx, entry, topic)
		if body == nil {
			return
		}
		q.MarkLagged()
	}
}

// reopen retries the stream until it connects, ctx ends or access is denied.
func (c *Client) reopen(ctx context.Context, entry *log.Entry, topic string) io.ReadCloser {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnect):
		}
		body, err := c.openStream(ctx, topic)
		if err == nil {
			return body
		}
		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrNotFound) {
			entry.WithError(err).Error("stream access denied, giving up")
			return nil
		}
		entry.WithError(err).Debug("stream reconnect failed")
	}
}

// readStream parses SSE frames from r and calls fn for each dispatched
// event. It returns io.EOF when the stream ends cleanly.
func readStream(r io.Reader, fn func(name string, data []byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxFrame)
	var (
		name string
		data []byte
	)
	for sc.Scan() {
		line := sc.Bytes()
		switch {
		case len(line) == 0:
			if data != nil {
				fn(name, data)
			}
			name, data = "", nil
		case line[0] == ':':
		default:
			field, value, _ := bytes.Cut(line, []byte(":"))
			value = bytes.TrimPrefix(value, []byte(" "))
			switch string(field) {
			case "event":
				name = string(value)
			case "data":
				if data != nil {
					data = append(data, '\n')
				}
				data = append(data, value...)
				if data == nil {
					data = []byte{}
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	return io.EOF
}
