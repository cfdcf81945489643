package realtime

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

type topicFeed struct {
	cancel  context.CancelFunc
	ready   chan struct{}
	clients map[*Queue[domain.Event]]struct{}
}

// Hub shares one redis subscription per topic among local subscribers. The
// subscription is opened by the first subscriber and closed with the last.
type Hub struct {
	rc     *redis.Client
	logger *log.Logger
	size   int

	mu     sync.Mutex
	topics map[string]*topicFeed
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(rc *redis.Client, logger *log.Logger, queueSize int) *Hub {
	if logger == nil {
		logger = log.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{rc: rc, logger: logger, size: queueSize, topics: make(map[string]*topicFeed), ctx: ctx, cancel: cancel}
}

// Subscribe registers a subscriber for topic. Closing the returned queue
// unsubscribes it.
func (h *Hub) Subscribe(topic string) *Queue[domain.Event] {
	var q *Queue[domain.Event]
	q = NewQueue[domain.Event](h.size, func() { h.leave(topic, q) })

	h.mu.Lock()
	tf, ok := h.topics[topic]
	if !ok {
		ctx, cancel := context.WithCancel(h.ctx)
		tf = &topicFeed{cancel: cancel, ready: make(chan struct{}), clients: make(map[*Queue[domain.Event]]struct{})}
		h.topics[topic] = tf
		go pump(ctx, h.rc, h.logger, []string{topic}, tf.ready, func(ev domain.Event) { h.broadcast(topic, ev) }, func() { h.lagged(topic) })
	}
	tf.clients[q] = struct{}{}
	n := len(tf.clients)
	h.mu.Unlock()

	<-tf.ready
	h.logger.WithFields(log.Fields{"topic": topic, "subscribers": n}).Debug("subscriber joined")
	return q
}

func (h *Hub) broadcast(topic string, ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	tf, ok := h.topics[topic]
	if !ok {
		return
	}
	for q := range tf.clients {
		if !q.Push(ev) {
			h.logger.WithField("topic", topic).Warn("subscriber lagging, event dropped")
		}
	}
}

// lagged tells every subscriber of topic that events may have been missed.
func (h *Hub) lagged(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	tf, ok := h.topics[topic]
	if !ok {
		return
	}
	for q := range tf.clients {
		q.MarkLagged()
	}
}

func (h *Hub) leave(topic string, q *Queue[domain.Event]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	tf, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(tf.clients, q)
	if len(tf.clients) == 0 {
		tf.cancel()
		delete(h.topics, topic)
		h.logger.WithField("topic", topic).Debug("last subscriber left")
	}
}

// Topics reports how many topics have live subscriptions.
func (h *Hub) Topics() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.cancel()
	h.mu.Lock()
	topics := h.topics
	h.topics = make(map[string]*topicFeed)
	h.mu.Unlock()
	for _, tf := range topics {
		for q := range tf.clients {
			_ = q.Close()
		}
	}
}
