package realtime

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// Publisher sends events to redis channels named after their topic.
type Publisher struct {
	rc *redis.Client
}

func NewPublisher(rc *redis.Client) *Publisher {
	return &Publisher{rc: rc}
}

// NewEvent builds an envelope carrying payload.
func NewEvent(topic, typ, entityType, entityID, userID string, payload any) (domain.Event, error) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return domain.Event{}, err
	}
	return domain.Event{
		ID:         uuid.NewString(),
		Topic:      topic,
		Type:       typ,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Data:       data,
		Time:       time.Now().UnixMilli(),
	}, nil
}

// Publish sends ev on its topic.
func (p *Publisher) Publish(ctx context.Context, ev domain.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time == 0 {
		ev.Time = time.Now().UnixMilli()
	}
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rc.Publish(ctx, ev.Topic, data).Err()
}
