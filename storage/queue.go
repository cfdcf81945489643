package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
	DequeueMessages(ctx context.Context, o *azqueue.DequeueMessagesOptions) (azqueue.DequeueMessagesResponse, error)
	DeleteMessage(ctx context.Context, messageID, popReceipt string, o *azqueue.DeleteMessageOptions) (azqueue.DeleteMessageResponse, error)
	Create(ctx context.Context, o *azqueue.CreateOptions) (azqueue.CreateResponse, error)
}

// NotificationQueue carries notification commands from the API to the worker.
type NotificationQueue struct {
	queue queueClient
}

func NewNotificationQueue(connStr, name string) (*NotificationQueue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{Retry: retryOptions(5, 5*time.Minute, time.Minute)},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, &opts)
	if err != nil {
		return nil, err
	}
	return &NotificationQueue{queue: q}, nil
}

// Enqueue sends one command.
func (q *NotificationQueue) Enqueue(ctx context.Context, cmd domain.NotificationCommand) error {
	data, err := sonic.Marshal(cmd)
	if err != nil {
		return err
	}
	_, err = q.queue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// QueueMessage is a dequeued message awaiting deletion.
type QueueMessage struct {
	ID           string
	PopReceipt   string
	Text         string
	DequeueCount int64
}

// Dequeue receives up to max messages, hiding them for visibility.
func (q *NotificationQueue) Dequeue(ctx context.Context, max int32, visibility time.Duration) ([]QueueMessage, error) {
	secs := int32(visibility / time.Second)
	resp, err := q.queue.DequeueMessages(ctx, &azqueue.DequeueMessagesOptions{
		NumberOfMessages:  &max,
		VisibilityTimeout: &secs,
	})
	if err != nil {
		return nil, err
	}
	out := make([]QueueMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m == nil || m.MessageID == nil || m.PopReceipt == nil {
			continue
		}
		msg := QueueMessage{ID: *m.MessageID, PopReceipt: *m.PopReceipt}
		if m.MessageText != nil {
			msg.Text = *m.MessageText
		}
		if m.DequeueCount != nil {
			msg.DequeueCount = *m.DequeueCount
		}
		out = append(out, msg)
	}
	return out, nil
}

// Delete removes a processed message.
func (q *NotificationQueue) Delete(ctx context.Context, msg QueueMessage) error {
	_, err := q.queue.DeleteMessage(ctx, msg.ID, msg.PopReceipt, nil)
	return err
}

// Create creates the queue, ignoring an existing one.
func (q *NotificationQueue) Create(ctx context.Context) error {
	_, err := q.queue.Create(ctx, nil)
	if err != nil && !hasErrorCode(err, "QueueAlreadyExists") {
		return err
	}
	return nil
}
