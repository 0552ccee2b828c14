package mail

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// StreamAdder is the part of *redis.Client the queue sender needs.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// QueueSender hands messages to the mail worker through a redis stream.
// Send succeeds once the entry is stored, not when the mail is delivered.
type QueueSender struct {
	client StreamAdder
	stream string
}

func NewQueueSender(client StreamAdder, stream string) *QueueSender {
	return &QueueSender{client: client, stream: stream}
}

func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: msg.values(),
	}).Err(); err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}
