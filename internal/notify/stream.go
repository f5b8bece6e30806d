package notify

import (
	"context"
	"fmt"

	commonredis "couplecare-crisis/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamNotifier appends events to a Redis stream
type StreamNotifier struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewStreamNotifier creates a Redis Streams notifier
func NewStreamNotifier(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) *StreamNotifier {
	return &StreamNotifier{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

// Publish implements Notifier
func (n *StreamNotifier) Publish(ctx context.Context, event Event) error {
	id, err := commonredis.PublishJSONToStream(ctx, n.client, n.stream, n.maxLen, event.Type, event)
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", n.stream, err)
	}

	n.logger.Debug("Published crisis event to stream",
		zap.String("stream", n.stream),
		zap.String("message_id", id),
		zap.String("event_type", event.Type),
		zap.String("couple_id", event.CoupleID),
	)
	return nil
}
