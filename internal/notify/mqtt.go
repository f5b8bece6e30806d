package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Publisher publish side of an MQTT client
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTNotifier publishes events to <prefix><couple_id>
type MQTTNotifier struct {
	publisher   Publisher
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

// NewMQTTNotifier creates an MQTT notifier
func NewMQTTNotifier(publisher Publisher, topicPrefix string, qos byte, logger *zap.Logger) *MQTTNotifier {
	if topicPrefix != "" && !strings.HasSuffix(topicPrefix, "/") {
		topicPrefix += "/"
	}
	return &MQTTNotifier{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		qos:         qos,
		logger:      logger,
	}
}

// Topic topic for a couple
func (n *MQTTNotifier) Topic(coupleID string) string {
	return n.topicPrefix + coupleID
}

// Publish implements Notifier
func (n *MQTTNotifier) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := n.Topic(event.CoupleID)
	if err := n.publisher.Publish(topic, n.qos, false, payload); err != nil {
		return err
	}

	n.logger.Debug("Published crisis event to MQTT",
		zap.String("topic", topic),
		zap.String("event_type", event.Type),
	)
	return nil
}
