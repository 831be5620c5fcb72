// Package eventbus mirrors the state fabric's intents:queue to Kafka as a
// pure analytics side-channel (spec.md §4.1: "analytics only" — never a
// delivery path). Grounded on the teacher's producer/main.go kafka.Writer
// configuration.
package eventbus

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/paynet/interbank-ccp/internal/intent"
	"github.com/segmentio/kafka-go"
)

// Mirror publishes intents to a Kafka topic without affecting any
// delivery semantics in the fabric.
type Mirror struct {
	writer *kafka.Writer
}

// NewMirror configures a writer with the teacher's high-throughput
// settings (least-bytes balancing, snappy compression, batched async
// writes).
func NewMirror(brokerAddr, topic string) *Mirror {
	return &Mirror{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokerAddr),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			Compression:  kafka.Snappy,
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			Async:        true,
		},
	}
}

// Publish writes the intent envelope to Kafka, keyed by intent id. Errors
// are logged and swallowed: the analytics mirror must never affect the
// simulation's critical path (spec.md §7: only fabric unavailability is
// fatal).
func (m *Mirror) Publish(ctx context.Context, env intent.Envelope) {
	raw, err := env.Marshal()
	if err != nil {
		log.Printf("[eventbus] marshal intent %s: %v", env.IntentID, err)
		return
	}
	err = m.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.IntentID),
		Value: raw,
	})
	if err != nil {
		log.Printf("[eventbus] publish intent %s: %v", env.IntentID, err)
	}
}

// Close releases the underlying writer's connections.
func (m *Mirror) Close() error {
	if err := m.writer.Close(); err != nil {
		return fmt.Errorf("eventbus: close writer: %w", err)
	}
	return nil
}
