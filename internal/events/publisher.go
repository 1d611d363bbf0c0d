// Package events publishes committed catalog changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalog-core/internal/persistence"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Config describes the Kafka topic changes are written to.
type Config struct {
	Brokers           []string
	Topic             string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
	WriteTimeout      time.Duration
}

// Event is the message body of one committed change.
type Event struct {
	EventID    uuid.UUID `json:"event_id"`
	Collection string    `json:"collection"`
	ID         uuid.UUID `json:"id"`
	Op         string    `json:"op"`
	Actor      *string   `json:"actor,omitempty"`
	At         time.Time `json:"at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher turns committed changes into Kafka messages keyed by entity id,
// so every change of one entity lands on the same partition in order.
type Publisher struct {
	writer  messageWriter
	cfg     Config
	logger  *zap.Logger
	newUUID func() uuid.UUID
}

// NewPublisher creates a publisher with an asynchronous Kafka writer.
func NewPublisher(cfg Config, logger *zap.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 200 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("Failed to deliver change events",
					zap.Int("count", len(messages)),
					zap.Error(err),
				)
			}
		},
	}
	return newPublisher(writer, cfg, logger)
}

func newPublisher(w messageWriter, cfg Config, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: w, cfg: cfg, logger: logger, newUUID: uuid.New}
}

// Hook returns the commit hook to register on a persistence factory.
func (p *Publisher) Hook() persistence.CommitHook {
	return func(ctx context.Context, changes []persistence.Change) {
		if err := p.Publish(ctx, changes); err != nil {
			p.logger.Error("Failed to publish change events",
				zap.Int("count", len(changes)),
				zap.Error(err),
			)
		}
	}
}

// Publish writes one message per change.
func (p *Publisher) Publish(ctx context.Context, changes []persistence.Change) error {
	if len(changes) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(changes))
	for _, c := range changes {
		value, err := json.Marshal(p.event(c))
		if err != nil {
			return fmt.Errorf("failed to encode change event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(c.ID.String()),
			Value: value,
			Headers: []kafka.Header{
				{Key: "collection", Value: []byte(c.Collection)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write change events: %w", err)
	}
	p.logger.Debug("change events published", zap.Int("count", len(msgs)))
	return nil
}

func (p *Publisher) event(c persistence.Change) Event {
	return Event{
		EventID:    p.newUUID(),
		Collection: c.Collection,
		ID:         c.ID,
		Op:         opName(c.Op),
		Actor:      c.Actor,
		At:         c.At,
	}
}

func opName(s persistence.EntryState) string {
	switch s {
	case persistence.Added:
		return "created"
	case persistence.Modified:
		return "updated"
	case persistence.Deleted:
		return "deleted"
	}
	return s.String()
}

// EnsureTopic creates the topic when the broker does not know it yet.
func (p *Publisher) EnsureTopic(timeout time.Duration) error {
	if len(p.cfg.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	network := p.cfg.NetworkMode
	if network == "" {
		network = "tcp"
	}
	conn, err := kafka.Dial(network, p.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(p.cfg.Topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.CreateTopics(kafka.TopicConfig{
			Topic:             p.cfg.Topic,
			NumPartitions:     p.cfg.Partitions,
			ReplicationFactor: p.cfg.ReplicationFactor,
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to create topic %s: %w", p.cfg.Topic, err)
		}
		return nil
	case <-time.After(timeout):
		_ = conn.Close()
		return fmt.Errorf("timed out after %v creating topic %s", timeout, p.cfg.Topic)
	}
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
