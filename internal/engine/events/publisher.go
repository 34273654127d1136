package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	skafka "github.com/segmentio/kafka-go"
	"projecthub/internal/platform/config"
)

// Writer is the subset of kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

type KafkaPublisher struct {
	writer Writer
}

func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	w := &skafka.Writer{
		Addr:         skafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &skafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: skafka.RequireOne,
	}
	return &KafkaPublisher{writer: w}
}

func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish writes value as JSON under key. Messages with the same key land on
// the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, skafka.Message{Key: []byte(key), Value: b}); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Kafka write failed")
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
