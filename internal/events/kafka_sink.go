package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink пишет события дел в топик Kafka. Ключ сообщения равен id дела,
// поэтому события одного дела попадают в одну партицию.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink создаёт продюсер для топика событий дел.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           50 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

// Emit публикует событие.
func (s *KafkaSink) Emit(ctx context.Context, ev AuditEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka sink: marshal %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.CaseID.String()),
		Value: data,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
			{Key: "status", Value: []byte(ev.Status)},
		},
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka sink: write %w", err)
	}
	return nil
}

// Close сбрасывает буфер и закрывает соединения.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
