package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes alerts to a topic for downstream consumers such as a
// SIEM or the dashboard feed. Records are keyed by user ID so one identity's
// alerts stay ordered within a partition.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

func NewKafkaSink(client *kgo.Client, topic string) *KafkaSink {
	return &KafkaSink{client: client, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

type kafkaAlert struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Event     string         `json:"event"`
	Score     int            `json:"score"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt string         `json:"created_at"`
}

func (s *KafkaSink) Deliver(ctx context.Context, a SecurityAlert) error {
	payload, err := json.Marshal(kafkaAlert{
		ID:        a.ID.String(),
		UserID:    a.UserID.String(),
		Event:     a.Event,
		Score:     a.Score,
		Details:   a.Details,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode alert record: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(a.UserID.String()),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce alert record: %w", err)
	}
	return nil
}
