// Package events publishes ingestion outcomes for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/logger"
	"github.com/markdave123-py/ragline/internal/models"
)

// OutcomeEvent is the JSON body of one published message.
type OutcomeEvent struct {
	Container  string    `json:"container"`
	Name       string    `json:"name"`
	State      string    `json:"state"`
	Chunks     int       `json:"chunks"`
	Records    int       `json:"records"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

func newOutcomeEvent(r models.IngestResult) OutcomeEvent {
	return OutcomeEvent{
		Container:  r.Ref.Container,
		Name:       r.Ref.Name,
		State:      r.State,
		Chunks:     r.Chunks,
		Records:    r.Records,
		Error:      r.Error,
		FinishedAt: r.FinishedAt,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaReporter writes one message per ingestion run, keyed by container/name
// so every outcome of a document lands on the same partition.
type KafkaReporter struct {
	writer messageWriter
	logger *slog.Logger
}

func NewKafkaReporter(brokers []string, topic string) *KafkaReporter {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	}
	return &KafkaReporter{
		writer: w,
		logger: logger.WithComponent("kafka-outcomes").With("topic", topic),
	}
}

func (k *KafkaReporter) Report(ctx context.Context, result models.IngestResult) error {
	value, err := json.Marshal(newOutcomeEvent(result))
	if err != nil {
		return fmt.Errorf("marshaling outcome: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(result.Ref.String()),
		Value: value,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing outcome to kafka: %w", err)
	}
	k.logger.Debug("outcome published", "document", result.Ref.String(), "state", result.State)
	return nil
}

// Close flushes pending writes.
func (k *KafkaReporter) Close() error {
	return k.writer.Close()
}

// LogReporter logs outcomes; used when no broker is configured.
type LogReporter struct {
	logger *slog.Logger
}

func NewLogReporter() *LogReporter {
	return &LogReporter{logger: logger.WithComponent("outcomes")}
}

func (l *LogReporter) Report(_ context.Context, result models.IngestResult) error {
	l.logger.Info("ingestion outcome",
		"document", result.Ref.String(),
		"state", result.State,
		"chunks", result.Chunks,
		"records", result.Records,
		"error", result.Error,
	)
	return nil
}

var (
	_ core.OutcomeReporter = (*KafkaReporter)(nil)
	_ core.OutcomeReporter = (*LogReporter)(nil)
)
