package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragline/internal/logger"
	"github.com/markdave123-py/ragline/internal/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaReporter_Report(t *testing.T) {
	w := &fakeWriter{}
	r := &KafkaReporter{writer: w, logger: logger.WithComponent("test")}
	finished := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := r.Report(context.Background(), models.IngestResult{
		Ref:        models.DocumentReference{Container: "documents", Name: "a.pdf"},
		State:      "failed",
		Chunks:     3,
		Error:      "index service unavailable",
		FinishedAt: finished,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "documents/a.pdf", string(w.msgs[0].Key))

	var ev OutcomeEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, OutcomeEvent{
		Container:  "documents",
		Name:       "a.pdf",
		State:      "failed",
		Chunks:     3,
		Error:      "index service unavailable",
		FinishedAt: finished,
	}, ev)

	require.NoError(t, r.Close())
	assert.True(t, w.closed)
}

func TestKafkaReporter_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("no brokers")}
	r := &KafkaReporter{writer: w, logger: logger.WithComponent("test")}

	err := r.Report(context.Background(), models.IngestResult{State: "done"})
	assert.ErrorContains(t, err, "no brokers")
}

func TestLogReporter(t *testing.T) {
	assert.NoError(t, NewLogReporter().Report(context.Background(), models.IngestResult{State: "done"}))
}
