package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/checksync/internal/domain/check"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestStatusEventsPublishesJSON(t *testing.T) {
	w := &captureWriter{}
	ev := NewStatusEvents(newProducer(w, "status", nil))
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	err := ev.PublishStatusChanged(context.Background(), check.Check{
		ID: "c1", OwnerID: "u1", Name: "api", URL: "https://api.example",
		LastStatusCode: 503, LastCheckedAt: at,
	}, check.StatusUp, check.StatusDown)
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "c1", string(w.msgs[0].Key))

	var got StatusChanged
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, StatusChanged{
		CheckID: "c1", OwnerID: "u1", Name: "api", URL: "https://api.example",
		Old: check.StatusUp, New: check.StatusDown, StatusCode: 503, At: at,
	}, got)
}

func TestStatusEventsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	ev := NewStatusEvents(newProducer(&captureWriter{err: boom}, "status", nil))
	err := ev.PublishStatusChanged(context.Background(), check.Check{ID: "c1"}, check.StatusUnknown, check.StatusUp)
	assert.ErrorIs(t, err, boom)
}

type sliceReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *sliceReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *sliceReader) Close() error { return nil }

func TestConsumerDecodesAndCommitsHandled(t *testing.T) {
	good, _ := json.Marshal(StatusChanged{CheckID: "c1", New: check.StatusDown})
	ctx, cancel := context.WithCancel(context.Background())
	r := &sliceReader{cancel: cancel, msgs: []kafka.Message{
		{Offset: 1, Key: []byte("c1"), Value: good},
		{Offset: 2, Key: []byte("c2"), Value: []byte("{not json")},
	}}
	c := &Consumer{reader: r, log: zap.NewNop()}

	var seen []StatusChanged
	err := c.Consume(ctx, JSONHandler(func(_ context.Context, key string, ev StatusChanged) error {
		assert.Equal(t, "c1", key)
		seen = append(seen, ev)
		return nil
	}))
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, seen, 1)
	assert.Equal(t, check.StatusDown, seen[0].New)
	assert.Equal(t, []int64{1}, r.committed, "undecodable message is not committed")
}

func TestCarrierRoundTrip(t *testing.T) {
	m := mapCarrierHeaders{"traceparent": "00-abc-def-01"}
	h := mapCarrierFromKafka(m.ToKafka())
	assert.Equal(t, "00-abc-def-01", h.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, h.Keys())
	assert.Empty(t, h.Get("missing"))
}
