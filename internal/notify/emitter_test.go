package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/VisionServe/internal/domain/predict"
	"github.com/turtacn/VisionServe/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/VisionServe/internal/testutil"
)

type capturePublisher struct {
	mu      sync.Mutex
	records map[string][][]byte
	err     error
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{records: make(map[string][][]byte)}
}

func (c *capturePublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.records[topic] = append(c.records[topic], value)
	return nil
}

func (c *capturePublisher) topic(name string) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[name]
}

func TestEmitAuditStripsResults(t *testing.T) {
	pub := newCapturePublisher()
	e := NewEmitter(pub, logging.NewNopLogger())

	e.EmitAudit(context.Background(), predict.Callback{
		ID:       "r1",
		Success:  true,
		TaskName: "detect",
		Count:    2,
		Results:  []interface{}{map[string]interface{}{"label": "cat"}},
	})

	records := pub.topic(kafka.TopicAudit)
	require.Len(t, records, 1)

	var got predict.Callback
	require.NoError(t, json.Unmarshal(records[0], &got))
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, 2, got.Count)
	assert.Nil(t, got.Results)
}

func TestEmitMetricsKeepsResults(t *testing.T) {
	pub := newCapturePublisher()
	e := NewEmitter(pub, logging.NewNopLogger())

	e.EmitMetrics(context.Background(), predict.Callback{
		ID:      "r2",
		Success: true,
		Count:   1,
		Results: []interface{}{"hit"},
	})

	records := pub.topic(kafka.TopicMetrics)
	require.Len(t, records, 1)

	var got predict.Callback
	require.NoError(t, json.Unmarshal(records[0], &got))
	require.Len(t, got.Results, 1)
	assert.Equal(t, "hit", got.Results[0])
}

func TestEmitDropsOversizedPayload(t *testing.T) {
	pub := newCapturePublisher()
	log := testutil.NewMockLogger()
	m := prometheus.NewPipelineMetrics("test")
	e := NewEmitter(pub, log, WithMetrics(m))

	e.EmitMetrics(context.Background(), predict.Callback{
		ID:      "r3",
		Results: []interface{}{strings.Repeat("x", MaxMessageBytes+1)},
	})

	assert.Empty(t, pub.topic(kafka.TopicMetrics))
	assert.Equal(t, 1, log.CountLevel("warn"))
	assert.Equal(t, 1.0,
		promtestutil.ToFloat64(m.RecordsDropped.WithLabelValues(kafka.TopicMetrics, "oversize")))
}

func TestEmitPublishErrorIsSwallowed(t *testing.T) {
	pub := newCapturePublisher()
	pub.err = errors.New("broker down")
	log := testutil.NewMockLogger()
	m := prometheus.NewPipelineMetrics("test")
	e := NewEmitter(pub, log, WithMetrics(m))

	// must not panic or propagate
	e.EmitAudit(context.Background(), predict.Callback{ID: "r4"})
	assert.Empty(t, pub.topic(kafka.TopicAudit))
	assert.Equal(t, 1, log.CountLevel("error"))
	assert.Equal(t, 1.0,
		promtestutil.ToFloat64(m.RecordsDropped.WithLabelValues(kafka.TopicAudit, "publish_error")))
}
