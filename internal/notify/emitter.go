// Package notify publishes terminal-state records for finished prediction
// requests.  Emission is best effort: a broker failure is logged and never
// alters the request outcome.
package notify

import (
	"context"
	"encoding/json"

	"github.com/turtacn/VisionServe/internal/domain/predict"
	"github.com/turtacn/VisionServe/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/prometheus"
)

// MaxMessageBytes is the largest serialized payload the emitter will
// publish.  Larger payloads are dropped with a warning.
const MaxMessageBytes = 250000

// Publisher is the broker surface the emitter needs.  The kafka producer
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Emitter writes audit and metrics records.
type Emitter struct {
	publisher Publisher
	logger    logging.Logger
	metrics   *prometheus.PipelineMetrics
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithMetrics counts dropped records on the pipeline metrics.
func WithMetrics(m *prometheus.PipelineMetrics) Option {
	return func(e *Emitter) { e.metrics = m }
}

// NewEmitter builds an Emitter over a publisher.
func NewEmitter(pub Publisher, log logging.Logger, opts ...Option) *Emitter {
	e := &Emitter{publisher: pub, logger: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EmitAudit publishes the request-log record for cb.  Raw results are
// stripped first; the audit stream carries outcome and billing count only.
func (e *Emitter) EmitAudit(ctx context.Context, cb predict.Callback) {
	e.emit(ctx, kafka.TopicAudit, cb.WithoutResults())
}

// EmitMetrics publishes the full callback payload.  Only asynchronous
// requests reach this stream.
func (e *Emitter) EmitMetrics(ctx context.Context, cb predict.Callback) {
	e.emit(ctx, kafka.TopicMetrics, cb)
}

func (e *Emitter) emit(ctx context.Context, topic string, cb predict.Callback) {
	payload, err := json.Marshal(cb)
	if err != nil {
		e.logger.Error("Failed to serialize record",
			logging.String("topic", topic),
			logging.String("request_id", cb.ID),
			logging.Err(err))
		e.dropped(topic, "serialize_error")
		return
	}
	if len(payload) > MaxMessageBytes {
		e.logger.Warn("Record exceeds size limit, dropping",
			logging.String("topic", topic),
			logging.String("request_id", cb.ID),
			logging.Int("bytes", len(payload)))
		e.dropped(topic, "oversize")
		return
	}
	if err := e.publisher.Publish(ctx, topic, []byte(cb.ID), payload); err != nil {
		e.logger.Error("Failed to publish record",
			logging.String("topic", topic),
			logging.String("request_id", cb.ID),
			logging.Err(err))
		e.dropped(topic, "publish_error")
	}
}

func (e *Emitter) dropped(topic, reason string) {
	if e.metrics != nil {
		e.metrics.RecordsDropped.WithLabelValues(topic, reason).Inc()
	}
}
