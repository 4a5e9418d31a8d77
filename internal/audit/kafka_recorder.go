package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/dvernon0786/Infin8Content-sub005/internal/config"
	"github.com/dvernon0786/Infin8Content-sub005/internal/observability"
)

// messageWriter is the subset of kafka.Writer used by the recorder.
// Narrowed to an interface so tests can substitute a fake.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Compile-time interface verification.
var _ Recorder = (*KafkaRecorder)(nil)

// KafkaRecorder publishes audit events to a Kafka topic, keyed by workflow
// entity ID so events for one workflow stay ordered within a partition.
type KafkaRecorder struct {
	writer       messageWriter
	writeTimeout time.Duration
	logger       zerolog.Logger
	metrics      *observability.Metrics
}

// NewKafkaRecorder creates a recorder backed by a kafka.Writer.
func NewKafkaRecorder(cfg config.AuditConfig, logger zerolog.Logger, metrics *observability.Metrics) *KafkaRecorder {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		// The recorder already swallows errors; retrying inside the writer
		// would only delay the caller.
		MaxAttempts: 1,
		Async:       false,
	}

	return &KafkaRecorder{
		writer:       writer,
		writeTimeout: cfg.WriteTimeout,
		logger:       logger.With().Str("component", "audit_recorder").Logger(),
		metrics:      metrics,
	}
}

// Record publishes the event. Failures are logged and counted, never returned:
// audit must not fail the operation it describes. The publish is detached from
// the caller's context cancellation so an aborted request still gets its
// trailing audit event.
func (r *KafkaRecorder) Record(ctx context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error().Err(err).
			Str("action", event.Action).
			Msg("failed to marshal audit event")
		r.metrics.AuditPublishFailures.Inc()
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
	defer cancel()

	err = r.writer.WriteMessages(publishCtx, kafka.Message{
		Key:   []byte(event.EntityID),
		Value: payload,
	})
	if err != nil {
		r.logger.Error().Err(err).
			Str("action", event.Action).
			Str("entity_id", event.EntityID).
			Msg("failed to publish audit event")
		r.metrics.AuditPublishFailures.Inc()
		return
	}

	r.logger.Debug().
		Str("action", event.Action).
		Str("entity_id", event.EntityID).
		Msg("audit event published")
}

// Close closes the underlying Kafka writer.
func (r *KafkaRecorder) Close() error {
	return r.writer.Close()
}
