package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/justQrius/companion-network-sub000/internal/domain"
)

// KafkaSink mirrors audit events to a Kafka topic for downstream
// consumers. Produces are fire-and-forget: a broker outage must never
// block or fail the call being audited.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaSink connects a producer to the given brokers. A nil logger
// disables delivery-failure logging.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaSink{client: client, topic: topic, logger: logger}, nil
}

// Emit produces one event keyed by sender so a consumer sees each
// principal's calls in order.
func (s *KafkaSink) Emit(event domain.AuditEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("audit sink encode failed", "error", err)
		}
		return
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Sender),
		Value: value,
	}
	s.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
		if err != nil && s.logger != nil {
			s.logger.Warn("audit sink produce failed", "error", err)
		}
	})
}

// Close flushes outstanding produces and releases the client.
func (s *KafkaSink) Close() {
	s.client.Close()
}
