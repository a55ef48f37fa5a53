package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/address-geocoder/internal/config"
	"github.com/couchcryptid/address-geocoder/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Header keys set on every marker message.
const (
	HeaderOutcome     = "outcome"
	HeaderBackend     = "backend"
	HeaderProcessedAt = "processed_at"
)

// Writer produces marker events to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{}, // markers for one record stay ordered
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes the markers in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.MarkerEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write markers: %w", err)
	}
	w.logger.Debug("markers published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a MarkerEvent into a Kafka message keyed by
// record id.
func serializeToMessage(event domain.MarkerEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize marker event: %w", err)
	}
	headers := []kafkago.Header{
		{Key: HeaderOutcome, Value: []byte(event.Outcome)},
		{Key: HeaderProcessedAt, Value: []byte(event.ProcessedAt.Format(time.RFC3339))},
	}
	if event.Backend != "" {
		headers = append(headers, kafkago.Header{Key: HeaderBackend, Value: []byte(event.Backend)})
	}
	return kafkago.Message{
		Key:     []byte(event.ID),
		Value:   data,
		Headers: headers,
	}, nil
}
