//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/couchcryptid/address-geocoder/internal/adapter/google"
	"github.com/couchcryptid/address-geocoder/internal/adapter/kafka"
	"github.com/couchcryptid/address-geocoder/internal/config"
	"github.com/couchcryptid/address-geocoder/internal/domain"
	"github.com/couchcryptid/address-geocoder/internal/geocode"
	"github.com/couchcryptid/address-geocoder/internal/observability"
	"github.com/couchcryptid/address-geocoder/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const (
	testSourceTopic = "test-source"
	testSinkTopic   = "test-sink"
	kafkaImage      = "confluentinc/confluent-local:7.5.0"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("test-cluster"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// fakeGoogle answers every geocode request with fixed coordinates, except
// addresses in the city "Nowhere", which get ZERO_RESULTS.
func fakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Query().Get("address"), "Nowhere") {
			_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":40.0,"lng":-75.0}}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newChain(t *testing.T) *geocode.Chain {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	g := google.NewClient(google.Options{
		BaseURL: fakeGoogle(t).URL,
		Timeout: 5 * time.Second,
		Retry:   google.RetryPolicy{MaxAttempts: 3},
	}, metrics, discardLogger())
	return geocode.NewChain([]domain.Backend{g}, metrics, discardLogger())
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 2 * time.Second,
	}
}

// fakeRecords generates deterministic address records.
func fakeRecords(n int) []domain.AddressRecord {
	faker := gofakeit.New(42)
	records := make([]domain.AddressRecord, n)
	for i := range records {
		records[i] = domain.AddressRecord{
			ID:      fmt.Sprintf("user-%d", i),
			Title:   faker.Name(),
			Street:  faker.Street(),
			City:    faker.City(),
			State:   faker.StateAbr(),
			Zip:     faker.Zip(),
			Country: "US",
		}
	}
	return records
}

func publish(ctx context.Context, t *testing.T, broker string, msgs ...kafkago.Message) {
	t.Helper()
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, msgs...))
}

func recordMessage(t *testing.T, rec domain.AddressRecord) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(rec)
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(rec.ID), Value: payload}
}

type sinkMessage struct {
	Event   domain.MarkerEvent
	Key     string
	Headers map[string]string
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// readMarker reads a single message from the sink consumer and deserializes it.
func readMarker(ctx context.Context, t *testing.T, consumer *kafkago.Reader) sinkMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.MarkerEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal sink message")

	return sinkMessage{Event: event, Key: string(msg.Key), Headers: headers}
}

func runPipeline(ctx context.Context, t *testing.T, cfg *config.Config) (stop func()) {
	t.Helper()
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	transformer := pipeline.NewTransformer(newChain(t), nil, nil, discardLogger())
	p := pipeline.New(reader, transformer, writer, discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{BatchSize: 50})

	pipelineCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	return func() {
		cancel()
		require.NoError(t, <-errCh)
	}
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (Extractor) and
// kafka.Writer (Loader) correctly round-trip a record through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	rec := fakeRecords(1)[0]
	msg := recordMessage(t, rec)
	publish(ctx, t, broker, msg)

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte(rec.ID), raw.Key)
	assert.Equal(t, msg.Value, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	transformer := pipeline.NewTransformer(newChain(t), nil, nil, discardLogger())
	event, err := transformer.Transform(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.MarkerEvent{event}))

	sm := readMarker(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, rec.ID, sm.Key)
	assert.Equal(t, "success", sm.Headers[kafka.HeaderOutcome])
	assert.Equal(t, google.Name, sm.Headers[kafka.HeaderBackend])
	_, err = time.Parse(time.RFC3339, sm.Headers[kafka.HeaderProcessedAt])
	require.NoError(t, err, "processed_at should be valid RFC3339")

	require.NotNil(t, sm.Event.Geo)
	assert.Equal(t, 40.0, sm.Event.Geo.Lat)
	assert.Equal(t, -75.0, sm.Event.Geo.Lon)
	assert.Equal(t, rec.City, sm.Event.Address.City)
}

// TestPipelineEndToEnd wires the full pipeline (Reader, Transformer, Writer) with
// real Kafka and verifies every record produces a marker, failed geocodes included.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	records := fakeRecords(25)
	records[3].City = "Nowhere"
	msgs := make([]kafkago.Message, 0, len(records))
	for _, rec := range records {
		msgs = append(msgs, recordMessage(t, rec))
	}
	publish(ctx, t, broker, msgs...)

	stop := runPipeline(ctx, t, cfg)

	consumer := sinkConsumer(t, broker)
	received := make(map[string]sinkMessage, len(records))
	for len(received) < len(records) {
		sm := readMarker(ctx, t, consumer)
		received[sm.Key] = sm
	}
	stop()

	for _, rec := range records {
		sm, ok := received[rec.ID]
		require.True(t, ok, "missing marker for %s", rec.ID)
		if rec.City == "Nowhere" {
			assert.Equal(t, domain.OutcomeFailure, sm.Event.Outcome)
			assert.Equal(t, google.StatusZeroResults, sm.Event.Status)
			assert.Nil(t, sm.Event.Geo)
			continue
		}
		assert.Equal(t, domain.OutcomeSuccess, sm.Event.Outcome, rec.ID)
		assert.NotNil(t, sm.Event.Geo, rec.ID)
		assert.Equal(t, rec.Title, sm.Event.Title)
	}
}

// TestPipelineInvalidRecord verifies that an invalid message (poison pill) is
// skipped and the pipeline continues processing valid messages.
func TestPipelineInvalidRecord(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-poison")

	good := fakeRecords(1)[0]
	publish(ctx, t, broker,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		recordMessage(t, good),
	)

	stop := runPipeline(ctx, t, cfg)
	consumer := sinkConsumer(t, broker)

	sm := readMarker(ctx, t, consumer)
	assert.Equal(t, good.ID, sm.Key)

	// Verify no second message arrives (the poison pill was skipped).
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	stop()
}
