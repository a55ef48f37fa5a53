// Package pipeline runs the batch loop that turns address records from the
// source topic into geocoded marker events on the sink topic.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/address-geocoder/internal/domain"
	"github.com/couchcryptid/address-geocoder/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw address record into a marker event. An error
// means the message is unusable and is skipped.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.MarkerEvent, error)
}

// BatchLoader writes multiple marker events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.MarkerEvent) error
}

// Options tunes the loop. Zero values select defaults.
type Options struct {
	BatchSize      int
	InitialBackoff time.Duration // default 200ms
	MaxBackoff     time.Duration // default 5s
	Clock          clockwork.Clock
}

// Pipeline orchestrates the extract-geocode-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	opts        Options
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = max(5*time.Second, opts.InitialBackoff)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		opts:        opts,
	}
}

// CheckReadiness returns nil once the pipeline has published at least one
// marker event.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not published any markers yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.opts.BatchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Doubles on each consecutive extract or load failure, reset by a
	// successful extract.
	backoff := p.opts.InitialBackoff

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-geocode-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := p.opts.Clock.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.opts.BatchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = p.opts.InitialBackoff

	loaded, ok := p.geocodeAndLoad(ctx, rawBatch, backoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(p.opts.Clock.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// geocodeAndLoad transforms each message in the batch, loads the markers,
// and commits offsets. Unusable messages are committed and skipped. Nothing
// is committed once the context is cancelled, so those messages are
// redelivered. Returns the number of loaded markers and false if the
// pipeline should stop.
func (p *Pipeline) geocodeAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration) (int, bool) {
	markers := make([]domain.MarkerEvent, 0, len(rawBatch))
	pending := make([]domain.RawEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		marker, err := p.transformer.Transform(ctx, raw)
		if ctx.Err() != nil {
			return 0, false
		}
		if err != nil {
			p.logger.Warn("invalid address record, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		markers = append(markers, marker)
		pending = append(pending, raw)
	}

	if len(markers) == 0 {
		return 0, true
	}

	if err := p.loader.LoadBatch(ctx, markers); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(markers))
		return 0, p.backoffOrStop(ctx, backoff)
	}

	p.metrics.MessagesProduced.Add(float64(len(markers)))

	for _, raw := range pending {
		p.commitOffset(ctx, raw)
	}

	return len(markers), true
}

// backoffOrStop sleeps for the current backoff and doubles it. Returns
// false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !p.sleep(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, p.opts.MaxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-p.opts.Clock.After(d):
		return true
	}
}
