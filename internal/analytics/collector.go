package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/jayc-10/corpusearch/pkg/kafka"
)

const (
	defaultBufferSize = 10000
	publishBatchSize  = 100
	publishInterval   = 5 * time.Second
)

// Collector takes query events off the request path. Every event feeds
// the in-process aggregator; with a producer configured, events are
// also published to Kafka in batches.
type Collector struct {
	agg      *Aggregator
	producer *kafka.Producer
	eventCh  chan QueryEvent
	batch    []kafka.Event
	logger   *slog.Logger
	done     chan struct{}
}

// NewCollector creates a Collector. producer may be nil to keep events
// local.
func NewCollector(agg *Aggregator, producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Collector{
		agg:      agg,
		producer: producer,
		eventCh:  make(chan QueryEvent, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the consume loop.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(publishInterval)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-c.eventCh:
				if !ok {
					c.publishBatch(context.Background())
					return
				}
				c.consume(ctx, ev)
			case <-ticker.C:
				c.publishBatch(ctx)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track hands an event to the collector without blocking the caller.
// Events are dropped when the buffer is full.
func (c *Collector) Track(ev QueryEvent) {
	select {
	case c.eventCh <- ev:
	default:
		c.logger.Warn("analytics event dropped, buffer full")
	}
}

// Close drains buffered events and stops the loop.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) consume(ctx context.Context, ev QueryEvent) {
	c.agg.Record(ev)
	if c.producer == nil {
		return
	}
	c.batch = append(c.batch, kafka.Event{Key: "search", Value: ev})
	if len(c.batch) >= publishBatchSize {
		c.publishBatch(ctx)
	}
}

func (c *Collector) publishBatch(ctx context.Context) {
	if c.producer == nil || len(c.batch) == 0 {
		return
	}
	if err := c.producer.PublishBatch(ctx, c.batch); err != nil {
		c.logger.Error("publishing analytics batch failed", "events", len(c.batch), "error", err)
	}
	c.batch = c.batch[:0]
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case ev, ok := <-c.eventCh:
			if !ok {
				c.publishBatch(context.Background())
				return
			}
			c.consume(context.Background(), ev)
		default:
			c.publishBatch(context.Background())
			return
		}
	}
}
