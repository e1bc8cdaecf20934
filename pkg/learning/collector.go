// Package learning collects terminal conversations and their VOC records
// for offline analysis. Collection is best-effort: the pipeline never blocks
// on it, and under pressure the oldest queued sample is dropped.
package learning

import (
	"context"
	"log/slog"
	"sync"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

// DefaultQueueSize bounds the in-flight sample queue.
const DefaultQueueSize = 256

// Sample is one finished conversation with its per-turn VOC records.
type Sample struct {
	Conversation *models.Conversation
	Records      []models.VOCRecord
	Outcome      string // "resolved" or "escalated"
}

// Sink consumes collected samples.
type Sink interface {
	Consume(ctx context.Context, sample Sample) error
}

// LogSink records a summary line per sample. The default sink until a real
// analytics destination is configured.
type LogSink struct{}

func (LogSink) Consume(_ context.Context, sample Sample) error {
	conv := sample.Conversation
	if conv == nil {
		return nil
	}
	slog.Info("Learning sample collected",
		"conversation_id", conv.ID,
		"tenant_id", conv.TenantID,
		"outcome", sample.Outcome,
		"turns", conv.TurnCount,
		"voc_records", len(sample.Records))
	return nil
}

// Collector buffers samples on a bounded channel and drains them on a
// single background goroutine.
type Collector struct {
	queue chan Sample
	sink  Sink

	mu   sync.Mutex // serializes the drop-oldest dance in Submit
	wg   sync.WaitGroup
	stop chan struct{}
}

// NewCollector starts a collector. A nil sink defaults to LogSink, a
// non-positive size to DefaultQueueSize.
func NewCollector(sink Sink, size int) *Collector {
	if sink == nil {
		sink = LogSink{}
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	c := &Collector{
		queue: make(chan Sample, size),
		sink:  sink,
		stop:  make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

func (c *Collector) run() {
	defer c.wg.Done()
	for {
		select {
		case sample := <-c.queue:
			c.consume(sample)
		case <-c.stop:
			// Drain whatever was queued before shutdown.
			for {
				select {
				case sample := <-c.queue:
					c.consume(sample)
				default:
					return
				}
			}
		}
	}
}

func (c *Collector) consume(sample Sample) {
	if err := c.sink.Consume(context.Background(), sample); err != nil {
		id := ""
		if sample.Conversation != nil {
			id = sample.Conversation.ID
		}
		slog.Warn("Learning sink rejected sample", "conversation_id", id, "error", err)
	}
}

// Submit enqueues a sample without blocking. When the queue is full the
// oldest sample is discarded with a warning. Nil-safe.
func (c *Collector) Submit(sample Sample) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case c.queue <- sample:
		return
	default:
	}
	select {
	case dropped := <-c.queue:
		id := ""
		if dropped.Conversation != nil {
			id = dropped.Conversation.ID
		}
		slog.Warn("Learning queue full, dropping oldest sample", "conversation_id", id)
	default:
	}
	select {
	case c.queue <- sample:
	default:
	}
}

// Stop drains the queue and waits for the worker, bounded by ctx.
func (c *Collector) Stop(ctx context.Context) error {
	if c == nil {
		return nil
	}
	close(c.stop)
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
