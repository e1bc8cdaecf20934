// Package dispatch fans inbound messages out to a fixed pool of mailbox
// workers. Messages for one conversation always hash to the same partition,
// so a conversation is processed strictly in order while different
// conversations run in parallel.
package dispatch

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

// Processor runs one pipeline pass for an inbound message.
type Processor interface {
	ProcessMessage(ctx context.Context, msg *models.InboundMessage) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, msg *models.InboundMessage) error

func (f ProcessorFunc) ProcessMessage(ctx context.Context, msg *models.InboundMessage) error {
	return f(ctx, msg)
}

// Pool is the partitioned mailbox worker pool.
type Pool struct {
	cfg       *config.DispatchConfig
	processor Processor
	workers   []*worker

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewPool creates a pool. Workers do not run until Start.
func NewPool(cfg *config.DispatchConfig, processor Processor) *Pool {
	p := &Pool{cfg: cfg, processor: processor}
	for i := 0; i < cfg.WorkerCount; i++ {
		p.workers = append(p.workers, newWorker(fmt.Sprintf("mailbox-%d", i), cfg, processor))
	}
	return p
}

// Start spawns the worker goroutines.
// Safe to call multiple times; subsequent calls are no-ops.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		slog.Warn("Dispatch pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true

	slog.Info("Starting dispatch pool",
		"worker_count", p.cfg.WorkerCount, "mailbox_depth", p.cfg.MailboxDepth)
	for _, w := range p.workers {
		w.start()
	}
}

// Submit routes a message to its conversation's partition without blocking.
// When the mailbox is full the oldest queued message is dropped with a
// warning. Returns false if the pool is not accepting messages.
func (p *Pool) Submit(msg *models.InboundMessage) bool {
	p.mu.Lock()
	accepting := p.started && !p.stopped
	p.mu.Unlock()
	if !accepting || msg == nil {
		return false
	}
	p.workers[p.partition(msg.ConversationID)].submit(msg)
	return true
}

func (p *Pool) partition(conversationID string) int {
	h := fnv.New32a()
	h.Write([]byte(conversationID))
	return int(h.Sum32() % uint32(len(p.workers)))
}

// Stop rejects new messages and waits for in-flight work, bounded by the
// configured graceful shutdown timeout.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	slog.Info("Stopping dispatch pool gracefully")
	done := make(chan struct{})
	go func() {
		for _, w := range p.workers {
			w.stop()
		}
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Dispatch pool stopped gracefully")
	case <-time.After(p.cfg.GracefulShutdownTimeout):
		slog.Warn("Dispatch pool shutdown timed out with work in flight")
	}
}

// Health reports the state of every mailbox worker.
func (p *Pool) Health() []WorkerHealth {
	out := make([]WorkerHealth, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w.health())
	}
	return out
}
