package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

// WorkerHealth is a point-in-time snapshot of one mailbox worker.
type WorkerHealth struct {
	ID                string    `json:"id"`
	QueueDepth        int       `json:"queue_depth"`
	MessagesProcessed int       `json:"messages_processed"`
	MessagesDropped   int       `json:"messages_dropped"`
	LastActivity      time.Time `json:"last_activity"`
}

// worker owns one mailbox partition and drains it sequentially.
type worker struct {
	id        string
	cfg       *config.DispatchConfig
	processor Processor
	mailbox   chan *models.InboundMessage

	submitMu sync.Mutex // serializes the drop-oldest dance
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu           sync.RWMutex
	processed    int
	dropped      int
	lastActivity time.Time
}

func newWorker(id string, cfg *config.DispatchConfig, processor Processor) *worker {
	return &worker{
		id:           id,
		cfg:          cfg,
		processor:    processor,
		mailbox:      make(chan *models.InboundMessage, cfg.MailboxDepth),
		stopCh:       make(chan struct{}),
		lastActivity: time.Now(),
	}
}

func (w *worker) start() {
	w.wg.Add(1)
	go w.run()
}

// stop drains the mailbox, finishes in-flight work, then returns.
func (w *worker) stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// submit enqueues without blocking; on a full mailbox the oldest queued
// message is dropped with a warning.
func (w *worker) submit(msg *models.InboundMessage) {
	w.submitMu.Lock()
	defer w.submitMu.Unlock()

	select {
	case w.mailbox <- msg:
		return
	default:
	}
	select {
	case dropped := <-w.mailbox:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		slog.Warn("Mailbox full, dropping oldest message",
			"worker_id", w.id,
			"conversation_id", dropped.ConversationID,
			"request_id", dropped.RequestID)
	default:
	}
	select {
	case w.mailbox <- msg:
	default:
	}
}

func (w *worker) run() {
	defer w.wg.Done()
	log := slog.With("worker_id", w.id)
	log.Info("Mailbox worker started")

	for {
		select {
		case msg := <-w.mailbox:
			w.process(msg)
		case <-w.stopCh:
			for {
				select {
				case msg := <-w.mailbox:
					w.process(msg)
				default:
					log.Info("Mailbox worker shutting down")
					return
				}
			}
		}
	}
}

func (w *worker) process(msg *models.InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.MessageTimeout)
	defer cancel()

	if err := w.processor.ProcessMessage(ctx, msg); err != nil {
		slog.Error("Message processing failed",
			"worker_id", w.id,
			"conversation_id", msg.ConversationID,
			"tenant_id", msg.TenantID,
			"request_id", msg.RequestID,
			"error", err)
	}

	w.mu.Lock()
	w.processed++
	w.lastActivity = time.Now()
	w.mu.Unlock()
}

func (w *worker) health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                w.id,
		QueueDepth:        len(w.mailbox),
		MessagesProcessed: w.processed,
		MessagesDropped:   w.dropped,
		LastActivity:      w.lastActivity,
	}
}
