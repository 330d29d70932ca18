package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fundingstack/docintake/internal/core/domain"
	"github.com/fundingstack/docintake/internal/core/ports"
)

// WorkerPool fans queued document IDs out to a fixed set of processing
// goroutines over a bounded channel. A full channel surfaces as
// ErrQueueSaturated from Submit; the subscriber decides how to requeue.
type WorkerPool struct {
	processor ports.DocumentProcessor
	queue     chan string
	workers   int
	timeout   time.Duration
	log       *slog.Logger
	wg        sync.WaitGroup
}

func NewWorkerPool(processor ports.DocumentProcessor, workers, queueSize int, timeout time.Duration, log *slog.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &WorkerPool{
		processor: processor,
		queue:     make(chan string, queueSize),
		workers:   workers,
		timeout:   timeout,
		log:       log,
	}
}

// Submit enqueues a document without blocking.
func (p *WorkerPool) Submit(documentID string) error {
	select {
	case p.queue <- documentID:
		return nil
	default:
		return domain.WrapError(domain.ErrQueueSaturated, "submit document",
			fmt.Errorf("queue at capacity %d", cap(p.queue)))
	}
}

// Start launches the workers and returns immediately. Workers exit when ctx
// is canceled; Wait blocks until they are gone.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case documentID := <-p.queue:
			p.processOne(ctx, documentID)
		}
	}
}

func (p *WorkerPool) processOne(ctx context.Context, documentID string) {
	procCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.processor.ProcessByID(procCtx, documentID)
	switch {
	case err == nil:
	case domain.IsKind(err, domain.ErrConcurrentProcessing):
		// Duplicate delivery; the other worker owns this document.
		p.log.Warn("skipped concurrent delivery", "document_id", documentID)
	default:
		p.log.Error("process document failed", "document_id", documentID, "error", err)
	}
}
