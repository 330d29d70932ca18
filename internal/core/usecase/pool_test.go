package usecase

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fundingstack/docintake/internal/core/domain"
)

type poolProcessorFake struct {
	mu   sync.Mutex
	ids  []string
	err  error
	done chan struct{}
}

func (f *poolProcessorFake) ProcessByID(_ context.Context, id string) error {
	f.mu.Lock()
	f.ids = append(f.ids, id)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return f.err
}

func (f *poolProcessorFake) processed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ids))
	copy(out, f.ids)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorkerPoolProcessesSubmissions(t *testing.T) {
	fake := &poolProcessorFake{done: make(chan struct{}, 3)}
	pool := NewWorkerPool(fake, 2, 8, time.Second, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	for _, id := range []string{"doc-a", "doc-b", "doc-c"} {
		if err := pool.Submit(id); err != nil {
			t.Fatalf("Submit(%s) error = %v", id, err)
		}
	}
	for i := 0; i < 3; i++ {
		select {
		case <-fake.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for submission %d", i)
		}
	}
	cancel()
	pool.Wait()

	got := fake.processed()
	sort.Strings(got)
	if len(got) != 3 || got[0] != "doc-a" || got[1] != "doc-b" || got[2] != "doc-c" {
		t.Fatalf("processed = %v", got)
	}
}

func TestWorkerPoolRejectsWhenSaturated(t *testing.T) {
	pool := NewWorkerPool(&poolProcessorFake{}, 1, 2, time.Second, discardLogger())

	// No Start call, so nothing drains the queue.
	if err := pool.Submit("doc-a"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := pool.Submit("doc-b"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	err := pool.Submit("doc-c")
	if !domain.IsKind(err, domain.ErrQueueSaturated) {
		t.Fatalf("expected queue saturation, got %v", err)
	}
}

type poolDeadlineFake struct {
	hasDeadline chan bool
}

func (f *poolDeadlineFake) ProcessByID(ctx context.Context, _ string) error {
	_, ok := ctx.Deadline()
	f.hasDeadline <- ok
	return nil
}

func TestWorkerPoolBoundsProcessingTime(t *testing.T) {
	fake := &poolDeadlineFake{hasDeadline: make(chan bool, 1)}
	pool := NewWorkerPool(fake, 1, 1, 250*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	if err := pool.Submit("doc-a"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	select {
	case ok := <-fake.hasDeadline:
		if !ok {
			t.Fatalf("expected a processing deadline")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the worker")
	}
	cancel()
	pool.Wait()
}
