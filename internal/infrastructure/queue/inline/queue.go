// Package inline dispatches ingestion events inside the API process, either on
// a bounded ants worker pool or synchronously on the caller's goroutine.
package inline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

type Options struct {
	// Sync runs the handler before PublishDocumentIngested returns.
	Sync           bool
	Workers        int
	MaxPending     int
	HandlerTimeout time.Duration
}

type Handler func(context.Context, string) error

// Queue accepts up to Workers+MaxPending documents. Workers of them run the
// handler at once; the rest wait on slots. Publishing beyond that fails fast.
type Queue struct {
	opts  Options
	pool  *ants.Pool
	slots chan struct{}

	mu      sync.RWMutex
	handler Handler
}

func New(opts Options) (*Queue, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = 256
	}

	q := &Queue{opts: opts}
	if opts.Sync {
		return q, nil
	}

	pool, err := ants.NewPool(opts.Workers+opts.MaxPending,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			slog.Error("worker_panic_recovered", "panic", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	q.pool = pool
	q.slots = make(chan struct{}, opts.Workers)
	return q, nil
}

// SubscribeDocumentIngested registers the handler and returns immediately.
func (q *Queue) SubscribeDocumentIngested(_ context.Context, handler func(context.Context, string) error) error {
	if handler == nil {
		return errors.New("inline queue: handler is nil")
	}
	q.mu.Lock()
	q.handler = handler
	q.mu.Unlock()
	return nil
}

// PublishDocumentIngested hands the document to the handler. Handler errors are
// logged, never returned; the handler records failures on the document itself.
func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	q.mu.RLock()
	handler := q.handler
	q.mu.RUnlock()
	if handler == nil {
		return errors.New("inline queue: no subscriber")
	}

	// Processing outlives the upload request in both modes.
	detached := context.WithoutCancel(ctx)
	if q.pool == nil {
		q.run(detached, handler, documentID)
		return nil
	}

	// Submit never blocks: a full pool reports ErrPoolOverload.
	err := q.pool.Submit(func() {
		q.slots <- struct{}{}
		defer func() { <-q.slots }()
		q.run(detached, handler, documentID)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolOverload), errors.Is(err, ants.ErrPoolClosed):
		return domain.WrapError(domain.ErrTemporary, "inline publish", err)
	default:
		return fmt.Errorf("inline publish: %w", err)
	}
}

func (q *Queue) run(ctx context.Context, handler Handler, documentID string) {
	if q.opts.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.opts.HandlerTimeout)
		defer cancel()
	}
	if err := handler(ctx, documentID); err != nil {
		slog.Error("worker_handler_failed", "document_id", documentID, "error", err)
	}
}

// Running reports accepted tasks that have not finished, including those
// waiting for a slot.
func (q *Queue) Running() int {
	if q.pool == nil {
		return 0
	}
	return q.pool.Running()
}

// Close waits up to timeout for in-flight tasks.
func (q *Queue) Close(timeout time.Duration) error {
	if q.pool == nil {
		return nil
	}
	return q.pool.ReleaseTimeout(timeout)
}
