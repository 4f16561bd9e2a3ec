package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/vitalwarrior/internal/observability"
	"github.com/spec-kit/vitalwarrior/internal/syncqueue"
)

// SyncWorker drains the pending-sync queue in the background whenever it
// is triggered. Triggers that arrive while a drain runs coalesce into one
// follow-up drain.
type SyncWorker struct {
	queue   *syncqueue.Queue
	writer  syncqueue.Writer
	metrics *observability.Metrics
	logger  *zap.Logger

	trigger chan struct{}
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewSyncWorker builds a stopped worker. A nil writer makes Trigger a no-op.
func NewSyncWorker(queue *syncqueue.Queue, writer syncqueue.Writer, metrics *observability.Metrics, logger *zap.Logger) *SyncWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncWorker{
		queue:   queue,
		writer:  writer,
		metrics: metrics,
		logger:  logger.Named("sync-worker"),
		trigger: make(chan struct{}, 1),
	}
}

// Start runs the worker loop until ctx is done or Stop is called.
func (w *SyncWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.trigger:
				w.drain(ctx)
			}
		}
	}()
}

// Trigger requests a drain without waiting for it.
func (w *SyncWorker) Trigger() {
	if w.writer == nil {
		return
	}
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Stop ends the loop and waits for a running drain to return.
func (w *SyncWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// DrainNow drains synchronously on the caller's goroutine.
func (w *SyncWorker) DrainNow(ctx context.Context) (int, error) {
	if w.writer == nil {
		return 0, nil
	}
	n, err := w.queue.Drain(ctx, w.writer)
	if err == nil {
		w.metrics.RecordSynced(n)
	}
	return n, err
}

func (w *SyncWorker) drain(ctx context.Context) {
	if _, err := w.DrainNow(ctx); err != nil {
		w.logger.Warn("data sync failed", zap.Error(err))
	}
}
