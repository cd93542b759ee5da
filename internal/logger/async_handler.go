package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultAsyncBufferSize   = 1024
	defaultAsyncFlushTimeout = 5 * time.Second
	defaultAsyncKeepWait     = 250 * time.Millisecond
)

// AsyncOptions configures an AsyncHandler.
type AsyncOptions struct {
	BufferSize   int           // queued records before dropping (0 = 1024)
	FlushTimeout time.Duration // Shutdown budget when ctx has no deadline (0 = 5s)

	// Records at or above KeepLevel (nil = error) wait up to KeepWait for
	// queue room instead of being dropped. KeepWait 0 means 250ms; a
	// negative value drops every level.
	KeepLevel slog.Leveler
	KeepWait  time.Duration
}

type queuedRecord struct {
	ctx     context.Context
	record  slog.Record
	handler slog.Handler
}

// recordQueue is shared by an AsyncHandler and every handler derived from
// it with WithAttrs or WithGroup.
type recordQueue struct {
	records      chan queuedRecord
	done         chan struct{}
	mu           sync.RWMutex // held for reading while sending, for writing while closing
	closed       bool
	dropped      atomic.Uint64
	keepLevel    slog.Leveler
	keepWait     time.Duration
	flushTimeout time.Duration
}

func newRecordQueue(opts AsyncOptions) *recordQueue {
	q := &recordQueue{
		records:      make(chan queuedRecord, orDefault(opts.BufferSize, defaultAsyncBufferSize)),
		done:         make(chan struct{}),
		keepLevel:    opts.KeepLevel,
		keepWait:     opts.KeepWait,
		flushTimeout: opts.FlushTimeout,
	}
	if q.keepLevel == nil {
		q.keepLevel = slog.LevelError
	}
	if q.keepWait == 0 {
		q.keepWait = defaultAsyncKeepWait
	}
	if q.flushTimeout <= 0 {
		q.flushTimeout = defaultAsyncFlushTimeout
	}
	go q.drain()
	return q
}

func orDefault(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}

func (q *recordQueue) drain() {
	defer close(q.done)
	for rec := range q.records {
		_ = rec.handler.Handle(rec.ctx, rec.record)
	}
}

func (q *recordQueue) push(rec queuedRecord) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}

	select {
	case q.records <- rec:
		return
	default:
	}

	if q.keepWait > 0 && rec.record.Level >= q.keepLevel.Level() {
		timer := time.NewTimer(q.keepWait)
		defer timer.Stop()
		select {
		case q.records <- rec:
			return
		case <-timer.C:
		}
	}
	q.dropped.Add(1)
}

func (q *recordQueue) shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.records)
	}
	q.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.flushTimeout)
		defer cancel()
	}
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsyncHandler hands records to a single background goroutine so a slow
// remote sink never blocks request handling. When the queue is full,
// records below the keep level are dropped and counted.
type AsyncHandler struct {
	queue   *recordQueue
	handler slog.Handler
}

// NewAsyncHandler starts the background goroutine; stop it with Shutdown.
func NewAsyncHandler(handler slog.Handler, opts AsyncOptions) *AsyncHandler {
	return &AsyncHandler{
		queue:   newRecordQueue(opts),
		handler: handler,
	}
}

// Enabled implements slog.Handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle queues a clone of r. The context is detached from cancellation:
// request contexts usually end before the record is shipped.
func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.handler.Enabled(ctx, r.Level) {
		return nil
	}
	h.queue.push(queuedRecord{ctx: context.WithoutCancel(ctx), record: r.Clone(), handler: h.handler})
	return nil
}

// WithAttrs implements slog.Handler.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{queue: h.queue, handler: h.handler.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{queue: h.queue, handler: h.handler.WithGroup(name)}
}

// Dropped returns the number of records discarded because the queue was full.
func (h *AsyncHandler) Dropped() uint64 {
	if h == nil || h.queue == nil {
		return 0
	}
	return h.queue.dropped.Load()
}

// Pending returns the number of queued records not yet handled.
func (h *AsyncHandler) Pending() int {
	if h == nil || h.queue == nil {
		return 0
	}
	return len(h.queue.records)
}

// Shutdown stops accepting records and waits for the queue to drain, up to
// the flush timeout when ctx has no deadline. Later records are ignored.
func (h *AsyncHandler) Shutdown(ctx context.Context) error {
	if h == nil || h.queue == nil {
		return nil
	}
	return h.queue.shutdown(ctx)
}
