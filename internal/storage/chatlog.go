package storage

import (
	"context"
	"sync"
	"time"

	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
	"github.com/melonneet/ezhishi-chatbot/internal/logger"
	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
)

const (
	defaultChatLogBuffer  = 256
	defaultChatLogTimeout = 5 * time.Second
)

// Writer is the persistence the chat logger drains into. *DB implements it.
type Writer interface {
	SaveMessage(ctx context.Context, m Message) error
	RecordQuestion(ctx context.Context, q Question) error
	EndSession(ctx context.Context, sessionID string, at time.Time) error
}

// ChatLogOptions configures a ChatLogger.
type ChatLogOptions struct {
	// BufferSize is the number of pending jobs before new ones are dropped.
	BufferSize int

	// WriteTimeout bounds each database write.
	WriteTimeout time.Duration

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

type chatLogJob struct {
	message  *Message
	question *Question
	ended    *sessionEnd
}

type sessionEnd struct {
	sessionID string
	at        time.Time
}

// ChatLogger records chat turns fire-and-forget. One background worker
// writes jobs in order; when the buffer is full jobs are dropped and
// counted, so a slow disk never delays a reply.
type ChatLogger struct {
	w       Writer
	opts    ChatLogOptions
	ch      chan chatLogJob
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewChatLogger starts the worker. Call Close to drain and stop it.
func NewChatLogger(w Writer, opts ChatLogOptions) *ChatLogger {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultChatLogBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultChatLogTimeout
	}
	l := &ChatLogger{
		w:       w,
		opts:    opts,
		ch:      make(chan chatLogJob, opts.BufferSize),
		done:    make(chan struct{}),
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	go l.run()
	return l
}

// Record logs one message. It never blocks.
func (l *ChatLogger) Record(sessionID string, turn TurnType, text string) {
	l.RecordMessage(Message{SessionID: sessionID, Type: turn, Text: text})
}

// RecordMessage logs a message with its match details. It never blocks.
func (l *ChatLogger) RecordMessage(m Message) {
	if l == nil {
		return
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	l.enqueue(chatLogJob{message: &m})
}

// RecordQuestion adds a question analytics observation. It never blocks.
func (l *ChatLogger) RecordQuestion(q Question) {
	if l == nil {
		return
	}
	if q.AskedAt.IsZero() {
		q.AskedAt = time.Now()
	}
	l.enqueue(chatLogJob{question: &q})
}

// RecordSessionEnd stamps the end of a session. It never blocks.
func (l *ChatLogger) RecordSessionEnd(sessionID string) {
	if l == nil || sessionID == "" {
		return
	}
	l.enqueue(chatLogJob{ended: &sessionEnd{sessionID: sessionID, at: time.Now()}})
}

func (l *ChatLogger) enqueue(job chatLogJob) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.ch <- job:
	default:
		l.metrics.RecordChatLogDrop()
	}
}

func (l *ChatLogger) run() {
	defer close(l.done)
	for job := range l.ch {
		l.write(job)
	}
}

func (l *ChatLogger) write(job chatLogJob) {
	ctx, cancel := context.WithTimeout(context.Background(), l.opts.WriteTimeout)
	defer cancel()

	kind := "message"
	var err error
	switch {
	case job.message != nil:
		err = l.w.SaveMessage(ctx, *job.message)
	case job.question != nil:
		kind = "question"
		err = l.w.RecordQuestion(ctx, *job.question)
	case job.ended != nil:
		kind = "session_end"
		err = l.w.EndSession(ctx, job.ended.sessionID, job.ended.at)
		if domerrors.IsNotFound(err) {
			// a session that never logged a message has nothing to stamp
			err = nil
		}
	}
	if err != nil {
		l.metrics.RecordChatLogWrite(kind, "error")
		if l.logger != nil {
			l.logger.WithError(err).WithField("kind", kind).Warn("Chat log write failed")
		}
		return
	}
	l.metrics.RecordChatLogWrite(kind, "success")
}

// Close stops accepting jobs and waits for pending ones until ctx ends.
// Safe to call multiple times.
func (l *ChatLogger) Close(ctx context.Context) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
