package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

type blockingHandler struct {
	release chan struct{}
	mu      sync.Mutex
	count   int
}

func (h *blockingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *blockingHandler) Handle(context.Context, slog.Record) error {
	<-h.release
	h.mu.Lock()
	h.count++
	h.mu.Unlock()
	return nil
}
func (h *blockingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *blockingHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandler_FansOut(t *testing.T) {
	t.Parallel()

	var debugBuf, errorBuf bytes.Buffer
	mh := NewMultiHandler(
		Sink{Name: "empty"},
		Sink{Name: "debug", Handler: slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})},
		Sink{Name: "error", Handler: slog.NewJSONHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError})},
	)
	if len(mh.sinks) != 2 {
		t.Fatalf("Expected 2 sinks after dropping the empty one, got %d", len(mh.sinks))
	}

	log := slog.New(mh.WithAttrs([]slog.Attr{slog.String("module", "faq")}))
	log.Info("loaded")
	log.Error("reload failed")

	if strings.Count(debugBuf.String(), "\n") != 2 {
		t.Errorf("debug sink should see both records, got %q", debugBuf.String())
	}
	if strings.Count(errorBuf.String(), "\n") != 1 {
		t.Errorf("error sink should see one record, got %q", errorBuf.String())
	}
	if !strings.Contains(errorBuf.String(), `"module":"faq"`) {
		t.Errorf("attributes should reach every sink: %q", errorBuf.String())
	}
}

func TestMultiHandler_JoinsErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, nil)
	mh := NewMultiHandler(Sink{Name: "stdout", Handler: base}, Sink{Name: "remote", Handler: failingHandler{base}})

	err := mh.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "x", 0))
	if err == nil || !strings.Contains(err.Error(), "remote sink: sink down") {
		t.Errorf("expected joined sink error, got %v", err)
	}
	if buf.Len() == 0 {
		t.Error("healthy sink should still receive the record")
	}
}

func TestMultiHandler_SinkFloor(t *testing.T) {
	t.Parallel()

	var local, remote bytes.Buffer
	debug := &slog.HandlerOptions{Level: slog.LevelDebug}
	mh := NewMultiHandler(
		Sink{Name: "stdout", Handler: slog.NewJSONHandler(&local, debug)},
		Sink{Name: "betterstack", Handler: slog.NewJSONHandler(&remote, debug), MinLevel: slog.LevelWarn},
	)

	log := slog.New(mh)
	log.Debug("cache miss")
	log.Info("index published")
	log.Warn("reload failed")

	if n := strings.Count(local.String(), "\n"); n != 3 {
		t.Errorf("stdout sink got %d records, want 3", n)
	}
	if n := strings.Count(remote.String(), "\n"); n != 1 || !strings.Contains(remote.String(), "reload failed") {
		t.Errorf("betterstack sink should only get the warning, got %q", remote.String())
	}
	if !mh.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug is enabled while any sink accepts it")
	}

	onlyRemote := NewMultiHandler(Sink{Name: "betterstack", Handler: slog.NewJSONHandler(&remote, debug), MinLevel: slog.LevelWarn})
	if onlyRemote.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info must be disabled when the only sink's floor is warn")
	}
}

// gateHandler reports each record as it starts handling it and then waits
// for release.
type gateHandler struct {
	entered chan slog.Level
	release chan struct{}
	mu      sync.Mutex
	levels  []slog.Level
}

func (h *gateHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *gateHandler) Handle(_ context.Context, r slog.Record) error {
	h.entered <- r.Level
	<-h.release
	h.mu.Lock()
	h.levels = append(h.levels, r.Level)
	h.mu.Unlock()
	return nil
}
func (h *gateHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *gateHandler) WithGroup(string) slog.Handler      { return h }

func TestAsyncHandler_KeepsErrorsWhenFull(t *testing.T) {
	t.Parallel()

	inner := &gateHandler{entered: make(chan slog.Level, 8), release: make(chan struct{})}
	h := NewAsyncHandler(inner, AsyncOptions{BufferSize: 1, KeepWait: 5 * time.Second})
	log := slog.New(h)

	log.Info("first")
	<-inner.entered // the worker holds "first"
	log.Info("second")
	if h.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", h.Pending())
	}
	log.Info("third")
	if h.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1 info record dropped", h.Dropped())
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(inner.release)
	}()
	log.Error("kept") // waits for room instead of being dropped

	if err := h.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if h.Dropped() != 1 {
		t.Errorf("Dropped() = %d after shutdown, want 1", h.Dropped())
	}

	inner.mu.Lock()
	defer inner.mu.Unlock()
	want := []slog.Level{slog.LevelInfo, slog.LevelInfo, slog.LevelError}
	if len(inner.levels) != len(want) {
		t.Fatalf("handled %v, want %v", inner.levels, want)
	}
	for i := range want {
		if inner.levels[i] != want[i] {
			t.Errorf("handled[%d] = %v, want %v", i, inner.levels[i], want[i])
		}
	}
}

func TestAsyncHandler_NegativeKeepWaitDropsErrors(t *testing.T) {
	t.Parallel()

	inner := &gateHandler{entered: make(chan slog.Level, 8), release: make(chan struct{})}
	h := NewAsyncHandler(inner, AsyncOptions{BufferSize: 1, KeepWait: -1})
	log := slog.New(h)

	log.Info("first")
	<-inner.entered
	log.Info("second")
	log.Error("dropped")
	if h.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", h.Dropped())
	}
	close(inner.release)
	if err := h.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestAsyncHandler_DropsWhenFull(t *testing.T) {
	t.Parallel()

	inner := &blockingHandler{release: make(chan struct{})}
	h := NewAsyncHandler(inner, AsyncOptions{BufferSize: 1, FlushTimeout: time.Second})
	log := slog.New(h)

	for range 10 {
		log.Info("burst")
	}
	if h.Dropped() == 0 {
		t.Error("expected some records to be dropped with a full buffer")
	}

	close(inner.release)
	if err := h.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	inner.mu.Lock()
	defer inner.mu.Unlock()
	if uint64(inner.count)+h.Dropped() != 10 {
		t.Errorf("handled %d + dropped %d != 10", inner.count, h.Dropped())
	}
}

func TestAsyncHandler_ShutdownIdempotent(t *testing.T) {
	t.Parallel()

	h := NewAsyncHandler(slog.NewJSONHandler(&bytes.Buffer{}, nil), AsyncOptions{})
	if err := h.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown() error = %v", err)
	}
	if err := h.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
	// records after shutdown are ignored rather than panicking on a closed channel
	slog.New(h).Info("late")
}
