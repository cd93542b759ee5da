package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Sink is one destination of a MultiHandler.
type Sink struct {
	Name    string
	Handler slog.Handler
	// MinLevel is the sink's own floor, applied before the handler's.
	// Nil accepts whatever the handler accepts.
	MinLevel slog.Leveler
}

func (s Sink) accepts(ctx context.Context, level slog.Level) bool {
	if s.MinLevel != nil && level < s.MinLevel.Level() {
		return false
	}
	return s.Handler.Enabled(ctx, level)
}

// MultiHandler sends each record to every sink that accepts its level.
// stdout keeps the full stream while Better Stack can take warnings only.
type MultiHandler struct {
	sinks []Sink
}

// NewMultiHandler drops sinks without a handler.
func NewMultiHandler(sinks ...Sink) *MultiHandler {
	return &MultiHandler{
		sinks: slices.DeleteFunc(slices.Clone(sinks), func(s Sink) bool { return s.Handler == nil }),
	}
}

// Enabled implements slog.Handler.
func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(h.sinks, func(s Sink) bool { return s.accepts(ctx, level) })
}

// Handle implements slog.Handler. A failing sink does not stop the others;
// their errors are joined and tagged with the sink name.
func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	for _, s := range h.sinks {
		if !s.accepts(ctx, r.Level) {
			continue
		}
		if herr := s.Handler.Handle(ctx, r.Clone()); herr != nil {
			err = errors.Join(err, fmt.Errorf("%s sink: %w", s.Name, herr))
		}
	}
	return err
}

// WithAttrs implements slog.Handler.
func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

// WithGroup implements slog.Handler.
func (h *MultiHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h *MultiHandler) derive(fn func(slog.Handler) slog.Handler) *MultiHandler {
	sinks := make([]Sink, len(h.sinks))
	for i, s := range h.sinks {
		s.Handler = fn(s.Handler)
		sinks[i] = s
	}
	return &MultiHandler{sinks: sinks}
}
