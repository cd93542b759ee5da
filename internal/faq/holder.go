package faq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
	"github.com/melonneet/ezhishi-chatbot/internal/logger"
	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
)

// ErrUnchanged is returned by Source.Fetch when the source has not changed
// since the previous successful fetch.
var ErrUnchanged = errors.New("faq source unchanged")

// Source produces FAQ entries.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*LoadResult, error)
}

// FileSource reads a local JSON or YAML file.
type FileSource struct {
	Path string
}

// Name implements Source.
func (s FileSource) Name() string { return s.Path }

// Fetch implements Source.
func (s FileSource) Fetch(context.Context) (*LoadResult, error) {
	return LoadFile(s.Path)
}

// Holder publishes the current Index. Readers call Load and never block;
// Reload builds a new index off to the side and swaps it in atomically.
type Holder struct {
	current atomic.Pointer[Index]
	source  Source
	opts    Options
	metrics *metrics.Metrics
	logger  *logger.Logger

	reloadMu sync.Mutex
}

// NewHolder creates a holder with no index. Call Reload before Load.
func NewHolder(source Source, opts Options, m *metrics.Metrics, log *logger.Logger) *Holder {
	opts.Source = source.Name()
	if opts.Logger == nil {
		opts.Logger = log
	}
	return &Holder{source: source, opts: opts, metrics: m, logger: log}
}

// NewStaticHolder wraps an already built index.
func NewStaticHolder(idx *Index) *Holder {
	h := &Holder{}
	h.current.Store(idx)
	return h
}

// Load returns the current index, or nil before the first successful
// Reload.
func (h *Holder) Load() *Index {
	return h.current.Load()
}

// Ready reports whether an index has been published.
func (h *Holder) Ready() bool {
	return h.current.Load() != nil
}

// Reload fetches the source and swaps in a freshly built index. On failure
// the previous index stays in place. trigger labels the reload in metrics
// ("startup", "watch", "poll").
func (h *Holder) Reload(ctx context.Context, trigger string) error {
	if h.source == nil {
		return errors.New("faq holder has no source")
	}
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	wrap := domerrors.NewWrapper("faq", "reload")
	start := time.Now()
	res, err := h.source.Fetch(ctx)
	if errors.Is(err, ErrUnchanged) {
		h.metrics.RecordFAQReload(trigger, "unchanged")
		return nil
	}
	if err != nil {
		h.metrics.RecordFAQReload(trigger, "error")
		return wrap.Wrapf(err, "FAQ source %s could not be read", h.source.Name())
	}
	for _, skipped := range res.Skipped {
		h.logger.WithError(skipped).Warn("Skipped invalid FAQ entry")
	}

	idx, err := Build(ctx, res.Entries, h.opts)
	if err != nil {
		h.metrics.RecordFAQReload(trigger, "error")
		return wrap.Wrap(err, "FAQ index could not be built")
	}

	h.current.Store(idx)
	elapsed := time.Since(start).Seconds()
	h.metrics.RecordFAQIndex(idx.Len(), len(idx.Vectors()), elapsed)
	h.metrics.RecordFAQReload(trigger, "success")
	h.logger.WithFields(map[string]any{
		"source":   h.source.Name(),
		"trigger":  trigger,
		"entries":  idx.Len(),
		"embedded": len(idx.Vectors()),
		"skipped":  len(res.Skipped),
		"duration": elapsed,
	}).Info("FAQ index published")
	return nil
}
