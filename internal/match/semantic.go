package match

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/logger"
	"github.com/melonneet/ezhishi-chatbot/internal/sliceutil"
	"github.com/melonneet/ezhishi-chatbot/internal/textnorm"
)

// DefaultSemanticFloor is the similarity a candidate must exceed to be
// returned at all.
const DefaultSemanticFloor = 0.3

// SemanticMatcher ranks FAQ entries by embedding cosine similarity.
type SemanticMatcher struct {
	embedder faq.Embedder
	floor    float64
	logger   *logger.Logger
}

// NewSemanticMatcher returns a matcher over embedder. A nil embedder yields
// a matcher that is never ready.
func NewSemanticMatcher(embedder faq.Embedder, floor float64, log *logger.Logger) *SemanticMatcher {
	if floor <= 0 {
		floor = DefaultSemanticFloor
	}
	return &SemanticMatcher{embedder: embedder, floor: floor, logger: log}
}

// Ready reports whether semantic search can run against idx.
func (m *SemanticMatcher) Ready(idx *faq.Index) bool {
	return m != nil && m.embedder != nil && idx.HasEmbeddings()
}

// Variants returns the distinct query forms that are embedded: the raw
// query, its abbreviation expansion and the spell-corrected expansion.
func Variants(query string, c textnorm.Corrector) []string {
	raw := strings.TrimSpace(query)
	expanded := textnorm.ExpandAbbreviations(raw)
	corrected := textnorm.CorrectQuery(expanded, c)
	return sliceutil.Deduplicate([]string{raw, expanded, corrected}, strings.ToLower)
}

// Search returns up to topK entries (topK <= 0: all) whose best similarity
// across the query variants exceeds the floor, highest first. Equal
// similarities keep entry order.
//
// It returns ErrStageUnavailable when the matcher is not ready or no
// variant could be embedded.
func (m *SemanticMatcher) Search(ctx context.Context, idx *faq.Index, query string, topK int) ([]Result, error) {
	if !m.Ready(idx) {
		return nil, domerrors.ErrStageUnavailable
	}
	variants := Variants(query, idx.Dictionary())
	vecs := make([][]float32, len(variants))
	errs := make([]error, len(variants))

	var g errgroup.Group
	for i, v := range variants {
		g.Go(func() error {
			vecs[i], errs[i] = m.embedder.Embed(ctx, v)
			return nil
		})
	}
	_ = g.Wait()

	var usable [][]float32
	for i, v := range vecs {
		if errs[i] != nil {
			if m.logger != nil {
				m.logger.WithError(errs[i]).WithField("variant", i).Debug("Variant embedding failed")
			}
			continue
		}
		usable = append(usable, v)
	}
	if len(usable) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domerrors.ErrStageUnavailable, errs[0])
	}

	var results []Result
	for _, vec := range idx.Vectors() {
		best := 0.0
		for _, q := range usable {
			best = max(best, Cosine(q, vec.Values))
		}
		if best <= m.floor {
			continue
		}
		s := clamp01(best)
		results = append(results, *entryResult(idx, vec.Entry, TypeSemantic, s, s))
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return a.Entry - b.Entry
		}
	})
	if topK > 0 {
		results = sliceutil.Take(results, topK)
	}
	return results, nil
}
