// Package ranking provides lexical ranking over FAQ question text with
// BM25, and Reciprocal Rank Fusion for combining ranked lists.
package ranking

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/iwilltry42/bm25-go/bm25"

	"github.com/melonneet/ezhishi-chatbot/internal/logger"
	"github.com/melonneet/ezhishi-chatbot/internal/segment"
)

// BM25 parameters. k1=1.5, b=0.75 are the usual Okapi defaults.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// Document is one indexed text owned by an ID. Several documents may share
// an ID (primary and alternate questions of the same FAQ).
type Document struct {
	ID   string
	Text string
}

// Result is a ranked hit, one per ID.
type Result struct {
	ID    string
	Score float64 // BM25 score (higher is better, unbounded)
	Rank  int     // 1-indexed
}

// BM25Index provides keyword-based search using the BM25 algorithm.
type BM25Index struct {
	okapi       *bm25.BM25Okapi
	docIDs      []string // document index -> owner ID
	seg         segment.Segmenter
	logger      *logger.Logger
	mu          sync.RWMutex
	initialized bool
}

// NewBM25Index creates an empty index. seg may be nil (character bigrams).
func NewBM25Index(seg segment.Segmenter, log *logger.Logger) *BM25Index {
	return &BM25Index{seg: seg, logger: log}
}

func (idx *BM25Index) tokenize(text string) []string {
	return segment.Tokenize(text, idx.seg)
}

// Initialize builds the index from docs, replacing any previous content.
// Blank documents are skipped.
func (idx *BM25Index) Initialize(docs []Document) error {
	if idx == nil {
		return nil
	}

	var corpus []string
	var ids []string
	for _, d := range docs {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		corpus = append(corpus, d.Text)
		ids = append(ids, d.ID)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.okapi = nil
	idx.docIDs = ids
	idx.initialized = true
	if len(corpus) == 0 {
		return nil
	}

	okapi, err := bm25.NewBM25Okapi(corpus, idx.tokenize, bm25K1, bm25B, nil)
	if err != nil {
		return fmt.Errorf("failed to create BM25 index: %w", err)
	}
	idx.okapi = okapi

	if idx.logger != nil {
		idx.logger.WithField("docs", len(corpus)).Debug("BM25 index initialized")
	}
	return nil
}

// Scores returns the best BM25 score per ID for query. IDs scoring zero are omitted.
func (idx *BM25Index) Scores(query string) (map[string]float64, error) {
	if !idx.IsEnabled() || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	tokens := idx.tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	scores, err := idx.okapi.GetScores(tokens)
	if err != nil {
		return nil, fmt.Errorf("BM25 scoring failed: %w", err)
	}

	best := make(map[string]float64)
	for docID, score := range scores {
		if score <= 0 || docID >= len(idx.docIDs) {
			continue
		}
		id := idx.docIDs[docID]
		if score > best[id] {
			best[id] = score
		}
	}
	return best, nil
}

// Search returns IDs sorted by their best BM25 score (descending), at most
// topN when topN > 0. Equal scores are ordered by ID.
func (idx *BM25Index) Search(query string, topN int) ([]Result, error) {
	best, err := idx.Scores(query)
	if err != nil || len(best) == 0 {
		return nil, err
	}

	results := make([]Result, 0, len(best))
	for id, score := range best {
		results = append(results, Result{ID: id, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	for i := range results {
		results[i].Rank = i + 1
	}
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// RankConfidence maps a 1-indexed rank to a (0,1) confidence. BM25 scores are
// unbounded and query-dependent, so rank serves as the proxy.
//
//	rank 1 → 0.95, rank 5 → 0.80, rank 10 → 0.67
func RankConfidence(rank int) float64 {
	if rank <= 0 {
		return 0
	}
	return 1.0 / (1.0 + 0.05*float64(rank))
}

// IsEnabled returns true if the index holds at least one document.
func (idx *BM25Index) IsEnabled() bool {
	if idx == nil {
		return false
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.initialized && idx.okapi != nil
}

// Count returns the number of indexed documents.
func (idx *BM25Index) Count() int {
	if idx == nil {
		return 0
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docIDs)
}
