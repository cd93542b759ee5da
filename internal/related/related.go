// Package related suggests other FAQ questions close to the one a user
// asked, combining TF-IDF and embedding similarity with Reciprocal Rank
// Fusion.
package related

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/logger"
	"github.com/melonneet/ezhishi-chatbot/internal/match"
	"github.com/melonneet/ezhishi-chatbot/internal/ranking"
	"github.com/melonneet/ezhishi-chatbot/internal/stringutil"
)

// Defaults for Generate.
const (
	DefaultTopN     = 3
	DefaultKeywords = 3
)

// fetchFactor widens each source list before fusion.
const fetchFactor = 3

// Question is one related-question suggestion.
type Question struct {
	FAQID      string   `json:"-"`
	Question   string   `json:"question"`
	Similarity float64  `json:"similarity"`
	Keywords   []string `json:"keywords"`
}

// Request describes one Generate call.
type Request struct {
	// Query is the user's message.
	Query string

	// Exclude is the entry position of the answer already shown, or -1.
	Exclude int

	// TopN caps the suggestions (0 = DefaultTopN).
	TopN int

	// Keywords caps the keywords per suggestion (0 = DefaultKeywords).
	Keywords int
}

// Generator ranks related questions. A nil embedder or an index without
// embeddings limits ranking to TF-IDF.
type Generator struct {
	embedder faq.Embedder
	logger   *logger.Logger
}

// NewGenerator creates a generator.
func NewGenerator(e faq.Embedder, log *logger.Logger) *Generator {
	return &Generator{embedder: e, logger: log}
}

// Generate returns up to req.TopN questions related to req.Query, best
// first. The lexical and semantic lists are computed in parallel; a failed
// embedding only drops the semantic list.
func (g *Generator) Generate(ctx context.Context, idx *faq.Index, req Request) []Question {
	if idx.Len() == 0 || strings.TrimSpace(req.Query) == "" {
		return nil
	}
	topN := req.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	topK := req.Keywords
	if topK <= 0 {
		topK = DefaultKeywords
	}
	fetchN := topN * fetchFactor

	var (
		lexical, semantic []ranking.Ranked
		semErr            error
		wg                sync.WaitGroup
	)
	wg.Go(func() {
		lexical = g.lexical(idx, req.Query, req.Exclude, fetchN)
	})
	if g.embedder != nil && idx.HasEmbeddings() {
		wg.Go(func() {
			semantic, semErr = g.semantic(ctx, idx, req.Query, req.Exclude, fetchN)
		})
	}
	wg.Wait()

	if semErr != nil && g.logger != nil {
		g.logger.WithError(semErr).Warn("Semantic related questions unavailable")
	}

	fused := ranking.FuseLexicalSemantic(lexical, semantic, 0)
	out := make([]Question, 0, topN)
	seen := make(map[string]bool)
	for _, f := range fused {
		if len(out) >= topN {
			break
		}
		i, ok := idx.Lookup(f.ID)
		if !ok {
			continue
		}
		e := idx.Entry(i)
		q := e.Question()
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Question{
			FAQID:      e.ID,
			Question:   q,
			Similarity: f.BestScore(),
			Keywords:   Keywords(idx, i, topK),
		})
	}
	return out
}

func (g *Generator) lexical(idx *faq.Index, query string, exclude, n int) []ranking.Ranked {
	sims := idx.QuestionSimilarities(query)
	list := make([]ranking.Ranked, 0, len(sims))
	for i, s := range sims {
		if i == exclude || s <= 0 {
			continue
		}
		list = append(list, ranking.Ranked{ID: idx.Entry(i).ID, Score: s})
	}
	return topRanked(list, n)
}

func (g *Generator) semantic(ctx context.Context, idx *faq.Index, query string, exclude, n int) ([]ranking.Ranked, error) {
	qv, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	var list []ranking.Ranked
	for _, v := range idx.Vectors() {
		if v.Entry == exclude {
			continue
		}
		if s := match.Cosine(qv, v.Values); s > 0 {
			list = append(list, ranking.Ranked{ID: idx.Entry(v.Entry).ID, Score: s})
		}
	}
	return topRanked(list, n), nil
}

// topRanked sorts list by score, descending and stable, and keeps n.
func topRanked(list []ranking.Ranked, n int) []ranking.Ranked {
	sort.SliceStable(list, func(a, b int) bool { return list[a].Score > list[b].Score })
	if len(list) > n {
		list = list[:n]
	}
	return list
}

// Keywords returns up to k of the highest weighted terms of entry i's
// question. Short Latin tokens and numbers are skipped.
func Keywords(idx *faq.Index, i, k int) []string {
	return idx.QuestionTerms(i, k, func(term string) bool {
		if stringutil.HasHan(term) {
			return false
		}
		return utf8.RuneCountInString(term) <= 2 || isNumber(term)
	})
}

func isNumber(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
