package faq

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/melonneet/ezhishi-chatbot/internal/logger"
	"github.com/melonneet/ezhishi-chatbot/internal/ranking"
	"github.com/melonneet/ezhishi-chatbot/internal/segment"
	"github.com/melonneet/ezhishi-chatbot/internal/textnorm"
)

// DefaultEmbedConcurrency bounds parallel embedding calls during a build.
const DefaultEmbedConcurrency = 4

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocKind tags a flattened question document.
type DocKind string

// Document kinds.
const (
	KindEn    DocKind = "en"
	KindZh    DocKind = "zh"
	KindEnAlt DocKind = "en-alt"
	KindZhAlt DocKind = "zh-alt"
)

// IsAlternate reports whether the document is an alternate phrasing.
func (k DocKind) IsAlternate() bool {
	return k == KindEnAlt || k == KindZhAlt
}

// Doc is one question string of an entry.
type Doc struct {
	ID    string // "<entry>-en", "<entry>-zh-alt<n>", ...
	Entry int
	Kind  DocKind
	Text  string
	Lower string
}

// Vector is the embedding of one entry, L2-normalized.
type Vector struct {
	Entry  int
	Values []float32
}

// Options configures Build.
type Options struct {
	Source           string
	Segmenter        segment.Segmenter // nil: character bigrams
	Embedder         Embedder          // nil: no embeddings
	EmbedConcurrency int
	Logger           *logger.Logger
}

// Index is the immutable search structure built from a set of entries.
// All methods are safe for concurrent use.
type Index struct {
	source     string
	builtAt    time.Time
	entries    []Entry
	docs       []Doc
	byID       map[string]int
	categories []string
	keywords   map[string]struct{}
	dictionary *textnorm.Dictionary
	tfidf      *TFIDF
	tfidfOwner []int // tfidf document -> entry
	tfidfFirst []int // entry -> its primary question's tfidf document
	bm25       *ranking.BM25Index
	vectors    []Vector
	vectorOf   map[int]int
	seg        segment.Segmenter
}

// Build derives every search structure from entries. Embedding failures
// drop the entry's vector and are logged; they never fail the build. Build
// returns an error only when ctx ends before embeddings complete.
func Build(ctx context.Context, entries []Entry, opts Options) (*Index, error) {
	idx := &Index{
		source:   opts.Source,
		builtAt:  time.Now(),
		entries:  entries,
		byID:     make(map[string]int, len(entries)),
		keywords: make(map[string]struct{}),
		vectorOf: make(map[int]int),
		seg:      opts.Segmenter,
	}

	seenCategory := make(map[string]struct{})
	var dictTerms []string
	var questions []string
	for i := range entries {
		e := &entries[i]
		idx.byID[e.ID] = i
		if _, ok := seenCategory[e.Category]; !ok && e.Category != "" {
			seenCategory[e.Category] = struct{}{}
			idx.categories = append(idx.categories, e.Category)
		}

		idx.addDoc(i, KindEn, -1, e.QuestionEn)
		idx.addDoc(i, KindZh, -1, e.QuestionZh)
		for n, q := range e.AlternateQuestionsEn {
			idx.addDoc(i, KindEnAlt, n, q)
		}
		for n, q := range e.AlternateQuestionsZh {
			idx.addDoc(i, KindZhAlt, n, q)
		}

		for _, q := range append(e.Questions(), e.Category) {
			idx.addKeywords(q)
			dictTerms = append(dictTerms, segment.Words(q)...)
		}
		idx.tfidfFirst = append(idx.tfidfFirst, len(questions))
		for _, q := range append([]string{e.Question()}, e.AlternateQuestionsEn...) {
			idx.tfidfOwner = append(idx.tfidfOwner, i)
			questions = append(questions, q)
		}
	}

	idx.dictionary = textnorm.NewDictionary(dictTerms)
	idx.tfidf = NewTFIDF(questions, idx.Terms)

	idx.bm25 = ranking.NewBM25Index(opts.Segmenter, opts.Logger)
	docs := make([]ranking.Document, len(idx.docs))
	for i, d := range idx.docs {
		docs[i] = ranking.Document{ID: entries[d.Entry].ID, Text: d.Text}
	}
	if err := idx.bm25.Initialize(docs); err != nil && opts.Logger != nil {
		opts.Logger.WithError(err).Warn("BM25 index unavailable")
	}

	if opts.Embedder != nil {
		if err := idx.embed(ctx, opts); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *Index) addDoc(entry int, kind DocKind, alt int, text string) {
	if text == "" {
		return
	}
	id := fmt.Sprintf("%d-%s", entry, kind)
	if alt >= 0 {
		id = fmt.Sprintf("%s%d", id, alt)
	}
	idx.docs = append(idx.docs, Doc{
		ID:    id,
		Entry: entry,
		Kind:  kind,
		Text:  text,
		Lower: strings.ToLower(text),
	})
}

func (idx *Index) addKeywords(text string) {
	for _, tok := range segment.Tokenize(text, idx.seg) {
		if isKeyword(tok) {
			idx.keywords[tok] = struct{}{}
		}
	}
}

func isKeyword(tok string) bool {
	if textnorm.IsGeneralWord(tok) {
		return false
	}
	if tok[0] < utf8.RuneSelf {
		return len(tok) >= 3
	}
	// Single Chinese characters are too ambiguous to mark a query in-domain.
	return utf8.RuneCountInString(tok) >= 2
}

func (idx *Index) embed(ctx context.Context, opts Options) error {
	limit := opts.EmbedConcurrency
	if limit <= 0 {
		limit = DefaultEmbedConcurrency
	}
	results := make([][]float32, len(idx.entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range idx.entries {
		e := &idx.entries[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			text := strings.TrimSpace(e.Question() + " " + e.Answer)
			v, err := opts.Embedder.Embed(gctx, text)
			if err != nil {
				if opts.Logger != nil {
					opts.Logger.WithError(err).WithField("faq_id", e.ID).Warn("Embedding failed, entry excluded from semantic search")
				}
				return nil
			}
			results[i] = normalizeVector(v)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("embed faq entries: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("embed faq entries: %w", err)
	}

	for i, v := range results {
		if v == nil {
			continue
		}
		idx.vectorOf[i] = len(idx.vectors)
		idx.vectors = append(idx.vectors, Vector{Entry: i, Values: v})
	}
	return nil
}

// normalizeVector scales v to unit length. Zero vectors yield nil.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil
	}
	n := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

// Terms tokenizes text the way the index does and drops stop words.
func (idx *Index) Terms(text string) []string {
	toks := segment.Tokenize(text, idx.seg)
	out := toks[:0]
	for _, t := range toks {
		if !textnorm.IsStopWord(t) {
			out = append(out, t)
		}
	}
	return out
}

// Source names where the entries came from.
func (idx *Index) Source() string { return idx.source }

// BuiltAt returns the build time.
func (idx *Index) BuiltAt() time.Time { return idx.builtAt }

// Len returns the number of entries.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Entry returns entry i. The pointer must not be used to mutate the entry.
func (idx *Index) Entry(i int) *Entry {
	return &idx.entries[i]
}

// Entries returns all entries in load order. Callers must not modify them.
func (idx *Index) Entries() []Entry { return idx.entries }

// Lookup returns the position of the entry with the given id.
func (idx *Index) Lookup(id string) (int, bool) {
	i, ok := idx.byID[id]
	return i, ok
}

// Docs returns the flattened question documents.
func (idx *Index) Docs() []Doc { return idx.docs }

// Categories returns distinct categories in first-seen order.
func (idx *Index) Categories() []string { return idx.categories }

// ByCategory returns the entries of one category (exact match).
func (idx *Index) ByCategory(category string) []Entry {
	var out []Entry
	for _, e := range idx.entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// IsKeyword reports whether tok is a domain keyword mined from the FAQ.
func (idx *Index) IsKeyword(tok string) bool {
	_, ok := idx.keywords[strings.ToLower(tok)]
	return ok
}

// KeywordCount returns the size of the keyword set.
func (idx *Index) KeywordCount() int { return len(idx.keywords) }

// Dictionary returns the spelling dictionary.
func (idx *Index) Dictionary() *textnorm.Dictionary { return idx.dictionary }

// QuestionSimilarities returns, for every entry, the best TF-IDF cosine of
// text against its primary question and English alternates.
func (idx *Index) QuestionSimilarities(text string) []float64 {
	out := make([]float64, len(idx.entries))
	for d, s := range idx.tfidf.Similarities(text) {
		e := idx.tfidfOwner[d]
		out[e] = max(out[e], s)
	}
	return out
}

// QuestionTerms returns up to k of the highest weighted terms of entry i's
// primary question, skipping terms for which skip returns true.
func (idx *Index) QuestionTerms(i, k int, skip func(string) bool) []string {
	if i < 0 || i >= len(idx.tfidfFirst) {
		return nil
	}
	return idx.tfidf.TopTerms(idx.tfidfFirst[i], k, skip)
}

// BM25 returns the lexical index over all question documents, keyed by
// entry id.
func (idx *Index) BM25() *ranking.BM25Index { return idx.bm25 }

// Segmenter returns the Chinese segmenter the index was built with.
func (idx *Index) Segmenter() segment.Segmenter { return idx.seg }

// Vectors returns the entry embeddings. len(Vectors()) <= Len().
func (idx *Index) Vectors() []Vector { return idx.vectors }

// HasEmbeddings reports whether at least one entry has a vector.
func (idx *Index) HasEmbeddings() bool {
	return idx != nil && len(idx.vectors) > 0
}

// VectorFor returns the embedding of entry i.
func (idx *Index) VectorFor(i int) ([]float32, bool) {
	j, ok := idx.vectorOf[i]
	if !ok {
		return nil, false
	}
	return idx.vectors[j].Values, true
}
