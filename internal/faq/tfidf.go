package faq

import (
	"math"
	"sort"
)

// TFIDF holds one term-weight vector per document. Weights use raw term
// frequency times smoothed inverse document frequency.
type TFIDF struct {
	idf   map[string]float64
	docs  []map[string]float64
	norms []float64
	tok   func(string) []string
}

// NewTFIDF indexes texts with tok as the tokenizer.
func NewTFIDF(texts []string, tok func(string) []string) *TFIDF {
	t := &TFIDF{
		idf:   make(map[string]float64),
		docs:  make([]map[string]float64, len(texts)),
		norms: make([]float64, len(texts)),
		tok:   tok,
	}

	df := make(map[string]int)
	counts := make([]map[string]int, len(texts))
	for i, text := range texts {
		counts[i] = termCounts(tok(text))
		for term := range counts[i] {
			df[term]++
		}
	}
	n := float64(len(texts))
	for term, d := range df {
		t.idf[term] = math.Log((1+n)/(1+float64(d))) + 1
	}
	for i, c := range counts {
		t.docs[i] = t.weigh(c)
		t.norms[i] = norm(t.docs[i])
	}
	return t
}

func termCounts(tokens []string) map[string]int {
	c := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		c[tok]++
	}
	return c
}

func (t *TFIDF) weigh(counts map[string]int) map[string]float64 {
	v := make(map[string]float64, len(counts))
	for term, c := range counts {
		if idf, ok := t.idf[term]; ok {
			v[term] = float64(c) * idf
		}
	}
	return v
}

func norm(v map[string]float64) float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// Len returns the number of documents.
func (t *TFIDF) Len() int {
	return len(t.docs)
}

// Terms returns the vocabulary in sorted order.
func (t *TFIDF) Terms() []string {
	terms := make([]string, 0, len(t.idf))
	for term := range t.idf {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Similarities returns the cosine similarity of text against every document.
// Terms unseen in the corpus are ignored.
func (t *TFIDF) Similarities(text string) []float64 {
	q := t.weigh(termCounts(t.tok(text)))
	qn := norm(q)
	out := make([]float64, len(t.docs))
	if qn == 0 {
		return out
	}
	for i, d := range t.docs {
		if t.norms[i] == 0 {
			continue
		}
		var dot float64
		for term, w := range q {
			dot += w * d[term]
		}
		out[i] = dot / (qn * t.norms[i])
	}
	return out
}

// TopTerms returns up to k terms of document i with the highest weight,
// skipping terms for which skip returns true. Ties sort alphabetically.
func (t *TFIDF) TopTerms(i, k int, skip func(string) bool) []string {
	if i < 0 || i >= len(t.docs) || k <= 0 {
		return nil
	}
	type tw struct {
		term string
		w    float64
	}
	var list []tw
	for term, w := range t.docs[i] {
		if skip != nil && skip(term) {
			continue
		}
		list = append(list, tw{term, w})
	}
	sort.Slice(list, func(a, b int) bool {
		if list[a].w != list[b].w {
			return list[a].w > list[b].w
		}
		return list[a].term < list[b].term
	})
	if len(list) > k {
		list = list[:k]
	}
	terms := make([]string, len(list))
	for j, x := range list {
		terms[j] = x.term
	}
	return terms
}
