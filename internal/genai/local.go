package genai

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/melonneet/ezhishi-chatbot/internal/segment"
	"github.com/melonneet/ezhishi-chatbot/internal/textnorm"
)

// LocalEmbedder maps text to a fixed-size vector with signed feature
// hashing over word tokens and character trigrams. It is deterministic and
// needs no network, so semantic search keeps working without an API key and
// tests get stable vectors. Words sharing a stem ("password", "passcode")
// overlap through their trigrams.
type LocalEmbedder struct {
	dims int
	seg  segment.Segmenter
}

// NewLocalEmbedder creates a local embedder. dims <= 0 uses LocalDimensions;
// seg may be nil (character bigrams).
func NewLocalEmbedder(dims int, seg segment.Segmenter) *LocalEmbedder {
	if dims <= 0 {
		dims = LocalDimensions
	}
	return &LocalEmbedder{dims: dims, seg: seg}
}

const trigramWeight = 0.5

// Embed implements Embedder. Text without any token yields a zero vector.
func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float64, e.dims)
	text = textnorm.ExpandAbbreviations(textnorm.Normalize(text))
	for _, tok := range segment.Tokenize(text, e.seg) {
		if textnorm.IsStopWord(tok) {
			continue
		}
		e.add(v, "w:"+tok, 1)
		runes := []rune("#" + tok + "#")
		if len(runes) < 5 {
			continue
		}
		for i := 0; i+3 <= len(runes); i++ {
			e.add(v, "t:"+string(runes[i:i+3]), trigramWeight)
		}
	}

	var sum float64
	for _, x := range v {
		sum += x * x
	}
	out := make([]float32, e.dims)
	if sum == 0 {
		return out, nil
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(x / n)
	}
	return out, nil
}

func (e *LocalEmbedder) add(v []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(e.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[bucket] += weight
}

// Provider implements Embedder.
func (e *LocalEmbedder) Provider() Provider { return ProviderLocal }
