// Package segment tokenizes mixed English and Chinese text for keyword
// matching and ranking. English runs are split into lowercase words;
// Chinese runs are handed to a Segmenter.
package segment

import (
	"strings"
	"sync"
	"unicode"

	"github.com/go-ego/gse"

	"github.com/melonneet/ezhishi-chatbot/internal/logger"
	"github.com/melonneet/ezhishi-chatbot/internal/stringutil"
)

// Segmenter splits a run of Chinese text into words.
type Segmenter interface {
	Cut(text string) []string
}

// Bigrams segments Chinese text into single characters plus overlapping
// character bigrams. It needs no dictionary.
type Bigrams struct{}

// Cut implements Segmenter.
func (Bigrams) Cut(text string) []string {
	runes := []rune(text)
	tokens := make([]string, 0, len(runes)*2)
	for i, r := range runes {
		tokens = append(tokens, string(r))
		if i+1 < len(runes) {
			tokens = append(tokens, string(r)+string(runes[i+1]))
		}
	}
	return tokens
}

// Dictionary segments with gse's embedded simplified Chinese dictionary.
// The dictionary is loaded on first use; if loading fails every call falls
// back to Bigrams.
type Dictionary struct {
	once   sync.Once
	seg    gse.Segmenter
	err    error
	logger *logger.Logger
}

// NewDictionary creates a dictionary segmenter. log may be nil.
func NewDictionary(log *logger.Logger) *Dictionary {
	return &Dictionary{logger: log}
}

func (d *Dictionary) load() {
	d.seg.SkipLog = true
	d.err = d.seg.LoadDictEmbed()
	if d.logger == nil {
		return
	}
	if d.err != nil {
		d.logger.WithError(d.err).Warn("Chinese dictionary unavailable, using character bigrams")
		return
	}
	d.logger.Debug("Chinese dictionary loaded")
}

// Load forces the dictionary to load now instead of on the first Cut.
func (d *Dictionary) Load() error {
	d.once.Do(d.load)
	return d.err
}

// Cut implements Segmenter.
func (d *Dictionary) Cut(text string) []string {
	if d.Load() != nil {
		return Bigrams{}.Cut(text)
	}
	var tokens []string
	for _, w := range d.seg.Cut(text, true) {
		if w = strings.TrimSpace(w); w != "" {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// Tokenize lowercases text and returns its words: ASCII letter/digit runs
// as-is and Chinese runs segmented by seg (Bigrams when seg is nil).
// Punctuation and whitespace are dropped.
func Tokenize(text string, seg Segmenter) []string {
	if seg == nil {
		seg = Bigrams{}
	}
	text = strings.ToLower(text)

	var tokens []string
	var word, han strings.Builder
	flushWord := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	flushHan := func() {
		if han.Len() > 0 {
			tokens = append(tokens, seg.Cut(han.String())...)
			han.Reset()
		}
	}

	for _, r := range text {
		switch {
		case stringutil.IsHan(r):
			flushWord()
			han.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushHan()
			word.WriteRune(r)
		default:
			flushWord()
			flushHan()
		}
	}
	flushWord()
	flushHan()
	return tokens
}

// Words returns only the non-Chinese word tokens of text, lowercased.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r)) || stringutil.IsHan(r)
	})
}
