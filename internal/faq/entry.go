// Package faq loads the bilingual FAQ knowledge base and builds the
// immutable search index the matchers run against.
package faq

import (
	"strings"

	"github.com/google/uuid"

	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
)

// idNamespace seeds UUIDv5 ids for entries that do not carry one.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("faq.ezhishi.com"))

// Entry is one curated question/answer pair. Entries are immutable once
// loaded; the index only ever hands out copies or read-only pointers.
type Entry struct {
	ID                   string   `json:"id" yaml:"id"`
	Category             string   `json:"category" yaml:"category"`
	QuestionEn           string   `json:"questionEn" yaml:"questionEn"`
	QuestionZh           string   `json:"questionZh,omitempty" yaml:"questionZh,omitempty"`
	AlternateQuestionsEn []string `json:"alternateQuestionsEn,omitempty" yaml:"alternateQuestionsEn,omitempty"`
	AlternateQuestionsZh []string `json:"alternateQuestionsZh,omitempty" yaml:"alternateQuestionsZh,omitempty"`
	Answer               string   `json:"answer" yaml:"answer"`
}

// record is the on-disk shape. answerEn is the legacy name of answer.
type record struct {
	ID                   string   `json:"id" yaml:"id"`
	Category             string   `json:"category" yaml:"category"`
	QuestionEn           string   `json:"questionEn" yaml:"questionEn"`
	QuestionZh           string   `json:"questionZh" yaml:"questionZh"`
	AlternateQuestionsEn []string `json:"alternateQuestionsEn" yaml:"alternateQuestionsEn"`
	AlternateQuestionsZh []string `json:"alternateQuestionsZh" yaml:"alternateQuestionsZh"`
	Answer               string   `json:"answer" yaml:"answer"`
	AnswerEn             string   `json:"answerEn" yaml:"answerEn"`
}

// Question returns the English question, or the Chinese one when the entry
// has no English text.
func (e *Entry) Question() string {
	if e.QuestionEn != "" {
		return e.QuestionEn
	}
	return e.QuestionZh
}

// Questions returns every question string of the entry, primary first.
func (e *Entry) Questions() []string {
	qs := make([]string, 0, 2+len(e.AlternateQuestionsEn)+len(e.AlternateQuestionsZh))
	if e.QuestionEn != "" {
		qs = append(qs, e.QuestionEn)
	}
	if e.QuestionZh != "" {
		qs = append(qs, e.QuestionZh)
	}
	qs = append(qs, e.AlternateQuestionsEn...)
	return append(qs, e.AlternateQuestionsZh...)
}

// Validate reports whether the entry can be served. An entry needs at least
// one question and an answer.
func (e *Entry) Validate() error {
	if e.QuestionEn == "" && e.QuestionZh == "" {
		if e.Answer == "" {
			return domerrors.NewValidationError("entry", "has neither question nor answer")
		}
		return domerrors.NewValidationError("questionEn", "no question in either language")
	}
	if e.Answer == "" {
		return domerrors.NewValidationError("answer", "is empty")
	}
	return nil
}

// StableID derives the deterministic id used when a record has none.
func StableID(category, questionEn, questionZh string) string {
	name := category + "\n" + questionEn + "\n" + questionZh
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

func (r *record) toEntry() Entry {
	answer := strings.TrimSpace(r.Answer)
	if answer == "" {
		answer = strings.TrimSpace(r.AnswerEn)
	}
	e := Entry{
		ID:                   strings.TrimSpace(r.ID),
		Category:             strings.TrimSpace(r.Category),
		QuestionEn:           strings.TrimSpace(r.QuestionEn),
		QuestionZh:           strings.TrimSpace(r.QuestionZh),
		AlternateQuestionsEn: cleanList(r.AlternateQuestionsEn),
		AlternateQuestionsZh: cleanList(r.AlternateQuestionsZh),
		Answer:               answer,
	}
	if e.ID == "" {
		e.ID = StableID(e.Category, e.QuestionEn, e.QuestionZh)
	}
	return e
}

func cleanList(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
