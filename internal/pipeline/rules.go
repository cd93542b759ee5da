package pipeline

import (
	"regexp"

	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/match"
	"github.com/melonneet/ezhishi-chatbot/internal/stringutil"
	"github.com/melonneet/ezhishi-chatbot/internal/textnorm"
)

// Rule is one hand-authored override. Match receives the normalized query.
type Rule struct {
	Name    string
	Match   func(normalized string) bool
	Respond func(query string) string
}

const (
	subjectScopeEn = "eZhishi is a Chinese language learning platform, so all of our content " +
		"(magazines, videos and practice exercises) is for learning Chinese. " +
		"We don't currently offer other subjects such as math, science or English."
	subjectScopeZh = "易知识是华文学习平台，所有内容（杂志、视频和练习）都是用来学习华文的。" +
		"我们目前没有提供数学、科学或英文等其他科目。"
)

var (
	productName = regexp.MustCompile(`\be[- ]?zhishi\b|e知识|易知识`)

	otherSubjectEn = regexp.MustCompile(`\b(?:maths?|mathematics|science|english|malay|tamil|history|geography|physics|chemistry|biology)\b`)
	otherSubjectZh = regexp.MustCompile(`数学|科学|英文|英语|马来文|淡米尔文|历史|地理|物理|化学|生物`)

	coverageActionEn = regexp.MustCompile(`\b(?:have|has|had|offer|offers|cover|covers|teach|teaches|support|supports|provide|provides|include|includes|got|available|sell|sells)\b`)
	coverageActionZh = regexp.MustCompile(`有|提供|教|包括|包含|涵盖|支持`)

	chineseExclusivity = regexp.MustCompile(`\b(?:besides|other than|apart from|aside from|except|only)\s+(?:chinese|mandarin)\b|除了(?:华文|中文)|只有(?:华文|中文)`)
)

// DefaultRules returns the built-in rules in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "subject_availability",
			Match: func(q string) bool {
				return productName.MatchString(q) &&
					(otherSubjectEn.MatchString(q) || otherSubjectZh.MatchString(q)) &&
					(coverageActionEn.MatchString(q) || coverageActionZh.MatchString(q))
			},
			Respond: subjectScope,
		},
		{
			Name:    "subject_exclusivity",
			Match:   chineseExclusivity.MatchString,
			Respond: subjectScope,
		},
	}
}

func subjectScope(query string) string {
	if stringutil.HasHan(query) {
		return subjectScopeZh
	}
	return subjectScopeEn
}

// RuleEngine evaluates rules in order; the first match wins.
type RuleEngine struct {
	gate  Gate
	rules []Rule
}

// NewRuleEngine returns an engine over rules (nil: DefaultRules) that
// re-checks gate before evaluating them.
func NewRuleEngine(gate Gate, rules []Rule) *RuleEngine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &RuleEngine{gate: gate, rules: rules}
}

// Match returns the first rule matching query.
func (e *RuleEngine) Match(query string, idx *faq.Index) (Rule, bool) {
	if e.gate.ShouldFallback(query, idx) {
		return Rule{}, false
	}
	normalized := textnorm.Normalize(query)
	for _, r := range e.rules {
		if r.Match(normalized) {
			return r, true
		}
	}
	return Rule{}, false
}

// Answer returns the synthesized answer of the first matching rule, or nil
// when no rule fires or the gate rejects query.
func (e *RuleEngine) Answer(query string, idx *faq.Index) *match.Result {
	r, ok := e.Match(query, idx)
	if !ok {
		return nil
	}
	return match.Synthesized(match.TypeRule, r.Respond(query), 1.0)
}
