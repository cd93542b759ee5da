// Package pipeline resolves a user message to an answer by running it
// through an ordered list of stages: small talk, the relevance gate, rule
// overrides, exact and Chinese question matching, semantic search and
// keyword scoring. The first stage that produces a result wins; when none
// does the user gets the support fallback.
package pipeline

import (
	"regexp"
	"strings"

	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/stringutil"
	"github.com/melonneet/ezhishi-chatbot/internal/textnorm"
)

// Default relevance gate thresholds.
const (
	DefaultGateMaxWords = 20
	DefaultGateMinWords = 2
)

// domainKeywords are the curated in-domain terms. English entries are
// matched as whole words (or word sequences), Chinese ones as substrings.
var domainKeywords = []string{
	// product
	"ezhishi", "e-zhishi", "zhishi", "e知识", "易知识", "ecombay",
	// account
	"account", "password", "passcode", "login", "log in", "sign in", "username",
	"id", "register", "registration", "sign up", "reset", "activate", "activation",
	// subscription and payment
	"subscription", "subscribe", "renew", "renewal", "payment", "pay", "paid",
	"price", "fee", "refund", "order", "invoice",
	// delivery and rewards
	"magazine", "delivery", "deliver", "shipping", "points", "reward", "rewards", "redeem",
	// learning
	"chinese", "mandarin", "math", "science", "english", "practice", "exercise",
	"exercises", "worksheet", "lesson", "video", "app", "student", "teacher",
	"parent", "school", "subject", "subjects",
	// support
	"help", "support", "contact", "problem", "issue", "error",
	// Chinese
	"密码", "登录", "登入", "账号", "帐号", "账户", "注册", "激活", "订阅", "付款",
	"支付", "价格", "退款", "订单", "杂志", "配送", "送货", "积分", "兑换", "华文",
	"中文", "练习", "习题", "学生", "老师", "家长", "学校", "科目", "帮助", "客服",
	"联系", "问题",
}

var (
	keywordWords   = make(map[string]struct{})
	keywordPhrases []string
	keywordHan     []string
)

func init() {
	for _, kw := range domainKeywords {
		switch {
		case stringutil.HasHan(kw):
			keywordHan = append(keywordHan, kw)
		case strings.Contains(kw, " "):
			keywordPhrases = append(keywordPhrases, kw)
		default:
			keywordWords[kw] = struct{}{}
		}
	}
}

var (
	wordPattern          = regexp.MustCompile(`[\p{L}\p{N}'-]+`)
	leadingInterrogative = regexp.MustCompile(`^(?:how|what|when|where|why|who|whom|whose|which|can|could|do|does|did|is|are|was|were|will|would|should|shall|may|might|has|have|any)\b`)
	chineseParticle      = regexp.MustCompile(`吗|呢|么|什么|怎么|如何|为什么|哪|几|是否`)
)

// Gate decides whether a message is plausibly about the product before any
// matcher runs. It favors recall: only very long or very short messages
// that carry neither a domain keyword nor a question shape are rejected.
type Gate struct {
	MaxWords int
	MinWords int
}

// NewGate returns a gate; non-positive thresholds use the defaults.
func NewGate(maxWords, minWords int) Gate {
	if maxWords <= 0 {
		maxWords = DefaultGateMaxWords
	}
	if minWords <= 0 {
		minWords = DefaultGateMinWords
	}
	return Gate{MaxWords: maxWords, MinWords: minWords}
}

// ShouldFallback reports whether message should skip matching and get the
// fallback answer. idx contributes its mined keywords and may be nil.
//
// For the long-message rule a spaceless Chinese message counts one word
// per Han character; the short-message rule counts whitespace words.
func (g Gate) ShouldFallback(message string, idx *faq.Index) bool {
	text := textnorm.Normalize(message)
	if text == "" {
		return true
	}
	long := textnorm.WordCount(text) > g.MaxWords
	short := len(strings.Fields(text)) <= g.MinWords
	if !long && !short {
		return false
	}
	return !HasDomainKeyword(text, idx) && !IsQuestionShaped(text)
}

// HasDomainKeyword reports whether text mentions a curated keyword or one
// of idx's keywords.
func HasDomainKeyword(text string, idx *faq.Index) bool {
	lower := textnorm.Normalize(text)
	for _, kw := range keywordHan {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	words := wordPattern.FindAllString(lower, -1)
	for _, w := range words {
		if _, ok := keywordWords[w]; ok {
			return true
		}
	}
	if len(keywordPhrases) > 0 {
		joined := " " + strings.Join(words, " ") + " "
		for _, p := range keywordPhrases {
			if strings.Contains(joined, " "+p+" ") {
				return true
			}
		}
	}
	if idx == nil {
		return false
	}
	for _, t := range idx.Terms(lower) {
		if idx.IsKeyword(t) {
			return true
		}
	}
	return false
}

// IsQuestionShaped reports whether text ends with a question mark, starts
// with an English interrogative or contains a Chinese question particle.
func IsQuestionShaped(text string) bool {
	t := strings.TrimSpace(strings.ToLower(text))
	if strings.HasSuffix(t, "?") || strings.HasSuffix(t, "？") {
		return true
	}
	if leadingInterrogative.MatchString(t) {
		return true
	}
	return stringutil.HasHan(t) && chineseParticle.MatchString(t)
}
