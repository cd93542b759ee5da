package pipeline

import (
	"github.com/melonneet/ezhishi-chatbot/internal/match"
	"github.com/melonneet/ezhishi-chatbot/internal/stringutil"
)

// Human support contacts offered when no answer is found.
const (
	SupportWhatsApp = "+65 9012 6012"
	SupportEmail    = "service@ecombay.com"
)

// EmptyQueryPrompt is shown to interactive users who send nothing.
const EmptyQueryPrompt = "Please enter a question. 请输入您的问题。"

const (
	fallbackEn = "Sorry, I couldn't find an answer to your question. " +
		"Please contact our support team on WhatsApp " + SupportWhatsApp +
		" or email " + SupportEmail + " and we'll be happy to help."
	fallbackZh = "抱歉，我暂时找不到您问题的答案。请通过 WhatsApp " + SupportWhatsApp +
		" 或电邮 " + SupportEmail + " 联系我们的客服团队。"
)

// FallbackAnswer returns the support message in the language of query.
func FallbackAnswer(query string) string {
	if stringutil.HasHan(query) {
		return fallbackZh
	}
	return fallbackEn
}

// Fallback returns the no-answer result for query.
func Fallback(query string) *match.Result {
	return match.Synthesized(match.TypeFallback, FallbackAnswer(query), 0)
}
