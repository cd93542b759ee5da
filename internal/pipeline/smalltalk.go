package pipeline

import (
	"regexp"
	"strings"

	"github.com/melonneet/ezhishi-chatbot/internal/match"
	"github.com/melonneet/ezhishi-chatbot/internal/stringutil"
	"github.com/melonneet/ezhishi-chatbot/internal/textnorm"
)

type cannedReply struct {
	pattern *regexp.Regexp
	kind    match.Type
	en      string
	zh      string
}

// Patterns are anchored: a greeting followed by a real question is not
// small talk.
var cannedReplies = []cannedReply{
	{
		pattern: regexp.MustCompile(`^(?:hi|hello|hey|hiya|greetings|good (?:morning|afternoon|evening|day))(?: there)?$|^(?:你好|您好|嗨|哈喽|哈啰|早上好|早安|下午好|晚上好)$`),
		kind:    match.TypeGreeting,
		en:      "Hello! I'm the eZhishi assistant. Ask me anything about your account, subscription or learning materials.",
		zh:      "您好！我是易知识小助手。关于账号、订阅或学习内容的问题，都可以问我。",
	},
	{
		pattern: regexp.MustCompile(`^how are you(?: doing| today)?$|^(?:你好吗|您好吗|最近好吗)$`),
		kind:    match.TypeSmallTalk,
		en:      "I'm doing well, thanks for asking! How can I help you today?",
		zh:      "我很好，谢谢关心！今天有什么可以帮您？",
	},
	{
		pattern: regexp.MustCompile(`^(?:ok(?:ay)? )?(?:thanks?|thank you|thx|ty|many thanks)(?: (?:a lot|so much|very much|again))?$|^(?:谢谢|多谢|感谢|谢啦)(?:你|您)?$`),
		kind:    match.TypeSmallTalk,
		en:      "You're welcome! Let me know if there's anything else I can help with.",
		zh:      "不客气！还有其他问题随时问我。",
	},
	{
		pattern: regexp.MustCompile(`^(?:bye|goodbye|bye bye|see you|see ya|good night)$|^(?:再见|拜拜|晚安)$`),
		kind:    match.TypeSmallTalk,
		en:      "Goodbye! Have a great day.",
		zh:      "再见，祝您愉快！",
	},
	{
		pattern: regexp.MustCompile(`^(?:who are you|what are you|are you a bot|are you (?:a )?human|are you real)$|^(?:你是谁|您是谁|你是机器人吗)$`),
		kind:    match.TypeSmallTalk,
		en:      "I'm the eZhishi FAQ assistant. I answer questions about eZhishi accounts, subscriptions and learning materials.",
		zh:      "我是易知识常见问题小助手，可以回答关于账号、订阅和学习内容的问题。",
	},
}

var punctuation = regexp.MustCompile(`[\p{P}\p{S}]+`)

// SmallTalk returns a canned reply when query is only a greeting, thanks,
// goodbye or a question about the bot itself, else nil.
func SmallTalk(query string) *match.Result {
	text := strings.Join(strings.Fields(punctuation.ReplaceAllString(textnorm.Normalize(query), " ")), " ")
	if text == "" {
		return nil
	}
	for _, c := range cannedReplies {
		if !c.pattern.MatchString(text) {
			continue
		}
		answer := c.en
		if stringutil.HasHan(text) {
			answer = c.zh
		}
		return match.Synthesized(c.kind, answer, 1.0)
	}
	return nil
}
