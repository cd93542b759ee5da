package convo

import (
	"regexp"
	"strings"
)

type topicNode struct {
	parent   string
	children []string
}

// topicHierarchy relates topics for parent tagging and suggestions.
var topicHierarchy = map[string]topicNode{
	"account":    {children: []string{"login", "password", "activation", "profile"}},
	"login":      {parent: "account", children: []string{"login_id", "login_process", "login_issues"}},
	"password":   {parent: "account", children: []string{"password_reset", "password_change", "security_questions"}},
	"activation": {parent: "account", children: []string{"payment_activation", "activation_delay"}},
	"learning":   {children: []string{"subjects", "exercises", "content"}},
	"subjects":   {parent: "learning", children: []string{"chinese", "math", "science", "other_subjects"}},
	"technical":  {children: []string{"errors", "browser_issues", "app_issues"}},
	"rewards":    {children: []string{"points", "redemption", "delivery"}},
}

type topicPattern struct {
	topic   string
	english *regexp.Regexp
	chinese []string
}

// topicPatterns are checked in order. English alternatives match at a word
// start so stems like "activat" cover activate and activation; Chinese
// alternatives match as substrings.
var topicPatterns = []topicPattern{
	{"login", regexp.MustCompile(`(?i)\b(?:login|log\s*in|sign\s*in|signin|access|username)`), []string{"登录", "登入", "账号"}},
	{"password", regexp.MustCompile(`(?i)\b(?:password|pwd|passcode|pin\b|secret)`), []string{"密码", "口令"}},
	{"account", regexp.MustCompile(`(?i)\b(?:account|profile|user\b|users\b)`), []string{"账户", "用户"}},
	{"activation", regexp.MustCompile(`(?i)\b(?:activat|enabl)`), []string{"激活", "开通", "启用"}},
	{"subscription", regexp.MustCompile(`(?i)\b(?:subscri|renew|expir|cancel)`), []string{"订阅", "续订", "过期"}},
	{"payment", regexp.MustCompile(`(?i)\b(?:pay\b|paid|payment|paynow|invoice|fee\b|fees\b|cost|price|refund)`), []string{"付款", "支付", "费用", "退款"}},
	{"subjects", regexp.MustCompile(`(?i)\b(?:subject|course|math|science|english|chinese)`), []string{"科目", "课程", "数学", "科学", "华文"}},
	{"exercises", regexp.MustCompile(`(?i)\b(?:practi[cs]e|exercise|worksheet)`), []string{"练习", "习题"}},
	{"technical", regexp.MustCompile(`(?i)\b(?:error|problem|issue|bug\b|bugs\b|crash|fail|not working)`), []string{"错误", "问题", "故障"}},
	{"rewards", regexp.MustCompile(`(?i)\b(?:reward|points?\b|redeem|redemption|gift|prize)`), []string{"积分", "奖励", "礼物"}},
	{"delivery", regexp.MustCompile(`(?i)\b(?:deliver|ship|send|receive|mail\b|order|track|parcel|magazine)`), []string{"送货", "发货", "收到", "订单", "杂志"}},
	{"help", regexp.MustCompile(`(?i)\b(?:help|support|assist|contact|service)`), []string{"帮助", "支持", "客服"}},
}

// matchTopics returns the topics text mentions directly, in pattern order.
func matchTopics(text string) []string {
	var out []string
	for _, p := range topicPatterns {
		if p.english.MatchString(text) || containsAny(text, p.chinese) {
			out = append(out, p.topic)
		}
	}
	return out
}

// ExtractTopics returns the topic tags of text. A topic's parent is listed
// just before it, so the last tag is the most specific.
func ExtractTopics(text string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range matchTopics(text) {
		if parent := topicHierarchy[t].parent; parent != "" {
			add(parent)
		}
		add(t)
	}
	return out
}

// DetectTopicChange reports whether current moves to a new subject: both
// messages carry topics and they share none.
func DetectTopicChange(previous, current string) bool {
	prev := ExtractTopics(previous)
	cur := ExtractTopics(current)
	if len(prev) == 0 || len(cur) == 0 {
		return false
	}
	return !overlaps(prev, cur)
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func containsAny(text string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}
