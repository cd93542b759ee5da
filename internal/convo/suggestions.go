package convo

import "strings"

// maxSuggestions caps SuggestNextQuestions.
const maxSuggestions = 3

// Suggestion is a question the user may want to ask next.
type Suggestion struct {
	Topic    string `json:"topic"`
	Question string `json:"question"`
}

var topicQuestions = map[string]string{
	"password_reset":     "How do I reset my password?",
	"password_change":    "How do I change my password?",
	"security_questions": "What if I forgot my security questions?",
	"login_id":           "Where can I find my login ID?",
	"login_process":      "What are the steps to log in?",
	"login_issues":       "Why can't I log in?",
	"activation_delay":   "Why is my account not activated yet?",
	"payment_activation": "How can I check my payment status?",
	"chinese":            "What Chinese learning resources are available?",
	"math":               "Does eZhishi offer math content?",
	"science":            "Does eZhishi offer science content?",
	"points":             "How do I earn reward points?",
	"redemption":         "How can I redeem my points?",
	"delivery":           "When will I receive my magazine?",
}

// questionForTopic returns the canned question for topic, or a generic
// prompt naming it.
func questionForTopic(topic string) string {
	if q, ok := topicQuestions[topic]; ok {
		return q
	}
	return "Tell me more about " + strings.ReplaceAll(topic, "_", " ")
}

// SuggestNextQuestions proposes up to three follow-up questions: the
// children of the answered question's main topic, a fix-it prompt after a
// problem statement, and the login id hint when the conversation is about
// logging in but no id was given. faqQuestion is the English question of
// the answered FAQ, or empty. The answered question itself is never
// suggested.
func SuggestNextQuestions(s *Session, faqQuestion string) []Suggestion {
	var out []Suggestion
	seen := map[string]bool{strings.ToLower(faqQuestion): true}
	add := func(topic, q string) {
		key := strings.ToLower(q)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Suggestion{Topic: topic, Question: q})
	}

	if faqQuestion != "" {
		if topics := matchTopics(faqQuestion); len(topics) > 0 {
			for _, child := range topicHierarchy[topics[0]].children {
				add(child, questionForTopic(child))
			}
		}
	}
	if s != nil && s.LastIntent == IntentProblemStatement {
		add("solution", "How can I fix this issue?")
	}
	if s != nil && len(s.Entities) == 0 && s.HasTopic("login") {
		add("login_id", questionForTopic("login_id"))
	}

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
