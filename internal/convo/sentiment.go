package convo

import "regexp"

// Sentiment flags the tone of a message. Neutral is set only when no other
// flag is.
type Sentiment struct {
	Negative bool `json:"negative"`
	Positive bool `json:"positive"`
	Urgent   bool `json:"urgent"`
	Neutral  bool `json:"neutral"`
}

// Label returns the dominant tone: urgent, negative, positive or neutral.
func (s Sentiment) Label() string {
	switch {
	case s.Urgent:
		return "urgent"
	case s.Negative:
		return "negative"
	case s.Positive:
		return "positive"
	default:
		return "neutral"
	}
}

var (
	negativePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:can'?t|cannot|unable|fail|failed|error|problem|issue|trouble|difficult|hard)\b`),
		regexp.MustCompile(`(?i)\b(?:frustrated|annoyed|angry|upset|disappointed|confused)\b`),
		regexp.MustCompile(`(?i)\b(?:not work|doesn'?t work|broken|stuck)`),
		regexp.MustCompile(`不能|无法|失败|错误|问题|困难`),
	}
	positivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:thank|thanks|great|good|excellent|perfect|helpful|solved)\b`),
		regexp.MustCompile(`(?i)\b(?:working|works|success|successful)\b`),
		regexp.MustCompile(`谢谢|感谢|很好|解决了`),
	}
	urgentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:urgent|asap|immediately|now|quickly|hurry)\b`),
		regexp.MustCompile(`(?i)\b(?:been waiting|still waiting|how long|when will)\b`),
		regexp.MustCompile(`紧急|马上|立即|赶紧`),
	}
)

// AnalyzeSentiment flags negative, positive and urgent wording in query.
func AnalyzeSentiment(query string) Sentiment {
	s := Sentiment{
		Negative: anyMatch(negativePatterns, query),
		Positive: anyMatch(positivePatterns, query),
		Urgent:   anyMatch(urgentPatterns, query),
	}
	s.Neutral = !s.Negative && !s.Positive && !s.Urgent
	return s
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
