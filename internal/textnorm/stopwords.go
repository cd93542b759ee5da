package textnorm

var stopWords = setOf(
	"a", "an", "the", "and", "or", "but", "in", "on", "at", "to", "for", "of",
	"with", "by", "from", "about", "as", "into", "is", "are", "was", "were",
	"be", "been", "being", "am", "have", "has", "had", "do", "does", "did",
	"will", "would", "could", "should", "may", "might", "can", "must", "shall",
	"this", "that", "these", "those", "i", "you", "he", "she", "it", "we",
	"they", "me", "him", "her", "us", "them", "my", "your", "his", "its",
	"our", "their", "what", "which", "who", "whom", "how", "why", "when",
	"where", "if", "then", "so", "not", "no", "yes", "there", "here", "any",
	"some", "all", "just", "also", "too", "very", "please", "get", "got",
	"want", "need", "s", "t",
	"的", "了", "吗", "呢", "么", "我", "你", "是", "在", "有", "和", "要",
)

// generalWords are English nouns too vague to signal that a query is about
// the product, even though they appear in FAQ questions.
var generalWords = setOf(
	"question", "questions", "thing", "things", "way", "ways", "time", "day",
	"days", "one", "use", "using", "help", "know", "make", "like", "new",
	"problem", "issue", "someone", "something", "anything", "people",
)

// IsStopWord reports whether word (lowercase) carries no topical meaning.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// IsGeneralWord reports whether word is a stop word or a vague noun that
// should not count as a domain keyword.
func IsGeneralWord(word string) bool {
	if IsStopWord(word) {
		return true
	}
	_, ok := generalWords[word]
	return ok
}

func setOf(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
