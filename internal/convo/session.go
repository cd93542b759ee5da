// Package convo tracks multi-turn conversation state: a sliding window of
// recent turns per session, the topics and entities mentioned in it, and
// the heuristics that decide whether a new message continues the previous
// one.
package convo

import (
	"time"
)

// DefaultWindow is the number of turns a session retains.
const DefaultWindow = 5

// maxTopics caps the active topic list.
const maxTopics = 10

// Reply is what the bot answered to a turn.
type Reply struct {
	Answer      string `json:"answer"`
	FAQID       string `json:"faqId,omitempty"`
	FAQQuestion string `json:"faqQuestion,omitempty"`
	Category    string `json:"category,omitempty"`
	MatchType   string `json:"matchType,omitempty"`
}

// Turn is one user message and the reply to it.
type Turn struct {
	Query     string    `json:"query"`
	Reply     Reply     `json:"reply"`
	Timestamp time.Time `json:"timestamp"`
	Topics    []string  `json:"topics,omitempty"`
	Entities  []Entity  `json:"entities,omitempty"`
	Intent    Intent    `json:"intent,omitempty"`
}

// Session is the conversation state of one session id. Sessions are plain
// values: stores serialize them and Manager.WithSession serializes access.
type Session struct {
	ID           string            `json:"id"`
	Turns        []Turn            `json:"turns"`
	Topics       []string          `json:"topics"`
	Entities     map[string]string `json:"entities"`
	LastFAQ      string            `json:"lastFaq,omitempty"`
	LastFAQID    string            `json:"lastFaqId,omitempty"`
	LastCategory string            `json:"lastCategory,omitempty"`
	LastIntent   Intent            `json:"lastIntent,omitempty"`
	LastTopic    string            `json:"lastTopic,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// NewSession returns an empty session.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Entities:  make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasHistory reports whether the session holds at least one turn.
func (s *Session) HasHistory() bool {
	return s != nil && len(s.Turns) > 0
}

// LastTurn returns the newest turn.
func (s *Session) LastTurn() (Turn, bool) {
	if !s.HasHistory() {
		return Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}

// HasTopic reports whether topic is active in the session window.
func (s *Session) HasTopic(topic string) bool {
	if s == nil {
		return false
	}
	for _, t := range s.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// addTurn appends t, drops turns beyond window and recomputes the derived
// state from the retained turns only, so old topics age out with their
// turns.
func (s *Session) addTurn(t Turn, window int) {
	if window <= 0 {
		window = DefaultWindow
	}
	s.Turns = append(s.Turns, t)
	if over := len(s.Turns) - window; over > 0 {
		s.Turns = append([]Turn(nil), s.Turns[over:]...)
	}
	s.UpdatedAt = t.Timestamp

	s.Topics = s.Topics[:0]
	s.Entities = make(map[string]string)
	for _, turn := range s.Turns {
		for _, topic := range turn.Topics {
			s.Topics = moveToBack(s.Topics, topic)
		}
		for _, e := range turn.Entities {
			s.Entities[e.Type] = e.Value
		}
	}
	if over := len(s.Topics) - maxTopics; over > 0 {
		s.Topics = s.Topics[over:]
	}
	s.LastTopic = ""
	if n := len(s.Topics); n > 0 {
		s.LastTopic = s.Topics[n-1]
	}

	if t.Intent != "" {
		s.LastIntent = t.Intent
	}
	if t.Reply.FAQQuestion != "" {
		s.LastFAQ = t.Reply.FAQQuestion
		s.LastFAQID = t.Reply.FAQID
		s.LastCategory = t.Reply.Category
	}
}

func moveToBack(list []string, item string) []string {
	for i, v := range list {
		if v == item {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	return append(list, item)
}
