package storage

import "time"

// TurnType tells who sent a message.
type TurnType string

// Turn types.
const (
	TurnUser TurnType = "user"
	TurnBot  TurnType = "bot"
)

// Message is one logged chat message.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Type      TurnType  `json:"type"`
	Text      string    `json:"text"`
	MatchType string    `json:"matchType,omitempty"`
	FAQID     string    `json:"faqId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	// Client details stored on the session row the first time they are seen.
	ClientIP  string `json:"-"`
	UserAgent string `json:"-"`
}

// QuestionStat aggregates how often a normalized question was asked.
type QuestionStat struct {
	Question      string    `json:"question"`
	AskCount      int       `json:"askCount"`
	FallbackCount int       `json:"fallbackCount"`
	LastMatchType string    `json:"lastMatchType,omitempty"`
	LastFAQID     string    `json:"lastFaqId,omitempty"`
	LastAskedAt   time.Time `json:"lastAskedAt"`
}

// Session summarizes one logged chat session.
type Session struct {
	ID           string     `json:"sessionId"`
	StartedAt    time.Time  `json:"startedAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	MessageCount int        `json:"totalMessages"`
	ClientIP     string     `json:"userIp,omitempty"`
	UserAgent    string     `json:"userAgent,omitempty"`
}

// Question is one analytics observation.
type Question struct {
	SessionID string
	Text      string
	MatchType string
	FAQID     string
	Fallback  bool
	AskedAt   time.Time
}
