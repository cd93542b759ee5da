package convo

import (
	"regexp"
	"strings"
	"unicode"
)

// Entity types.
const (
	EntityLoginID  = "login_id"
	EntityEmail    = "email"
	EntityPhone    = "phone"
	EntityDate     = "date"
	EntityDuration = "duration"
)

// Entity is a typed value mentioned in a message.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

var (
	loginIDPattern  = regexp.MustCompile(`\b[A-Za-z0-9]{6,20}\b`)
	emailPattern    = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)
	phonePattern    = regexp.MustCompile(`(?:\+65\s?)?[689]\d{7}\b`)
	datePattern     = regexp.MustCompile(`(?i)\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{2,4}\b`)
	durationPattern = regexp.MustCompile(`(?i)\b\d+\s*(?:days?|hours?|minutes?|weeks?|months?)\b`)
)

// ExtractEntities finds login ids, email addresses, Singapore phone
// numbers, dates and durations in text. A login id candidate must mix
// letters and digits; plain words and numbers are not ids.
func ExtractEntities(text string) []Entity {
	var out []Entity
	emails := emailPattern.FindAllString(text, -1)
	for _, e := range emails {
		out = append(out, Entity{Type: EntityEmail, Value: e})
	}

	// Matches inside an email address are part of it, not ids.
	rest := text
	for _, e := range emails {
		rest = strings.ReplaceAll(rest, e, " ")
	}
	for _, id := range loginIDPattern.FindAllString(rest, -1) {
		if hasLetterAndDigit(id) {
			out = append(out, Entity{Type: EntityLoginID, Value: id})
		}
	}

	for _, p := range phonePattern.FindAllString(text, -1) {
		out = append(out, Entity{Type: EntityPhone, Value: p})
	}
	for _, d := range datePattern.FindAllString(text, -1) {
		out = append(out, Entity{Type: EntityDate, Value: d})
	}
	for _, d := range durationPattern.FindAllString(text, -1) {
		out = append(out, Entity{Type: EntityDuration, Value: d})
	}
	return out
}

func hasLetterAndDigit(s string) bool {
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}
