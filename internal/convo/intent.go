package convo

import (
	"regexp"
	"strings"
)

// Intent classifies what a message asks for.
type Intent string

// Intents.
const (
	IntentHowTo            Intent = "how_to"
	IntentDefinition       Intent = "definition"
	IntentTiming           Intent = "timing"
	IntentLocation         Intent = "location"
	IntentReason           Intent = "reason"
	IntentQuestion         Intent = "question"
	IntentProblemStatement Intent = "problem_statement"
	IntentRequest          Intent = "request"
	IntentStatement        Intent = "statement"
	IntentSolutionRequest  Intent = "solution_request"
	IntentGeneral          Intent = "general"
)

var (
	questionStart  = regexp.MustCompile(`(?i)^(?:what|who|when|where|why|how|which|什么|谁|何时|哪里|为什么|怎么|哪个)`)
	statementStart = regexp.MustCompile(`(?i)^(?:i|my|we|our|the|it|this|that)\b`)
)

// DetectIntent classifies query. A message after a problem statement that
// reads as a follow-up becomes a solution request.
func DetectIntent(query string, s *Session) Intent {
	q := strings.TrimSpace(query)
	lower := strings.ToLower(q)

	if questionStart.MatchString(q) {
		switch {
		case strings.Contains(lower, "how") && (strings.Contains(lower, "do") || strings.Contains(lower, "can")):
			return IntentHowTo
		case strings.Contains(lower, "what") && strings.Contains(lower, "is"):
			return IntentDefinition
		case strings.Contains(lower, "when") || strings.Contains(lower, "how long"):
			return IntentTiming
		case strings.Contains(lower, "where"):
			return IntentLocation
		case strings.Contains(lower, "why"):
			return IntentReason
		}
		return IntentQuestion
	}

	if statementStart.MatchString(q) {
		switch {
		case strings.Contains(lower, "can't") || strings.Contains(lower, "cannot") || strings.Contains(lower, "unable"):
			return IntentProblemStatement
		case strings.Contains(lower, "need") || strings.Contains(lower, "want"):
			return IntentRequest
		}
		return IntentStatement
	}

	if s != nil && s.LastIntent == IntentProblemStatement && IsFollowUp(query, s) {
		return IntentSolutionRequest
	}
	return IntentGeneral
}

var followUpPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:yes|no|okay|ok|sure|alright)\b`),
	regexp.MustCompile(`^(?:and|also|but|however|additionally|furthermore)\b`),
	regexp.MustCompile(`^(?:what about|how about|and if|what if)\b`),
	regexp.MustCompile(`^(?:can you|could you|would you|please)\b`),
	regexp.MustCompile(`^(?:that'?s? |it'?s? |this is )`),
	regexp.MustCompile(`还有|那么|另外|而且|但是`),
}

var (
	pronounPattern    = regexp.MustCompile(`\b(?:it|this|that|they|them|those|these)\b`)
	antecedentPattern = regexp.MustCompile(`\b(?:ezhishi|account|password|login|subscription|reward|point|magazine|app|pen)`)
)

// shortFollowUpWords is the longest message that can count as a follow-up
// through topic overlap alone.
const shortFollowUpWords = 4

// IsFollowUp reports whether query continues the conversation in s. Any of
// three signals suffices: a leading continuation phrase, a pronoun with no
// noun before it in the same message, or a short message sharing a topic
// with the session.
func IsFollowUp(query string, s *Session) bool {
	lower := strings.ToLower(strings.TrimSpace(query))
	if lower == "" {
		return false
	}
	for _, p := range followUpPatterns {
		if p.MatchString(lower) {
			return true
		}
	}

	if loc := pronounPattern.FindStringIndex(lower); loc != nil && !antecedentPattern.MatchString(lower[:loc[0]]) {
		return true
	}

	if s.HasHistory() && len(strings.Fields(lower)) <= shortFollowUpWords {
		for _, t := range ExtractTopics(lower) {
			if s.HasTopic(t) {
				return true
			}
		}
	}
	return false
}

// ReferenceType classifies what a message refers back to.
type ReferenceType string

// Reference types. ReferenceNone means the message stands alone.
const (
	ReferenceNone       ReferenceType = ""
	ReferenceAction     ReferenceType = "action_reference"
	ReferenceDefinition ReferenceType = "definition_reference"
	ReferenceLocation   ReferenceType = "location_reference"
	ReferencePronoun    ReferenceType = "pronoun_reference"
	ReferenceSame       ReferenceType = "same_reference"
	ReferencePrevious   ReferenceType = "previous_reference"
)

var (
	referencePronoun = regexp.MustCompile(`(?i)\b(?:it|this|that)\b`)
	actionReference  = regexp.MustCompile(`how (?:do|can|should) (?:i|we) (?:do|use|access|get) (?:it|this|that)\b`)
	definitionRef    = regexp.MustCompile(`what (?:is|are|does|do) (?:it|this|that|they)\b`)
	locationRef      = regexp.MustCompile(`where (?:is|are|can) (?:i|we) (?:find|get|see) (?:it|this|that)\b`)
	sameReference    = regexp.MustCompile(`\b(?:the same|same thing|same issue|same problem)\b`)
	previousRef      = regexp.MustCompile(`\b(?:above|previous|earlier|before)\b`)
)

// DetectReference classifies how query refers to earlier turns.
func DetectReference(query string) ReferenceType {
	lower := strings.ToLower(query)
	if referencePronoun.MatchString(lower) {
		switch {
		case actionReference.MatchString(lower):
			return ReferenceAction
		case definitionRef.MatchString(lower):
			return ReferenceDefinition
		case locationRef.MatchString(lower):
			return ReferenceLocation
		}
		return ReferencePronoun
	}
	if sameReference.MatchString(lower) {
		return ReferenceSame
	}
	if previousRef.MatchString(lower) {
		return ReferencePrevious
	}
	return ReferenceNone
}

// ResolveReferences rewrites query so it stands alone: a bare pronoun
// becomes the session's last topic, "how do I use it" names the last FAQ
// question, and "same issue" carries the previous query along. Queries
// without a reference, or sessions without history, are returned as is.
func ResolveReferences(query string, s *Session) string {
	last, ok := s.LastTurn()
	if !ok {
		return query
	}
	switch DetectReference(query) {
	case ReferencePronoun:
		if s.LastTopic != "" {
			return referencePronoun.ReplaceAllLiteralString(query, strings.ReplaceAll(s.LastTopic, "_", " "))
		}
	case ReferenceAction:
		if s.LastFAQ != "" {
			return referencePronoun.ReplaceAllLiteralString(query, `"`+s.LastFAQ+`"`)
		}
	case ReferenceSame:
		return query + " (referring to: " + last.Query + ")"
	}
	return query
}
