package convo

import (
	"context"
	"maps"
	"slices"
)

// SessionStore persists sessions by id. Get returns an error wrapping
// errors.ErrNotFound for unknown or expired ids. Implementations expire
// sessions that have been idle for longer than their TTL.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Len(ctx context.Context) (int, error)
	// Range calls fn for every live session until fn returns false.
	Range(ctx context.Context, fn func(*Session) bool) error
	Close() error
}

// clone deep-copies s so stored sessions never alias caller state.
func (s *Session) clone() *Session {
	c := *s
	c.Turns = make([]Turn, len(s.Turns))
	for i, t := range s.Turns {
		t.Topics = slices.Clone(t.Topics)
		t.Entities = slices.Clone(t.Entities)
		c.Turns[i] = t
	}
	c.Topics = slices.Clone(s.Topics)
	c.Entities = maps.Clone(s.Entities)
	if c.Entities == nil {
		c.Entities = make(map[string]string)
	}
	return &c
}
