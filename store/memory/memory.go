// Package memory holds the in-process state store used for local runs and
// tests. Commits are atomic under one mutex, mirroring the transactional
// guarantee of the DynamoDB store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/clearrail/claimflow/conversation"
	"github.com/clearrail/claimflow/outbox"
	"github.com/clearrail/claimflow/session"
)

type record struct {
	state conversation.State
	data  session.Data
}

// Store keeps sessions and the outbox ledger in maps. It satisfies both
// conversation.Store and outbox.Store.
type Store struct {
	mu       sync.Mutex
	sessions map[string]record
	events   []outbox.Event
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		sessions: make(map[string]record),
	}
}

// Load returns the stored state and data for identity, or StateStart and a
// fresh session for an identity seen for the first time.
func (s *Store) Load(_ context.Context, identity string) (conversation.State, session.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[identity]
	if !ok {
		return conversation.StateStart, session.New(), nil
	}

	// Hand out a copy so callers cannot mutate the stored session
	// outside Commit.
	return rec.state, rec.data.Clone(), nil
}

// Commit stores the transition and appends the events under one lock, so a
// reader never observes the state without its events.
func (s *Store) Commit(_ context.Context, identity string, state conversation.State, data session.Data, events []outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[identity] = record{state: state, data: data.Clone()}
	s.events = append(s.events, events...)

	return nil
}

// Clear removes the session for identity. Used by logout.
func (s *Store) Clear(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, identity)

	return nil
}

// FetchUnpublished returns up to limit events without a publish stamp, in
// insertion order.
func (s *Store) FetchUnpublished(_ context.Context, limit int) ([]outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []outbox.Event
	for _, e := range s.events {
		if e.PublishedAt == nil {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}

	return out, nil
}

// MarkPublished stamps the event as delivered.
func (s *Store) MarkPublished(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].ID == id && s.events[i].PublishedAt == nil {
			stamp := at
			s.events[i].PublishedAt = &stamp
		}
	}

	return nil
}
