package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearrail/claimflow/conversation"
	"github.com/clearrail/claimflow/outbox"
	"github.com/clearrail/claimflow/session"
)

func TestLoadUnknownIdentity(t *testing.T) {
	t.Parallel()

	s := New()

	state, data, err := s.Load(context.Background(), "+447700900001")
	require.NoError(t, err)

	assert.Equal(t, conversation.StateStart, state)
	assert.Equal(t, session.CurrentVersion, data.Version)
	assert.Nil(t, data.Claim)
}

func TestCommitAndLoad(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	data := session.New()
	data.EnsureClaim().Origin = "KGX"

	require.NoError(t, s.Commit(ctx, "+447700900001", conversation.StateAwaitingJourneyStations, data, nil))

	state, loaded, err := s.Load(ctx, "+447700900001")
	require.NoError(t, err)
	assert.Equal(t, conversation.StateAwaitingJourneyStations, state)
	require.NotNil(t, loaded.Claim)
	assert.Equal(t, "KGX", loaded.Claim.Origin)

	// Mutating what Load returned must not touch the stored copy.
	loaded.Claim.Origin = "PAD"
	_, again, err := s.Load(ctx, "+447700900001")
	require.NoError(t, err)
	assert.Equal(t, "KGX", again.Claim.Origin)
}

func TestCommitAppendsEvents(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	event, err := outbox.New(outbox.AggregateJourney, "j-1", outbox.EventRoutingEscalation, nil)
	require.NoError(t, err)

	require.NoError(t, s.Commit(ctx, "+447700900001", conversation.StateError, session.New(), []outbox.Event{event}))

	pending, err := s.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, outbox.EventRoutingEscalation, pending[0].EventType)
}

func TestMarkPublishedHidesEvent(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	event, err := outbox.New(outbox.AggregateUser, "+447700900001", outbox.EventUserRegistered, nil)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, "+447700900001", conversation.StateAuthenticated, session.New(), []outbox.Event{event}))

	require.NoError(t, s.MarkPublished(ctx, event.ID, time.Now().UTC()))

	pending, err := s.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// Commits for the same identity are last-writer-wins: a later commit
// replaces the earlier one wholesale, nothing is merged. Duplicate channel
// delivery therefore can lose a concurrent update, which is why the gateway
// relies on the channel delivering one identity's messages serially.
func TestCommitLastWriterWins(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	first := session.New()
	first.EnsureClaim().Origin = "KGX"
	first.Claim.Destination = "YRK"
	require.NoError(t, s.Commit(ctx, "+447700900001", conversation.StateAwaitingJourneyTime, first, nil))

	second := session.New()
	second.EnsureClaim().Origin = "PAD"
	require.NoError(t, s.Commit(ctx, "+447700900001", conversation.StateAwaitingJourneyStations, second, nil))

	state, loaded, err := s.Load(ctx, "+447700900001")
	require.NoError(t, err)
	assert.Equal(t, conversation.StateAwaitingJourneyStations, state)
	assert.Equal(t, "PAD", loaded.Claim.Origin)
	assert.Empty(t, loaded.Claim.Destination)
}

func TestClear(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, "+447700900001", conversation.StateAuthenticated, session.New(), nil))
	require.NoError(t, s.Clear(ctx, "+447700900001"))

	state, _, err := s.Load(ctx, "+447700900001")
	require.NoError(t, err)
	assert.Equal(t, conversation.StateStart, state)
}
