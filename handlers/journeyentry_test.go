package handlers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearrail/claimflow/conversation"
	"github.com/clearrail/claimflow/journey"
	"github.com/clearrail/claimflow/session"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "request timed out" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func entryData(fields func(*session.Claim)) session.Data {
	data := session.New()
	claim := data.EnsureClaim()
	claim.Date = "2026-08-12"
	claim.Origin = "KGX"
	claim.Destination = "YRK"
	if fields != nil {
		fields(claim)
	}
	return data
}

func TestDateHandlerAcceptsUKFormat(t *testing.T) {
	t.Parallel()

	h := &journeyDateHandler{deps: testDeps(&fakeRoutes{})}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "12/08/2026"},
		State:   conversation.StateAwaitingJourneyDate,
		Data:    session.New(),
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.StateAwaitingJourneyStations, result.Next)
	require.NotNil(t, result.Data.Claim)
	assert.Equal(t, "2026-08-12", result.Data.Claim.Date)
}

func TestDateHandlerRepromptsOnGarbage(t *testing.T) {
	t.Parallel()

	h := &journeyDateHandler{deps: testDeps(&fakeRoutes{})}

	for _, text := range []string{"tomorrow", "32/01/2026", "01/01/2030"} {
		result, err := h.Handle(context.Background(), conversation.HandlerContext{
			Request: conversation.Request{Identity: "+447700900001", Text: text},
			State:   conversation.StateAwaitingJourneyDate,
			Data:    session.New(),
		})
		require.NoError(t, err, text)
		assert.Equal(t, conversation.State(""), result.Next, text)
	}
}

func TestStationsHandlerPreservesDate(t *testing.T) {
	t.Parallel()

	h := &journeyStationsHandler{}

	data := session.New()
	data.EnsureClaim().Date = "2026-08-12"

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "kgx to yrk"},
		State:   conversation.StateAwaitingJourneyStations,
		Data:    data,
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.StateAwaitingJourneyTime, result.Next)
	assert.Equal(t, "KGX", result.Data.Claim.Origin)
	assert.Equal(t, "YRK", result.Data.Claim.Destination)
	// The date collected one turn earlier survives.
	assert.Equal(t, "2026-08-12", result.Data.Claim.Date)
}

func TestStationsHandlerWithoutDateErrors(t *testing.T) {
	t.Parallel()

	h := &journeyStationsHandler{}

	_, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "KGX to YRK"},
		State:   conversation.StateAwaitingJourneyStations,
		Data:    session.New(),
	})
	require.ErrorIs(t, err, session.ErrMissingContext)
}

func TestTimeHandlerExactMatchGoesToJourneyConfirm(t *testing.T) {
	t.Parallel()

	lookup := &fakeRoutes{routes: []journey.Route{directAt("08:31")}}
	h := &journeyTimeHandler{deps: testDeps(lookup)}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "08:30"},
		State:   conversation.StateAwaitingJourneyTime,
		Data:    entryData(nil),
	})
	require.NoError(t, err)

	require.Len(t, lookup.calls, 1)
	assert.Equal(t, "2026-08-12", lookup.calls[0].Date)
	assert.Equal(t, "08:30", lookup.calls[0].Time)

	assert.Equal(t, conversation.StateAwaitingJourneyConfirm, result.Next)
	require.NotNil(t, result.Data.Claim.Matched)
	assert.Equal(t, "LNER-08:31", result.Data.Claim.JourneyID)
	assert.Nil(t, result.Data.Routing)
}

func TestTimeHandlerMultipleCandidatesGoToRoutingConfirm(t *testing.T) {
	t.Parallel()

	routes := []journey.Route{directAt("08:31"), directAt("09:31"), directAt("10:31"), directAt("11:31")}
	lookup := &fakeRoutes{routes: routes}
	h := &journeyTimeHandler{deps: testDeps(lookup)}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "8:30"},
		State:   conversation.StateAwaitingJourneyTime,
		Data:    entryData(nil),
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.StateAwaitingRoutingConfirm, result.Next)
	require.NotNil(t, result.Data.Routing)
	assert.Len(t, result.Data.Routing.AllRoutes, 4)
	assert.Equal(t, "08:31", result.Data.Claim.Matched.Departure())
}

func TestTimeHandlerEmptyResultReprompts(t *testing.T) {
	t.Parallel()

	h := &journeyTimeHandler{deps: testDeps(&fakeRoutes{})}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "03:00"},
		State:   conversation.StateAwaitingJourneyTime,
		Data:    entryData(nil),
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.State(""), result.Next)
	require.Len(t, result.Replies, 1)
	assert.Contains(t, result.Replies[0], "no KGX to YRK services")
}

func TestTimeHandlerTimeoutKeepsUserInTimeEntry(t *testing.T) {
	t.Parallel()

	lookup := &fakeRoutes{err: fmt.Errorf("looking up routes: %w", timeoutError{})}
	h := &journeyTimeHandler{deps: testDeps(lookup)}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "08:30"},
		State:   conversation.StateAwaitingJourneyTime,
		Data:    entryData(nil),
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.State(""), result.Next)
	require.Len(t, result.Replies, 1)
	assert.Contains(t, result.Replies[0], "taking longer than expected")
	// Claim context survives for the retry.
	assert.Equal(t, "KGX", result.Data.Claim.Origin)
}

func TestTimeHandlerBadClockReprompts(t *testing.T) {
	t.Parallel()

	lookup := &fakeRoutes{}
	h := &journeyTimeHandler{deps: testDeps(lookup)}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "half past eight"},
		State:   conversation.StateAwaitingJourneyTime,
		Data:    entryData(nil),
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.State(""), result.Next)
	assert.Empty(t, lookup.calls)
}
