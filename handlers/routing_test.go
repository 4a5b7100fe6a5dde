package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearrail/claimflow/conversation"
	"github.com/clearrail/claimflow/journey"
	"github.com/clearrail/claimflow/outbox"
	"github.com/clearrail/claimflow/session"
)

func negotiationData(t *testing.T, routes []journey.Route) session.Data {
	t.Helper()

	data := session.New()
	claim := data.EnsureClaim()
	claim.Date = "2026-08-12"
	claim.Origin = "KGX"
	claim.Destination = "YRK"
	claim.Time = "08:30"
	claim.Matched = &routes[0]
	claim.JourneyID = routes[0].TripID()

	data.EnsureRouting().AllRoutes = routes

	return data
}

func departures(routes []journey.Route) []string {
	out := make([]string, len(routes))
	for i, r := range routes {
		out[i] = r.Departure()
	}
	return out
}

func TestRejectedTopCandidateOffersNextThree(t *testing.T) {
	t.Parallel()

	routes := []journey.Route{directAt("08:31"), directAt("09:31"), directAt("10:31"), directAt("11:31")}
	lookup := &fakeRoutes{}
	h := &routingConfirmHandler{deps: testDeps(lookup)}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "no"},
		State:   conversation.StateAwaitingRoutingConfirm,
		Data:    negotiationData(t, routes),
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.StateAwaitingRoutingAlternative, result.Next)
	require.NotNil(t, result.Data.Routing)
	assert.Equal(t, []string{"09:31", "10:31", "11:31"}, departures(result.Data.Routing.CurrentAlternatives))
	assert.Equal(t, 1, result.Data.Routing.AlternativeCount)
	// The list was already in the session; no second lookup.
	assert.Empty(t, lookup.calls)
}

func TestNoneFetchesFreshBatchWithOffset(t *testing.T) {
	t.Parallel()

	routes := []journey.Route{directAt("08:31"), directAt("09:31"), directAt("10:31"), directAt("11:31")}
	lookup := &fakeRoutes{routes: []journey.Route{directAt("12:31"), directAt("13:31")}}
	h := &routingAlternativeHandler{deps: testDeps(lookup)}

	data := negotiationData(t, routes)
	data.Routing.CurrentAlternatives = routes[1:4]
	data.Routing.AlternativeCount = 1

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "NONE"},
		State:   conversation.StateAwaitingRoutingAlternative,
		Data:    data,
	})
	require.NoError(t, err)

	require.Len(t, lookup.calls, 1)
	assert.Equal(t, 3, lookup.calls[0].Offset)
	assert.Equal(t, conversation.State(""), result.Next)
	require.NotNil(t, result.Data.Routing)
	assert.Equal(t, 2, result.Data.Routing.AlternativeCount)
	assert.Equal(t, []string{"12:31", "13:31"}, departures(result.Data.Routing.CurrentAlternatives))
}

func TestThirdNoneEscalates(t *testing.T) {
	t.Parallel()

	routes := []journey.Route{directAt("08:31"), directAt("09:31"), directAt("10:31"), directAt("11:31")}
	lookup := &fakeRoutes{}
	h := &routingAlternativeHandler{deps: testDeps(lookup)}

	data := negotiationData(t, routes)
	data.Routing.CurrentAlternatives = routes[1:4]
	data.Routing.AlternativeCount = 3

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "none"},
		State:   conversation.StateAwaitingRoutingAlternative,
		Data:    data,
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.StateError, result.Next)
	require.Len(t, result.Replies, 1)
	assert.Contains(t, result.Replies[0], "escalating")
	assert.Empty(t, lookup.calls, "a fourth round must never be fetched")

	require.Len(t, result.Events, 1)
	event := result.Events[0]
	assert.Equal(t, outbox.EventRoutingEscalation, event.EventType)

	var payload outbox.RoutingEscalationPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, "LNER-08:31", payload.JourneyID)
	assert.Equal(t, "+447700900001", payload.Identity)
	assert.Equal(t, 3, payload.Rounds)
}

func TestSelectionCommitsRoute(t *testing.T) {
	t.Parallel()

	routes := []journey.Route{directAt("08:31"), directAt("09:31"), directAt("10:31"), directAt("11:31")}
	h := &routingAlternativeHandler{deps: testDeps(&fakeRoutes{})}

	data := negotiationData(t, routes)
	data.Routing.CurrentAlternatives = routes[1:4]
	data.Routing.AlternativeCount = 1

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "2"},
		State:   conversation.StateAwaitingRoutingAlternative,
		Data:    data,
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.StateAwaitingTicketUpload, result.Next)
	require.NotNil(t, result.Data.Claim.Matched)
	assert.Equal(t, "10:31", result.Data.Claim.Matched.Departure())
	assert.Equal(t, "LNER-10:31", result.Data.Claim.JourneyID)
	assert.Nil(t, result.Data.Routing)
}

func TestSelectionOutOfRangeDoesNotConsumeARound(t *testing.T) {
	t.Parallel()

	routes := []journey.Route{directAt("08:31"), directAt("09:31"), directAt("10:31"), directAt("11:31")}
	h := &routingAlternativeHandler{deps: testDeps(&fakeRoutes{})}

	data := negotiationData(t, routes)
	data.Routing.CurrentAlternatives = routes[1:4]
	data.Routing.AlternativeCount = 1

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "5"},
		State:   conversation.StateAwaitingRoutingAlternative,
		Data:    data,
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.State(""), result.Next)
	assert.Equal(t, 1, result.Data.Routing.AlternativeCount)
	require.Len(t, result.Replies, 1)
	assert.Contains(t, result.Replies[0], "only 3 options")
}

func TestRoutingConfirmYesAdvancesToUpload(t *testing.T) {
	t.Parallel()

	routes := []journey.Route{directAt("08:31"), directAt("09:31")}
	h := &routingConfirmHandler{deps: testDeps(&fakeRoutes{})}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "yes"},
		State:   conversation.StateAwaitingRoutingConfirm,
		Data:    negotiationData(t, routes),
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.StateAwaitingTicketUpload, result.Next)
	assert.Nil(t, result.Data.Routing)
	require.NotNil(t, result.Data.Claim.Matched)
	assert.Equal(t, "08:31", result.Data.Claim.Matched.Departure())
}

func TestRoutingConfirmSingleCandidateNeverDeadEnds(t *testing.T) {
	t.Parallel()

	routes := []journey.Route{directAt("08:31")}
	h := &routingConfirmHandler{deps: testDeps(&fakeRoutes{routes: routes})}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "no"},
		State:   conversation.StateAwaitingRoutingConfirm,
		Data:    negotiationData(t, routes),
	})
	require.NoError(t, err)

	// Stays in confirmation rather than offering an empty round.
	assert.Equal(t, conversation.State(""), result.Next)
	require.Len(t, result.Replies, 1)
	assert.Contains(t, result.Replies[0], "only service")
}

func TestRoutingConfirmMissingListFallsBackToLookup(t *testing.T) {
	t.Parallel()

	routes := []journey.Route{directAt("08:31"), directAt("09:31"), directAt("10:31"), directAt("11:31")}
	lookup := &fakeRoutes{routes: routes}
	h := &routingConfirmHandler{deps: testDeps(lookup)}

	data := negotiationData(t, routes)
	data.Routing.AllRoutes = nil

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "no"},
		State:   conversation.StateAwaitingRoutingConfirm,
		Data:    data,
	})
	require.NoError(t, err)

	require.Len(t, lookup.calls, 1)
	assert.Equal(t, 0, lookup.calls[0].Offset)
	assert.Equal(t, conversation.StateAwaitingRoutingAlternative, result.Next)
	assert.Equal(t, []string{"09:31", "10:31", "11:31"}, departures(result.Data.Routing.CurrentAlternatives))
}

func TestJourneyConfirmYes(t *testing.T) {
	t.Parallel()

	routes := []journey.Route{directAt("08:31")}
	h := &journeyConfirmHandler{}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "yes"},
		State:   conversation.StateAwaitingJourneyConfirm,
		Data:    negotiationData(t, routes),
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.StateAwaitingTicketUpload, result.Next)
}

func TestJourneyConfirmNoRestartsEntry(t *testing.T) {
	t.Parallel()

	routes := []journey.Route{directAt("08:31")}
	h := &journeyConfirmHandler{}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "no"},
		State:   conversation.StateAwaitingJourneyConfirm,
		Data:    negotiationData(t, routes),
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.StateAwaitingJourneyDate, result.Next)
	assert.Nil(t, result.Data.Claim.Matched)
	assert.Nil(t, result.Data.Routing)
}

func TestRoutingAlternativeCorruptedSessionErrors(t *testing.T) {
	t.Parallel()

	h := &routingAlternativeHandler{deps: testDeps(&fakeRoutes{})}

	_, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "1"},
		State:   conversation.StateAwaitingRoutingAlternative,
		Data:    session.New(),
	})
	require.ErrorIs(t, err, session.ErrMissingContext)
}
