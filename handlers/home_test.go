package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearrail/claimflow/conversation"
	"github.com/clearrail/claimflow/httpclient"
	"github.com/clearrail/claimflow/services"
	"github.com/clearrail/claimflow/session"
)

func authenticatedData() session.Data {
	data := session.New()
	data.EnsureAuth().VerifiedAt = testDeps(nil).Now()
	return data
}

func TestHomeClaimStartsFreshFlow(t *testing.T) {
	t.Parallel()

	h := &homeHandler{deps: testDeps(&fakeRoutes{})}

	// Leftovers from an abandoned claim.
	data := authenticatedData()
	data.EnsureClaim().Origin = "KGX"
	data.EnsureRouting().AlternativeCount = 2

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "CLAIM"},
		State:   conversation.StateAuthenticated,
		Data:    data,
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.StateAwaitingJourneyDate, result.Next)
	assert.Nil(t, result.Data.Claim)
	assert.Nil(t, result.Data.Routing)
	// Auth phase survives the reset.
	require.NotNil(t, result.Data.Auth)
}

func TestHomeStatus(t *testing.T) {
	t.Parallel()

	deps := testDeps(&fakeRoutes{})
	deps.Tracking = &fakeTracking{status: services.ClaimStatus{Reference: "TRK-1234", Status: "approved"}}
	h := &homeHandler{deps: deps}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "status"},
		State:   conversation.StateAuthenticated,
		Data:    authenticatedData(),
	})
	require.NoError(t, err)

	require.Len(t, result.Replies, 1)
	assert.Contains(t, result.Replies[0], "TRK-1234")
	assert.Contains(t, result.Replies[0], "approved")
}

func TestHomeStatusNoClaimsYet(t *testing.T) {
	t.Parallel()

	deps := testDeps(&fakeRoutes{})
	deps.Tracking = &fakeTracking{statusErr: &httpclient.StatusError{Code: 404}}
	h := &homeHandler{deps: deps}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "status"},
		State:   conversation.StateAuthenticated,
		Data:    authenticatedData(),
	})
	require.NoError(t, err)

	require.Len(t, result.Replies, 1)
	assert.Contains(t, result.Replies[0], "don't have any claims")
}

// Logout is the engine's job: the handler only raises the Clear flag,
// clearing the store itself as well would delete the session twice.
func TestHomeLogoutClearsSession(t *testing.T) {
	t.Parallel()

	h := &homeHandler{deps: testDeps(&fakeRoutes{})}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "logout"},
		State:   conversation.StateAuthenticated,
		Data:    authenticatedData(),
	})
	require.NoError(t, err)

	assert.True(t, result.Clear)
	require.Len(t, result.Replies, 1)
	assert.Contains(t, result.Replies[0], "signed out")
}

func TestHomeUnknownInputShowsMenu(t *testing.T) {
	t.Parallel()

	h := &homeHandler{deps: testDeps(&fakeRoutes{})}

	result, err := h.Handle(context.Background(), conversation.HandlerContext{
		Request: conversation.Request{Identity: "+447700900001", Text: "what?"},
		State:   conversation.StateAuthenticated,
		Data:    authenticatedData(),
	})
	require.NoError(t, err)

	assert.Equal(t, conversation.State(""), result.Next)
	require.Len(t, result.Replies, 1)
	assert.Contains(t, result.Replies[0], "CLAIM")
}

func TestErrorHandlerAlwaysRecovers(t *testing.T) {
	t.Parallel()

	h := &errorHandler{}

	for _, text := range []string{"", "help", "asdfgh"} {
		result, err := h.Handle(context.Background(), conversation.HandlerContext{
			Request: conversation.Request{Identity: "+447700900001", Text: text},
			State:   conversation.StateError,
			Data:    authenticatedData(),
		})
		require.NoError(t, err)
		assert.Equal(t, conversation.StateAuthenticated, result.Next)
		assert.Empty(t, result.Events)
	}
}

func TestNewDispatcherIsTotal(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testDeps(&fakeRoutes{}))
	require.NoError(t, d.Validate())

	for _, state := range conversation.AllStates() {
		h, err := d.Resolve(state)
		require.NoError(t, err, state)
		assert.NotNil(t, h, state)
	}
}
