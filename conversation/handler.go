package conversation

import (
	"context"

	"github.com/clearrail/claimflow/outbox"
	"github.com/clearrail/claimflow/session"
)

// Request is one inbound message as delivered by the channel gateway.
type Request struct {
	// Identity is the channel-level user identifier, e.g. a phone number.
	Identity string

	// Text is the raw message body.
	Text string

	// MediaURL references an attachment, if the message carried one.
	MediaURL string

	// MessageID is the channel's identifier for this message.
	MessageID string
}

// HandlerContext is the input to a single handler invocation.
type HandlerContext struct {
	Request

	// State is the state the handler is registered for.
	State State

	// Data is the session context accumulated across turns. Handlers
	// clone it before mutating so the stored copy stays untouched on
	// failure paths.
	Data session.Data
}

// Result is what one handler invocation produces. Whatever Data it returns
// is what gets persisted, so handlers derive it from the input via
// session.Data.Clone to keep fields they do not touch.
type Result struct {
	// Replies are sent back to the user in order.
	Replies []string

	// Next is the state to transition to. The zero value means remain
	// in the current state.
	Next State

	// Data replaces the stored session context.
	Data session.Data

	// Clear drops the stored session entirely instead of committing
	// Data. Used by logout. Next and Data are ignored when set.
	Clear bool

	// Events are appended to the outbox in the same commit as the
	// transition.
	Events []outbox.Event
}

// Handler interprets one inbound message for one state.
type Handler interface {
	Handle(ctx context.Context, hc HandlerContext) (Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, hc HandlerContext) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, hc HandlerContext) (Result, error) {
	return f(ctx, hc)
}
