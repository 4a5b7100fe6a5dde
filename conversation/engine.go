package conversation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clearrail/claimflow/logger"
	"github.com/clearrail/claimflow/outbox"
	"github.com/clearrail/claimflow/session"
)

// Store is the persistence the engine needs. Load returns StateStart and a
// zero-value session for an identity that has never messaged before.
// Commit persists the transition and appends the events as one logical
// write, so a recorded transition always carries its events.
type Store interface {
	Load(ctx context.Context, identity string) (State, session.Data, error)
	Commit(ctx context.Context, identity string, state State, data session.Data, events []outbox.Event) error
	Clear(ctx context.Context, identity string) error
}

// failureReply is sent when a handler returns an error the engine has to
// absorb. The user's session data is kept so no progress is lost.
const failureReply = "Sorry, something went wrong on our side. Your progress is saved, send any message to continue."

// Engine runs exactly one handler per inbound message: load the identity's
// state, resolve the handler, run it, commit the result. Messages for
// different identities are independent; the engine holds no per-identity
// mutable state of its own.
type Engine struct {
	store      Store
	dispatcher *Dispatcher
	tracer     trace.Tracer
}

// NewEngine validates the dispatcher and builds an Engine.
func NewEngine(store Store, dispatcher *Dispatcher) (*Engine, error) {
	if err := dispatcher.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		store:      store,
		dispatcher: dispatcher,
		tracer:     otel.Tracer("claimflow/conversation"),
	}, nil
}

// Process handles one inbound message and returns the replies to send.
// Handler failures do not surface to the channel layer: the session is
// parked in the error state and a generic apology is returned instead.
func (e *Engine) Process(ctx context.Context, req Request) ([]string, error) {
	ctx = logger.WithIdentity(ctx, req.Identity)
	log := logger.Get(ctx)

	ctx, span := e.tracer.Start(ctx, "conversation.process",
		trace.WithAttributes(attribute.String("message.id", req.MessageID)))
	defer span.End()

	start := time.Now()

	state, data, err := e.store.Load(ctx, req.Identity)
	if err != nil {
		span.SetStatus(codes.Error, "load")
		metricMessages.WithLabelValues(state.String(), "load_error").Inc()
		return nil, err
	}

	span.SetAttributes(attribute.String("conversation.state", state.String()))

	handler, err := e.dispatcher.Resolve(state)
	if err != nil {
		// Validate at startup makes this unreachable; if it fires
		// anyway we fail loudly rather than guessing a default.
		span.SetStatus(codes.Error, "dispatch")
		metricMessages.WithLabelValues(state.String(), "dispatch_error").Inc()
		return nil, err
	}

	result, err := handler.Handle(ctx, HandlerContext{
		Request: req,
		State:   state,
		Data:    data,
	})
	if err != nil {
		return e.absorb(ctx, req, state, data, err, span, start)
	}

	if result.Clear {
		if err := e.store.Clear(ctx, req.Identity); err != nil {
			span.SetStatus(codes.Error, "clear")
			metricMessages.WithLabelValues(state.String(), "commit_error").Inc()
			return nil, err
		}

		metricMessages.WithLabelValues(state.String(), "ok").Inc()
		log.Info("session cleared", "state", state)

		return result.Replies, nil
	}

	next := result.Next
	if next == "" {
		next = state
	}

	if err := e.store.Commit(ctx, req.Identity, next, result.Data, result.Events); err != nil {
		span.SetStatus(codes.Error, "commit")
		metricMessages.WithLabelValues(state.String(), "commit_error").Inc()
		return nil, err
	}

	if next != state {
		metricTransitions.WithLabelValues(state.String(), next.String()).Inc()
	}
	metricMessages.WithLabelValues(state.String(), "ok").Inc()
	metricDuration.WithLabelValues(state.String()).Observe(time.Since(start).Seconds())

	log.Info("message handled",
		"state", state,
		"next", next,
		"events", len(result.Events))

	return result.Replies, nil
}

// absorb parks a failed session in the error state, keeping its data, and
// replies with a generic apology. Events from the failed handler are
// dropped: a handler that wants an event recorded on its failure path
// (e.g. an escalation) returns it in a successful Result instead.
func (e *Engine) absorb(ctx context.Context, req Request, state State, data session.Data, handlerErr error, span trace.Span, start time.Time) ([]string, error) {
	log := logger.Get(ctx)

	log.Error("handler failed",
		"state", state,
		"error", handlerErr)
	span.SetStatus(codes.Error, handlerErr.Error())
	metricMessages.WithLabelValues(state.String(), "handler_error").Inc()

	if err := e.store.Commit(ctx, req.Identity, StateError, data, nil); err != nil {
		log.Error("committing error state", "error", err)
		return nil, err
	}

	metricTransitions.WithLabelValues(state.String(), StateError.String()).Inc()
	metricDuration.WithLabelValues(state.String()).Observe(time.Since(start).Seconds())

	return []string{failureReply}, nil
}
