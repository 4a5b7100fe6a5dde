// Package outbox implements the transactional outbox: handlers return
// domain events, the engine appends them in the same commit as the state
// transition, and a background drainer publishes them at-least-once.
// Consumers deduplicate by event id.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the conversation handlers.
const (
	EventOTPRequested      = "user.otp_requested"
	EventUserRegistered    = "user.registered"
	EventClaimSubmitted    = "claim.submitted"
	EventRoutingEscalation = "journey.routing_escalation"
)

// Aggregate types.
const (
	AggregateUser    = "user"
	AggregateJourney = "journey"
)

// Event is one outbox ledger record. PublishedAt is nil until the drainer
// has delivered the event downstream; a nil PublishedAt means the event has
// not yet reached consumers.
type Event struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	PublishedAt   *time.Time      `json:"published_at,omitempty"`
}

// New creates an unpublished Event with a fresh id and a JSON-encoded
// payload.
func New(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encoding %s payload: %w", eventType, err)
	}

	return Event{
		ID:            uuid.New().String(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       encoded,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// OTPRequestedPayload is delivered to the SMS sender.
type OTPRequestedPayload struct {
	Identity      string `json:"identity"`
	Code          string `json:"code"`
	SchemaVersion int    `json:"schema_version"`
}

// UserRegisteredPayload marks a completed sign-in.
type UserRegisteredPayload struct {
	Identity      string `json:"identity"`
	SchemaVersion int    `json:"schema_version"`
}

// ClaimSubmittedPayload is consumed by the claims back office.
type ClaimSubmittedPayload struct {
	JourneyID     string `json:"journey_id"`
	Identity      string `json:"identity"`
	TicketRef     string `json:"ticket_ref"`
	Eligible      bool   `json:"eligible"`
	Amount        string `json:"amount,omitempty"`
	SchemaVersion int    `json:"schema_version"`
}

// RoutingEscalationPayload records an exhausted alternative negotiation:
// the user rejected every offered round and a human needs to take over.
type RoutingEscalationPayload struct {
	JourneyID     string `json:"journey_id"`
	Identity      string `json:"identity"`
	Rounds        int    `json:"rounds"`
	SchemaVersion int    `json:"schema_version"`
}
