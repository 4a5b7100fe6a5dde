// Package conversation implements the per-user dialogue machine: a closed
// state enumeration, one handler per state, and an engine that runs exactly
// one handler per inbound message and commits the resulting transition
// together with any emitted events.
package conversation

// State identifies one node of the dialogue machine. The set is closed:
// dispatch is an exhaustive switch over these values, so an unhandled state
// is unreachable by construction.
type State string

const (
	// StateStart is the implicit state of an identity that has never
	// messaged before.
	StateStart State = "START"

	StateAwaitingTerms State = "AWAITING_TERMS"
	StateAwaitingOTP   State = "AWAITING_OTP"

	// StateAuthenticated is the re-entrant home state. New claims,
	// status checks, help and logout all start here.
	StateAuthenticated State = "AUTHENTICATED"

	StateAwaitingJourneyDate     State = "AWAITING_JOURNEY_DATE"
	StateAwaitingJourneyStations State = "AWAITING_JOURNEY_STATIONS"
	StateAwaitingJourneyTime     State = "AWAITING_JOURNEY_TIME"
	StateAwaitingJourneyConfirm  State = "AWAITING_JOURNEY_CONFIRM"

	StateAwaitingRoutingConfirm     State = "AWAITING_ROUTING_CONFIRM"
	StateAwaitingRoutingAlternative State = "AWAITING_ROUTING_ALTERNATIVE"

	StateAwaitingTicketUpload State = "AWAITING_TICKET_UPLOAD"

	// StateError is the recovery state. Its handler ignores the message
	// body and always returns the user to StateAuthenticated.
	StateError State = "ERROR"
)

// AllStates lists every member of the enumeration, in graph order. Tests
// use it to prove dispatch totality.
func AllStates() []State {
	return []State{
		StateStart,
		StateAwaitingTerms,
		StateAwaitingOTP,
		StateAuthenticated,
		StateAwaitingJourneyDate,
		StateAwaitingJourneyStations,
		StateAwaitingJourneyTime,
		StateAwaitingJourneyConfirm,
		StateAwaitingRoutingConfirm,
		StateAwaitingRoutingAlternative,
		StateAwaitingTicketUpload,
		StateError,
	}
}

// Valid reports whether s is a member of the enumeration.
func (s State) Valid() bool {
	switch s {
	case StateStart, StateAwaitingTerms, StateAwaitingOTP, StateAuthenticated,
		StateAwaitingJourneyDate, StateAwaitingJourneyStations, StateAwaitingJourneyTime,
		StateAwaitingJourneyConfirm, StateAwaitingRoutingConfirm, StateAwaitingRoutingAlternative,
		StateAwaitingTicketUpload, StateError:
		return true
	}
	return false
}

func (s State) String() string {
	return string(s)
}
