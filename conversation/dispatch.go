package conversation

import "fmt"

// Dispatcher binds one handler to each state. The struct has exactly one
// field per enumeration member, and Validate refuses a nil field, so a
// missing registration is caught at startup rather than on the first
// message that reaches the state.
type Dispatcher struct {
	Start              Handler
	AwaitingTerms      Handler
	AwaitingOTP        Handler
	Authenticated      Handler
	JourneyDate        Handler
	JourneyStations    Handler
	JourneyTime        Handler
	JourneyConfirm     Handler
	RoutingConfirm     Handler
	RoutingAlternative Handler
	TicketUpload       Handler
	Error              Handler
}

// ErrNotRegistered reports a state with no bound handler. Seeing this in
// production means Validate was skipped at startup.
type ErrNotRegistered struct {
	State State
}

func (e *ErrNotRegistered) Error() string {
	return fmt.Sprintf("no handler registered for state %s", e.State)
}

// Validate checks that every state has a handler. Call it once at startup
// and fail fast on error.
func (d *Dispatcher) Validate() error {
	for _, state := range AllStates() {
		if h, err := d.Resolve(state); err != nil || h == nil {
			return &ErrNotRegistered{State: state}
		}
	}
	return nil
}

// Resolve returns the handler for state. It is a pure lookup: no side
// effects, no store access.
func (d *Dispatcher) Resolve(state State) (Handler, error) {
	var h Handler

	switch state {
	case StateStart:
		h = d.Start
	case StateAwaitingTerms:
		h = d.AwaitingTerms
	case StateAwaitingOTP:
		h = d.AwaitingOTP
	case StateAuthenticated:
		h = d.Authenticated
	case StateAwaitingJourneyDate:
		h = d.JourneyDate
	case StateAwaitingJourneyStations:
		h = d.JourneyStations
	case StateAwaitingJourneyTime:
		h = d.JourneyTime
	case StateAwaitingJourneyConfirm:
		h = d.JourneyConfirm
	case StateAwaitingRoutingConfirm:
		h = d.RoutingConfirm
	case StateAwaitingRoutingAlternative:
		h = d.RoutingAlternative
	case StateAwaitingTicketUpload:
		h = d.TicketUpload
	case StateError:
		h = d.Error
	default:
		return nil, &ErrNotRegistered{State: state}
	}

	if h == nil {
		return nil, &ErrNotRegistered{State: state}
	}

	return h, nil
}
