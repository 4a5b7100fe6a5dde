// Package handlers binds one handler to each dialogue state. Handlers are
// small structs over the downstream service interfaces; all user input
// parsing lives in parse.go so the handlers themselves read as the
// dialogue script.
package handlers

import (
	"time"

	"github.com/clearrail/claimflow/conversation"
	"github.com/clearrail/claimflow/services"
)

// Deps carries everything the handler set depends on. NewOTP and Now have
// working defaults and exist so tests can pin them.
type Deps struct {
	Routes      services.RouteFinder
	Eligibility services.EligibilityChecker
	Tracking    services.ClaimTracker

	NewOTP func() (string, error)
	Now    func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.NewOTP == nil {
		d.NewOTP = generateOTP
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	return d
}

// NewDispatcher wires the full handler set.
func NewDispatcher(deps Deps) *conversation.Dispatcher {
	deps = deps.withDefaults()

	return &conversation.Dispatcher{
		Start:              &startHandler{},
		AwaitingTerms:      &termsHandler{deps: deps},
		AwaitingOTP:        &otpHandler{deps: deps},
		Authenticated:      &homeHandler{deps: deps},
		JourneyDate:        &journeyDateHandler{deps: deps},
		JourneyStations:    &journeyStationsHandler{},
		JourneyTime:        &journeyTimeHandler{deps: deps},
		JourneyConfirm:     &journeyConfirmHandler{},
		RoutingConfirm:     &routingConfirmHandler{deps: deps},
		RoutingAlternative: &routingAlternativeHandler{deps: deps},
		TicketUpload:       &ticketUploadHandler{deps: deps},
		Error:              &errorHandler{},
	}
}
