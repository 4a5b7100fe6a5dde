// Package session defines the typed, versioned conversation context that
// accumulates across dialogue turns. It replaces an open key/value map with
// explicit per-phase structures, so a handler cannot silently drop fields it
// never knew about: handlers Clone the incoming data, modify what they own
// and return the copy, and everything else survives by construction.
package session

import (
	"errors"
	"time"

	"github.com/clearrail/claimflow/journey"
)

// CurrentVersion is stamped on every new Data value. A later schema change
// bumps this and migrates on read.
const CurrentVersion = 1

// ErrMissingContext is returned by the Require helpers when a phase the
// handler depends on is absent. Handlers treat it as a corrupted session.
var ErrMissingContext = errors.New("session missing required context")

// Auth carries the sign-in phase.
type Auth struct {
	TermsAcceptedAt time.Time `json:"terms_accepted_at,omitzero"`
	OTPHash         string    `json:"otp_hash,omitempty"`
	OTPAttempts     int       `json:"otp_attempts,omitempty"`
	VerifiedAt      time.Time `json:"verified_at,omitzero"`
}

// Claim carries the claim being assembled across the journey-entry states.
type Claim struct {
	Date        string `json:"date,omitempty"` // YYYY-MM-DD
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	Time        string `json:"time,omitempty"` // HH:MM
	JourneyID   string `json:"journey_id,omitempty"`

	Matched   *journey.Route `json:"matched,omitempty"`
	TicketRef string         `json:"ticket_ref,omitempty"`
}

// Routing carries the bounded alternative-negotiation protocol.
type Routing struct {
	// AllRoutes is the full ranked candidate list from the first lookup,
	// kept so the first round of alternatives needs no second lookup.
	AllRoutes []journey.Route `json:"all_routes,omitempty"`
	// CurrentAlternatives is the subset currently offered (at most 3).
	CurrentAlternatives []journey.Route `json:"current_alternatives,omitempty"`
	// AlternativeCount is the number of rounds already shown (1-based,
	// capped at 3).
	AlternativeCount int `json:"alternative_count,omitempty"`
}

// Data is the per-identity dialogue context.
type Data struct {
	Version int      `json:"version"`
	Auth    *Auth    `json:"auth,omitempty"`
	Claim   *Claim   `json:"claim,omitempty"`
	Routing *Routing `json:"routing,omitempty"`
}

// New returns empty Data at the current schema version.
func New() Data {
	return Data{Version: CurrentVersion}
}

// Clone returns a deep copy. Handlers mutate the copy, never the original.
func (d Data) Clone() Data {
	out := Data{Version: d.Version}

	if d.Auth != nil {
		auth := *d.Auth
		out.Auth = &auth
	}

	if d.Claim != nil {
		claim := *d.Claim

		if d.Claim.Matched != nil {
			matched := *d.Claim.Matched
			matched.Legs = append([]journey.Leg(nil), d.Claim.Matched.Legs...)
			claim.Matched = &matched
		}

		out.Claim = &claim
	}

	if d.Routing != nil {
		out.Routing = &Routing{
			AllRoutes:           cloneRoutes(d.Routing.AllRoutes),
			CurrentAlternatives: cloneRoutes(d.Routing.CurrentAlternatives),
			AlternativeCount:    d.Routing.AlternativeCount,
		}
	}

	return out
}

func cloneRoutes(routes []journey.Route) []journey.Route {
	if routes == nil {
		return nil
	}

	out := make([]journey.Route, len(routes))
	for i, r := range routes {
		out[i] = r
		out[i].Legs = append([]journey.Leg(nil), r.Legs...)
	}

	return out
}

// EnsureAuth returns the Auth phase, creating it if absent.
func (d *Data) EnsureAuth() *Auth {
	if d.Auth == nil {
		d.Auth = &Auth{}
	}

	return d.Auth
}

// EnsureClaim returns the Claim phase, creating it if absent.
func (d *Data) EnsureClaim() *Claim {
	if d.Claim == nil {
		d.Claim = &Claim{}
	}

	return d.Claim
}

// EnsureRouting returns the Routing phase, creating it if absent.
func (d *Data) EnsureRouting() *Routing {
	if d.Routing == nil {
		d.Routing = &Routing{}
	}

	return d.Routing
}

// RequireClaim returns the Claim phase or ErrMissingContext when absent.
func (d Data) RequireClaim() (*Claim, error) {
	if d.Claim == nil {
		return nil, ErrMissingContext
	}

	return d.Claim, nil
}

// RequireRouting returns the Routing phase or ErrMissingContext when absent.
func (d Data) RequireRouting() (*Routing, error) {
	if d.Routing == nil {
		return nil, ErrMissingContext
	}

	return d.Routing, nil
}
