// Package journey holds the domain types shared between the conversation
// handlers, the downstream service clients and the session store.
package journey

import (
	"fmt"
	"strings"
)

// Leg is one segment of a candidate route.
type Leg struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Departure string `json:"departure"` // HH:MM
	Arrival   string `json:"arrival"`   // HH:MM
	Operator  string `json:"operator"`
	TripID    string `json:"trip_id,omitempty"`
}

// Route is one ranked candidate returned by the route-lookup service.
type Route struct {
	Legs            []Leg `json:"legs"`
	DurationMinutes int   `json:"duration_minutes"`
}

// Departure returns the departure time of the first leg, or "" for an
// empty route.
func (r Route) Departure() string {
	if len(r.Legs) == 0 {
		return ""
	}

	return r.Legs[0].Departure
}

// Arrival returns the arrival time of the last leg, or "" for an empty
// route.
func (r Route) Arrival() string {
	if len(r.Legs) == 0 {
		return ""
	}

	return r.Legs[len(r.Legs)-1].Arrival
}

// Changes returns the number of transfers.
func (r Route) Changes() int {
	if len(r.Legs) <= 1 {
		return 0
	}

	return len(r.Legs) - 1
}

// Direct reports whether the route has a single leg.
func (r Route) Direct() bool {
	return len(r.Legs) == 1
}

// TripID returns the scheduled trip id when the route is a direct service
// with one, or "" otherwise. Only exact scheduled matches carry trip ids.
func (r Route) TripID() string {
	if r.Direct() {
		return r.Legs[0].TripID
	}

	return ""
}

// Summary renders a one-line human description of the route, e.g.
// "08:31 → 10:06, direct, 95 min" or "08:31 → 10:40, 2 changes, 129 min".
func (r Route) Summary() string {
	if len(r.Legs) == 0 {
		return "(no legs)"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%s → %s", r.Departure(), r.Arrival())

	switch r.Changes() {
	case 0:
		b.WriteString(", direct")
	case 1:
		b.WriteString(", 1 change")
	default:
		fmt.Fprintf(&b, ", %d changes", r.Changes())
	}

	fmt.Fprintf(&b, ", %d min", r.DurationMinutes)

	return b.String()
}

// Eligibility is the verdict of the compensation eligibility service. The
// business rules behind it are opaque to this system.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Amount   string `json:"amount,omitempty"` // formatted, e.g. "17.50 EUR"
	Reason   string `json:"reason,omitempty"`
}
