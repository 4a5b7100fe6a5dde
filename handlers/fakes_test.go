package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/clearrail/claimflow/journey"
	"github.com/clearrail/claimflow/services"
)

type fakeRoutes struct {
	calls  []services.RouteQuery
	routes []journey.Route
	err    error
}

func (f *fakeRoutes) FindRoutes(_ context.Context, q services.RouteQuery) ([]journey.Route, error) {
	f.calls = append(f.calls, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.routes, nil
}

type fakeEligibility struct {
	verdict journey.Eligibility
	err     error
}

func (f *fakeEligibility) CheckEligibility(_ context.Context, _, _ string) (journey.Eligibility, error) {
	return f.verdict, f.err
}

type fakeTracking struct {
	trackRef  string
	trackErr  error
	status    services.ClaimStatus
	statusErr error
}

func (f *fakeTracking) Track(_ context.Context, _, _ string) (string, error) {
	return f.trackRef, f.trackErr
}

func (f *fakeTracking) Status(_ context.Context, _ string) (services.ClaimStatus, error) {
	return f.status, f.statusErr
}

func testDeps(routes *fakeRoutes) Deps {
	return Deps{
		Routes:      routes,
		Eligibility: &fakeEligibility{},
		Tracking:    &fakeTracking{},
		NewOTP:      func() (string, error) { return "123456", nil },
		Now:         func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) },
	}
}

// directAt builds a single-leg route departing at hhmm with a trip id
// derived from the departure time.
func directAt(hhmm string) journey.Route {
	return journey.Route{
		Legs: []journey.Leg{{
			From:      "KGX",
			To:        "YRK",
			Departure: hhmm,
			Arrival:   "10:06",
			Operator:  "LNER",
			TripID:    fmt.Sprintf("LNER-%s", hhmm),
		}},
		DurationMinutes: 95,
	}
}
