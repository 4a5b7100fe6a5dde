package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clearrail/claimflow/conversation"
	"github.com/clearrail/claimflow/httpclient"
	"github.com/clearrail/claimflow/journey"
	"github.com/clearrail/claimflow/logger"
	"github.com/clearrail/claimflow/services"
	"github.com/clearrail/claimflow/session"
)

// journeyDateHandler collects the travel date.
type journeyDateHandler struct {
	deps Deps
}

func (h *journeyDateHandler) Handle(_ context.Context, hc conversation.HandlerContext) (conversation.Result, error) {
	date, err := parseDate(hc.Text, h.deps.Now())
	if err != nil {
		return conversation.Result{
			Replies: []string{"Sorry, I didn't catch that date. Please use DD/MM/YYYY, e.g. 12/08/2026. The journey must be in the past."},
			Data:    hc.Data,
		}, nil
	}

	data := hc.Data.Clone()
	data.EnsureClaim().Date = date

	return conversation.Result{
		Replies: []string{"Got it. Which stations did you travel between? E.g. \"KGX to YRK\"."},
		Next:    conversation.StateAwaitingJourneyStations,
		Data:    data,
	}, nil
}

// journeyStationsHandler collects the origin and destination pair.
type journeyStationsHandler struct{}

func (h *journeyStationsHandler) Handle(_ context.Context, hc conversation.HandlerContext) (conversation.Result, error) {
	origin, destination, err := parseStations(hc.Text)
	if err != nil {
		return conversation.Result{
			Replies: []string{"Please tell me both stations, like \"KGX to YRK\"."},
			Data:    hc.Data,
		}, nil
	}

	if hc.Data.Claim == nil || hc.Data.Claim.Date == "" {
		return conversation.Result{}, fmt.Errorf("station entry: %w", session.ErrMissingContext)
	}

	data := hc.Data.Clone()
	claim := data.EnsureClaim()
	claim.Origin = origin
	claim.Destination = destination

	return conversation.Result{
		Replies: []string{"And roughly what time did your train depart? (HH:MM, 24-hour)"},
		Next:    conversation.StateAwaitingJourneyTime,
		Data:    data,
	}, nil
}

// journeyTimeHandler collects the departure time and performs the route
// lookup. This is the only place the ranked candidate list is fetched;
// the confirmation states downstream interpret what was matched here.
type journeyTimeHandler struct {
	deps Deps
}

func (h *journeyTimeHandler) Handle(ctx context.Context, hc conversation.HandlerContext) (conversation.Result, error) {
	clock, err := parseClock(hc.Text)
	if err != nil {
		return conversation.Result{
			Replies: []string{"Please give me the departure time as HH:MM, e.g. 08:30."},
			Data:    hc.Data,
		}, nil
	}

	if hc.Data.Claim == nil || hc.Data.Claim.Date == "" || hc.Data.Claim.Origin == "" || hc.Data.Claim.Destination == "" {
		return conversation.Result{}, fmt.Errorf("time entry: %w", session.ErrMissingContext)
	}

	data := hc.Data.Clone()
	claim := data.EnsureClaim()
	claim.Time = clock

	routes, err := h.deps.Routes.FindRoutes(ctx, services.RouteQuery{
		From: claim.Origin,
		To:   claim.Destination,
		Date: claim.Date,
		Time: claim.Time,
	})
	if err != nil {
		logger.Get(ctx).Warn("route lookup failed", "error", err)

		// Stay in the time-entry state so another message retries.
		if httpclient.IsTimeout(err) {
			return conversation.Result{
				Replies: []string{"The route search is taking longer than expected. Please send the time again in a moment."},
				Data:    hc.Data,
			}, nil
		}

		return conversation.Result{
			Replies: []string{"We couldn't search for your train just now. Please send the time again in a moment."},
			Data:    hc.Data,
		}, nil
	}

	if len(routes) == 0 {
		return conversation.Result{
			Replies: []string{fmt.Sprintf("We found no %s to %s services around %s on %s. Double-check the time and try again.", claim.Origin, claim.Destination, claim.Time, claim.Date)},
			Data:    hc.Data,
		}, nil
	}

	top := routes[0]
	claim.Matched = &top
	claim.JourneyID = journeyID(top)

	if len(routes) == 1 && top.TripID() != "" {
		// Exact scheduled match: confirm it directly.
		return conversation.Result{
			Replies: []string{fmt.Sprintf("Found your train: %s. Is that the one? (yes/no)", top.Summary())},
			Next:    conversation.StateAwaitingJourneyConfirm,
			Data:    data,
		}, nil
	}

	routing := data.EnsureRouting()
	routing.AllRoutes = routes
	routing.CurrentAlternatives = nil
	routing.AlternativeCount = 0

	return conversation.Result{
		Replies: []string{fmt.Sprintf("The closest match is: %s. Is that your train? (yes/no)", top.Summary())},
		Next:    conversation.StateAwaitingRoutingConfirm,
		Data:    data,
	}, nil
}

// journeyID returns the route's scheduled trip id, or mints one when the
// candidate has none so downstream events always carry an identifier.
func journeyID(r journey.Route) string {
	if id := r.TripID(); id != "" {
		return id
	}

	return "JNY-" + uuid.New().String()
}
