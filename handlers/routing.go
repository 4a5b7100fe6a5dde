package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/clearrail/claimflow/conversation"
	"github.com/clearrail/claimflow/httpclient"
	"github.com/clearrail/claimflow/journey"
	"github.com/clearrail/claimflow/logger"
	"github.com/clearrail/claimflow/outbox"
	"github.com/clearrail/claimflow/services"
	"github.com/clearrail/claimflow/session"
)

// maxAlternativeRounds caps the negotiation: at most this many rounds of
// at most alternativesPerRound options before mandatory escalation.
const (
	maxAlternativeRounds = 3
	alternativesPerRound = 3
)

const uploadPrompt = "Great. Please send a photo of your ticket or booking confirmation to finish the claim."

// journeyConfirmHandler confirms an exact scheduled match. The lookup
// already happened during time entry; this handler only interprets the
// answer.
type journeyConfirmHandler struct{}

func (h *journeyConfirmHandler) Handle(_ context.Context, hc conversation.HandlerContext) (conversation.Result, error) {
	claim, err := hc.Data.RequireClaim()
	if err != nil {
		return conversation.Result{}, fmt.Errorf("journey confirmation: %w", err)
	}
	if claim.Matched == nil {
		return conversation.Result{}, fmt.Errorf("journey confirmation: %w", session.ErrMissingContext)
	}

	yes, ok := parseYesNo(hc.Text)
	if !ok {
		return conversation.Result{
			Replies: []string{fmt.Sprintf("Was %s your train? Please reply yes or no.", claim.Matched.Summary())},
			Data:    hc.Data,
		}, nil
	}

	if yes {
		return conversation.Result{
			Replies: []string{uploadPrompt},
			Next:    conversation.StateAwaitingTicketUpload,
			Data:    hc.Data,
		}, nil
	}

	// Wrong train and no ranked list to negotiate over: start the
	// journey entry over.
	data := hc.Data.Clone()
	data.Claim = &session.Claim{}
	data.Routing = nil

	return conversation.Result{
		Replies: []string{"No problem, let's try again. What date did you travel? (DD/MM/YYYY)"},
		Next:    conversation.StateAwaitingJourneyDate,
		Data:    data,
	}, nil
}

// routingConfirmHandler presents the top ranked candidate and, on
// rejection, opens the bounded alternative rounds.
type routingConfirmHandler struct {
	deps Deps
}

func (h *routingConfirmHandler) Handle(ctx context.Context, hc conversation.HandlerContext) (conversation.Result, error) {
	claim, err := hc.Data.RequireClaim()
	if err != nil {
		return conversation.Result{}, fmt.Errorf("routing confirmation: %w", err)
	}
	if claim.Matched == nil {
		return conversation.Result{}, fmt.Errorf("routing confirmation: %w", session.ErrMissingContext)
	}

	yes, ok := parseYesNo(hc.Text)
	if !ok {
		return conversation.Result{
			Replies: []string{fmt.Sprintf("Is %s your train? Please reply yes or no.", claim.Matched.Summary())},
			Data:    hc.Data,
		}, nil
	}

	if yes {
		data := hc.Data.Clone()
		data.Routing = nil

		return conversation.Result{
			Replies: []string{uploadPrompt},
			Next:    conversation.StateAwaitingTicketUpload,
			Data:    data,
		}, nil
	}

	data := hc.Data.Clone()
	routing := data.EnsureRouting()

	// A missing ranked list is treated like the single-candidate case:
	// refresh it from the lookup service instead of failing.
	if len(routing.AllRoutes) == 0 {
		routes, lookupErr := h.deps.Routes.FindRoutes(ctx, services.RouteQuery{
			From: claim.Origin,
			To:   claim.Destination,
			Date: claim.Date,
			Time: claim.Time,
		})
		if lookupErr != nil {
			logger.Get(ctx).Warn("refreshing candidate list failed", "error", lookupErr)

			return conversation.Result{
				Replies: []string{"We couldn't look for other services just now. Please reply no again in a moment, or yes to accept this one."},
				Data:    hc.Data,
			}, nil
		}
		routing.AllRoutes = routes
	}

	if len(routing.AllRoutes) <= 1 {
		return conversation.Result{
			Replies: []string{fmt.Sprintf("That's the only service we can find for that journey: %s. Reply yes to use it, or no if it still isn't right.", claim.Matched.Summary())},
			Data:    data,
		}, nil
	}

	// Skip the rejected top candidate; offer the next three.
	end := 1 + alternativesPerRound
	if end > len(routing.AllRoutes) {
		end = len(routing.AllRoutes)
	}
	routing.CurrentAlternatives = routing.AllRoutes[1:end]
	routing.AlternativeCount = 1

	return conversation.Result{
		Replies: []string{alternativesPrompt(routing.CurrentAlternatives)},
		Next:    conversation.StateAwaitingRoutingAlternative,
		Data:    data,
	}, nil
}

// routingAlternativeHandler runs the bounded rounds: a numbered pick
// commits that route, NONE fetches the next batch, and the third NONE
// escalates to a human.
type routingAlternativeHandler struct {
	deps Deps
}

func (h *routingAlternativeHandler) Handle(ctx context.Context, hc conversation.HandlerContext) (conversation.Result, error) {
	claim, err := hc.Data.RequireClaim()
	if err != nil {
		return conversation.Result{}, fmt.Errorf("routing alternatives: %w", err)
	}
	routing, err := hc.Data.RequireRouting()
	if err != nil {
		return conversation.Result{}, fmt.Errorf("routing alternatives: %w", err)
	}

	n, none, parseErr := parseSelection(hc.Text)
	if parseErr != nil {
		return conversation.Result{
			Replies: []string{fmt.Sprintf("Please reply with a number between 1 and %d, or NONE if none of these match.", len(routing.CurrentAlternatives))},
			Data:    hc.Data,
		}, nil
	}

	if !none {
		// Out-of-range numbers are input errors and do not consume a
		// round.
		if n > len(routing.CurrentAlternatives) {
			return conversation.Result{
				Replies: []string{fmt.Sprintf("There are only %d options. Please pick 1-%d, or reply NONE.", len(routing.CurrentAlternatives), len(routing.CurrentAlternatives))},
				Data:    hc.Data,
			}, nil
		}

		chosen := routing.CurrentAlternatives[n-1]

		data := hc.Data.Clone()
		committed := data.EnsureClaim()
		committed.Matched = &chosen
		committed.JourneyID = journeyID(chosen)
		data.Routing = nil

		return conversation.Result{
			Replies: []string{
				fmt.Sprintf("Locked in: %s.", chosen.Summary()),
				uploadPrompt,
			},
			Next: conversation.StateAwaitingTicketUpload,
			Data: data,
		}, nil
	}

	if routing.AlternativeCount >= maxAlternativeRounds {
		return h.escalate(ctx, hc, claim, routing)
	}

	offset := routing.AlternativeCount * alternativesPerRound
	batch, lookupErr := h.deps.Routes.FindRoutes(ctx, services.RouteQuery{
		From:   claim.Origin,
		To:     claim.Destination,
		Date:   claim.Date,
		Time:   claim.Time,
		Offset: offset,
	})
	if lookupErr != nil {
		logger.Get(ctx).Warn("alternative lookup failed", "offset", offset, "error", lookupErr)

		if httpclient.IsTimeout(lookupErr) {
			return conversation.Result{
				Replies: []string{"The search is taking longer than expected. Please reply NONE again in a moment."},
				Data:    hc.Data,
			}, nil
		}

		return conversation.Result{
			Replies: []string{"We couldn't fetch more options just now. Please reply NONE again in a moment."},
			Data:    hc.Data,
		}, nil
	}

	data := hc.Data.Clone()
	next := data.EnsureRouting()
	next.AlternativeCount = routing.AlternativeCount + 1

	if len(batch) == 0 {
		// Nothing further to offer; keep the current options on the
		// table. The round still counts, so the negotiation stays
		// finite.
		return conversation.Result{
			Replies: []string{fmt.Sprintf("We found no further services. Pick 1-%d from the options above, or reply NONE to have our team take over.", len(next.CurrentAlternatives))},
			Data:    data,
		}, nil
	}

	if len(batch) > alternativesPerRound {
		batch = batch[:alternativesPerRound]
	}
	next.CurrentAlternatives = batch

	return conversation.Result{
		Replies: []string{alternativesPrompt(batch)},
		Data:    data,
	}, nil
}

// escalate ends the negotiation: the escalation event is returned in the
// result so it lands in the same commit as the transition into the error
// state.
func (h *routingAlternativeHandler) escalate(ctx context.Context, hc conversation.HandlerContext, claim *session.Claim, routing *session.Routing) (conversation.Result, error) {
	logger.Get(ctx).Warn("routing negotiation exhausted",
		"journey_id", claim.JourneyID,
		"rounds", routing.AlternativeCount)

	event, err := outbox.New(outbox.AggregateJourney, claim.JourneyID, outbox.EventRoutingEscalation, outbox.RoutingEscalationPayload{
		JourneyID:     claim.JourneyID,
		Identity:      hc.Identity,
		Rounds:        routing.AlternativeCount,
		SchemaVersion: 1,
	})
	if err != nil {
		return conversation.Result{}, err
	}

	return conversation.Result{
		Replies: []string{"We couldn't pin down your train, so we're escalating this to our support team. They'll pick your claim up from here."},
		Next:    conversation.StateError,
		Data:    hc.Data,
		Events:  []outbox.Event{event},
	}, nil
}

func alternativesPrompt(routes []journey.Route) string {
	var b strings.Builder
	b.WriteString("Here are some other services that might match:\n")
	for i, r := range routes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Summary())
	}
	fmt.Fprintf(&b, "Reply 1-%d to pick one, or NONE if none of these match.", len(routes))

	return b.String()
}
