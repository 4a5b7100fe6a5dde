package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/clearrail/claimflow/conversation"
	"github.com/clearrail/claimflow/httpclient"
	"github.com/clearrail/claimflow/logger"
)

const homeMenu = "What would you like to do? Reply CLAIM to start a new delay claim, STATUS to check your latest claim, HELP for help, or LOGOUT to sign out."

// homeHandler is the re-entrant hub every finished flow returns to.
type homeHandler struct {
	deps Deps
}

func (h *homeHandler) Handle(ctx context.Context, hc conversation.HandlerContext) (conversation.Result, error) {
	switch strings.ToLower(strings.TrimSpace(hc.Text)) {
	case "claim", "new claim":
		// A fresh claim starts from a clean slate; anything left over
		// from an abandoned flow would confuse the journey matching.
		data := hc.Data.Clone()
		data.Claim = nil
		data.Routing = nil

		return conversation.Result{
			Replies: []string{"Let's get your claim started. What date did you travel? (DD/MM/YYYY)"},
			Next:    conversation.StateAwaitingJourneyDate,
			Data:    data,
		}, nil

	case "status":
		return h.status(ctx, hc)

	case "help":
		return conversation.Result{
			Replies: []string{
				"I can help you claim compensation for delayed ClearRail journeys.",
				homeMenu,
			},
			Data: hc.Data,
		}, nil

	case "logout", "log out":
		// Result.Clear makes the engine drop the stored session; the
		// handler must not touch the store itself.
		return conversation.Result{
			Replies: []string{"You're signed out. Message us any time to start again."},
			Clear:   true,
		}, nil
	}

	return conversation.Result{
		Replies: []string{homeMenu},
		Data:    hc.Data,
	}, nil
}

func (h *homeHandler) status(ctx context.Context, hc conversation.HandlerContext) (conversation.Result, error) {
	claim, err := h.deps.Tracking.Status(ctx, hc.Identity)
	if err != nil {
		if httpclient.IsStatus(err, 404) {
			return conversation.Result{
				Replies: []string{"You don't have any claims yet. Reply CLAIM to start one."},
				Data:    hc.Data,
			}, nil
		}

		logger.Get(ctx).Warn("claim status lookup failed", "error", err)

		return conversation.Result{
			Replies: []string{"We can't reach the claims tracker right now. Please try again in a few minutes."},
			Data:    hc.Data,
		}, nil
	}

	return conversation.Result{
		Replies: []string{fmt.Sprintf("Your latest claim %s is currently: %s.", claim.Reference, claim.Status)},
		Data:    hc.Data,
	}, nil
}

// errorHandler is deliberately dumb: it ignores the message body, always
// apologizes, and always returns the user to the home state. The handler
// that caused the transition into the error state owns any escalation
// event; this one never emits.
type errorHandler struct{}

func (h *errorHandler) Handle(_ context.Context, hc conversation.HandlerContext) (conversation.Result, error) {
	return conversation.Result{
		Replies: []string{
			"Sorry, we hit a problem with your last request. If it keeps happening, our support team can help: https://clearrail.example/support",
			homeMenu,
		},
		Next: conversation.StateAuthenticated,
		Data: hc.Data,
	}, nil
}
