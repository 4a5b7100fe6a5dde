package handlers

import (
	"context"
	"fmt"

	"github.com/clearrail/claimflow/conversation"
	"github.com/clearrail/claimflow/logger"
	"github.com/clearrail/claimflow/outbox"
	"github.com/clearrail/claimflow/session"
)

// ticketUploadHandler finishes the claim: it needs an attached ticket
// image, runs the eligibility check, registers the claim for tracking and
// emits the submission event. Both downstream calls can be retried by
// just re-sending the photo.
type ticketUploadHandler struct {
	deps Deps
}

func (h *ticketUploadHandler) Handle(ctx context.Context, hc conversation.HandlerContext) (conversation.Result, error) {
	claim, err := hc.Data.RequireClaim()
	if err != nil {
		return conversation.Result{}, fmt.Errorf("ticket upload: %w", err)
	}
	if claim.JourneyID == "" || claim.Date == "" {
		return conversation.Result{}, fmt.Errorf("ticket upload: %w", session.ErrMissingContext)
	}

	if hc.MediaURL == "" {
		return conversation.Result{
			Replies: []string{"I need a photo of your ticket to submit the claim. Please send one as an attachment."},
			Data:    hc.Data,
		}, nil
	}

	log := logger.Get(ctx)

	verdict, err := h.deps.Eligibility.CheckEligibility(ctx, claim.JourneyID, claim.Date)
	if err != nil {
		log.Warn("eligibility check failed", "journey_id", claim.JourneyID, "error", err)

		return conversation.Result{
			Replies: []string{"We couldn't check your claim just now. Please send the photo again in a moment."},
			Data:    hc.Data,
		}, nil
	}

	trackingRef, err := h.deps.Tracking.Track(ctx, claim.JourneyID, hc.Identity)
	if err != nil {
		log.Warn("tracking registration failed", "journey_id", claim.JourneyID, "error", err)

		return conversation.Result{
			Replies: []string{"We couldn't register your claim just now. Please send the photo again in a moment."},
			Data:    hc.Data,
		}, nil
	}

	data := hc.Data.Clone()
	committed := data.EnsureClaim()
	committed.TicketRef = hc.MediaURL

	event, err := outbox.New(outbox.AggregateJourney, claim.JourneyID, outbox.EventClaimSubmitted, outbox.ClaimSubmittedPayload{
		JourneyID:     claim.JourneyID,
		Identity:      hc.Identity,
		TicketRef:     hc.MediaURL,
		Eligible:      verdict.Eligible,
		Amount:        verdict.Amount,
		SchemaVersion: 1,
	})
	if err != nil {
		return conversation.Result{}, err
	}

	replies := []string{submissionReply(verdict.Eligible, verdict.Amount, verdict.Reason, trackingRef), homeMenu}

	return conversation.Result{
		Replies: replies,
		Next:    conversation.StateAuthenticated,
		Data:    data,
		Events:  []outbox.Event{event},
	}, nil
}

func submissionReply(eligible bool, amount, reason, trackingRef string) string {
	if eligible {
		if amount != "" {
			return fmt.Sprintf("Your claim is in! Estimated compensation: %s. Track it with reference %s.", amount, trackingRef)
		}

		return fmt.Sprintf("Your claim is in! Track it with reference %s.", trackingRef)
	}

	if reason != "" {
		return fmt.Sprintf("We've recorded your claim (reference %s), but it doesn't look eligible: %s. Our team will double-check.", trackingRef, reason)
	}

	return fmt.Sprintf("We've recorded your claim (reference %s), but it doesn't look eligible. Our team will double-check.", trackingRef)
}
