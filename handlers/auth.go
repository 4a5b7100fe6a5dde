package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/clearrail/claimflow/conversation"
	"github.com/clearrail/claimflow/logger"
	"github.com/clearrail/claimflow/outbox"
)

const maxOTPAttempts = 3

// errNoPendingOTP means the session reached the verification state without
// a code ever being issued, i.e. a corrupted session.
var errNoPendingOTP = errors.New("no pending verification code in session")

// startHandler greets a first-time identity and asks for terms acceptance.
// The message body is ignored; whatever the user said, the dialogue starts
// the same way.
type startHandler struct{}

func (h *startHandler) Handle(_ context.Context, hc conversation.HandlerContext) (conversation.Result, error) {
	return conversation.Result{
		Replies: []string{
			"Welcome to ClearRail delay compensation. Before we start, please accept our terms of service: https://clearrail.example/terms",
			"Reply YES to accept, or NO to leave it here.",
		},
		Next: conversation.StateAwaitingTerms,
		Data: hc.Data,
	}, nil
}

// termsHandler waits for terms acceptance and, on YES, issues a one-time
// code. Only the code's hash is stored; delivery happens through the
// outbox so the SMS sender failing never loses the state transition.
type termsHandler struct {
	deps Deps
}

func (h *termsHandler) Handle(ctx context.Context, hc conversation.HandlerContext) (conversation.Result, error) {
	yes, ok := parseYesNo(hc.Text)
	if !ok {
		return conversation.Result{
			Replies: []string{"Please reply YES to accept the terms, or NO to stop."},
			Data:    hc.Data,
		}, nil
	}

	if !yes {
		return conversation.Result{
			Replies: []string{"No problem. If you change your mind, just reply YES."},
			Data:    hc.Data,
		}, nil
	}

	code, err := h.deps.NewOTP()
	if err != nil {
		return conversation.Result{}, fmt.Errorf("generating verification code: %w", err)
	}

	data := hc.Data.Clone()
	auth := data.EnsureAuth()
	auth.TermsAcceptedAt = h.deps.Now().UTC()
	auth.OTPHash = hashOTP(code)
	auth.OTPAttempts = 0

	event, err := outbox.New(outbox.AggregateUser, hc.Identity, outbox.EventOTPRequested, outbox.OTPRequestedPayload{
		Identity:      hc.Identity,
		Code:          code,
		SchemaVersion: 1,
	})
	if err != nil {
		return conversation.Result{}, err
	}

	return conversation.Result{
		Replies: []string{"Thanks! We've sent a 6-digit verification code to this number. Please enter it to continue."},
		Next:    conversation.StateAwaitingOTP,
		Data:    data,
		Events:  []outbox.Event{event},
	}, nil
}

// otpHandler verifies the one-time code. Malformed input re-prompts for
// free; a well-formed wrong code burns one of three attempts.
type otpHandler struct {
	deps Deps
}

func (h *otpHandler) Handle(ctx context.Context, hc conversation.HandlerContext) (conversation.Result, error) {
	data := hc.Data.Clone()
	auth := data.EnsureAuth()

	if auth.OTPHash == "" {
		return conversation.Result{}, fmt.Errorf("verifying code: %w", errNoPendingOTP)
	}

	if !isOTPShaped(hc.Text) {
		return conversation.Result{
			Replies: []string{"That doesn't look like a code. Please enter the 6 digits we sent you."},
			Data:    hc.Data,
		}, nil
	}

	if subtle.ConstantTimeCompare([]byte(hashOTP(strings.TrimSpace(hc.Text))), []byte(auth.OTPHash)) != 1 {
		auth.OTPAttempts++
		if auth.OTPAttempts >= maxOTPAttempts {
			logger.Get(ctx).Warn("verification attempts exhausted", "attempts", auth.OTPAttempts)

			return conversation.Result{
				Replies: []string{"That code isn't right and you're out of attempts. Our support team can help: https://clearrail.example/support"},
				Next:    conversation.StateError,
				Data:    data,
			}, nil
		}

		remaining := maxOTPAttempts - auth.OTPAttempts

		return conversation.Result{
			Replies: []string{fmt.Sprintf("That code isn't right. %d attempt(s) left.", remaining)},
			Data:    data,
		}, nil
	}

	auth.OTPHash = ""
	auth.OTPAttempts = 0
	auth.VerifiedAt = h.deps.Now().UTC()

	event, err := outbox.New(outbox.AggregateUser, hc.Identity, outbox.EventUserRegistered, outbox.UserRegisteredPayload{
		Identity:      hc.Identity,
		SchemaVersion: 1,
	})
	if err != nil {
		return conversation.Result{}, err
	}

	return conversation.Result{
		Replies: []string{
			"You're verified!",
			homeMenu,
		},
		Next:   conversation.StateAuthenticated,
		Data:   data,
		Events: []outbox.Event{event},
	}, nil
}

func hashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// generateOTP draws a uniform 6-digit code from crypto/rand.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%06d", n.Int64()), nil
}
