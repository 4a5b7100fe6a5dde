package services

import (
	"context"
	"fmt"

	"github.com/clearrail/claimflow/httpclient"
	"github.com/clearrail/claimflow/journey"
)

// EligibilityChecker asks the compensation service for a verdict on one
// journey. The business rules behind the verdict are owned entirely by
// that service.
type EligibilityChecker interface {
	CheckEligibility(ctx context.Context, journeyID, date string) (journey.Eligibility, error)
}

// EligibilityClient calls the eligibility service over the resilient
// client.
type EligibilityClient struct {
	http *httpclient.Client
}

// NewEligibilityClient wraps c as an EligibilityChecker.
func NewEligibilityClient(c *httpclient.Client) *EligibilityClient {
	return &EligibilityClient{http: c}
}

type eligibilityRequest struct {
	JourneyID string `json:"journey_id"`
	Date      string `json:"date"`
}

func (c *EligibilityClient) CheckEligibility(ctx context.Context, journeyID, date string) (journey.Eligibility, error) {
	var verdict journey.Eligibility
	err := c.http.PostJSON(ctx, "/eligibility", eligibilityRequest{
		JourneyID: journeyID,
		Date:      date,
	}, &verdict)
	if err != nil {
		return journey.Eligibility{}, fmt.Errorf("checking eligibility for %s: %w", journeyID, err)
	}

	return verdict, nil
}
