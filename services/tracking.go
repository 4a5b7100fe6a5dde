package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/clearrail/claimflow/httpclient"
)

// ClaimStatus is the tracking service's view of one claim.
type ClaimStatus struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// ClaimTracker registers a submitted claim with the tracking service so
// the user can query its progress later.
type ClaimTracker interface {
	// Track registers the journey and returns the tracking reference
	// acknowledged by the service.
	Track(ctx context.Context, journeyID, identity string) (string, error)

	// Status returns the most recent claim registered for identity. A
	// 404 from the service means the identity has no claims yet.
	Status(ctx context.Context, identity string) (ClaimStatus, error)
}

// TrackingClient calls the tracking service over the resilient client.
type TrackingClient struct {
	http *httpclient.Client
}

// NewTrackingClient wraps c as a ClaimTracker.
func NewTrackingClient(c *httpclient.Client) *TrackingClient {
	return &TrackingClient{http: c}
}

type trackingRequest struct {
	JourneyID string `json:"journey_id"`
	Identity  string `json:"identity"`
}

type trackingResponse struct {
	Reference string `json:"reference"`
}

func (c *TrackingClient) Track(ctx context.Context, journeyID, identity string) (string, error) {
	var resp trackingResponse
	if err := c.http.PostJSON(ctx, "/tracking", trackingRequest{
		JourneyID: journeyID,
		Identity:  identity,
	}, &resp); err != nil {
		return "", fmt.Errorf("registering tracking for %s: %w", journeyID, err)
	}

	return resp.Reference, nil
}

func (c *TrackingClient) Status(ctx context.Context, identity string) (ClaimStatus, error) {
	params := url.Values{}
	params.Set("identity", identity)

	var status ClaimStatus
	if err := c.http.GetJSON(ctx, "/tracking/latest?"+params.Encode(), &status); err != nil {
		return ClaimStatus{}, fmt.Errorf("fetching claim status: %w", err)
	}

	return status, nil
}
