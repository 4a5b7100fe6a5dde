// Package services wraps the downstream HTTP collaborators behind small
// interfaces so handlers can be tested against fakes.
package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/clearrail/claimflow/httpclient"
	"github.com/clearrail/claimflow/journey"
)

// RouteQuery identifies one route lookup. Offset skips candidates already
// shown in earlier alternative rounds.
type RouteQuery struct {
	From   string
	To     string
	Date   string // YYYY-MM-DD
	Time   string // HH:MM
	Offset int
}

// RouteFinder is the slice of the route-lookup service handlers use.
type RouteFinder interface {
	// FindRoutes returns ranked candidates for the query. An empty
	// slice is a normal answer, not an error.
	FindRoutes(ctx context.Context, q RouteQuery) ([]journey.Route, error)
}

// RoutesClient calls the route-lookup service over the resilient client.
type RoutesClient struct {
	http *httpclient.Client
}

// NewRoutesClient wraps c as a RouteFinder.
func NewRoutesClient(c *httpclient.Client) *RoutesClient {
	return &RoutesClient{http: c}
}

type routesResponse struct {
	Routes []journey.Route `json:"routes"`
}

func (c *RoutesClient) FindRoutes(ctx context.Context, q RouteQuery) ([]journey.Route, error) {
	params := url.Values{}
	params.Set("from", q.From)
	params.Set("to", q.To)
	params.Set("date", q.Date)
	params.Set("time", q.Time)
	params.Set("offset", strconv.Itoa(q.Offset))

	var resp routesResponse
	if err := c.http.GetJSON(ctx, "/routes?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("looking up routes %s-%s: %w", q.From, q.To, err)
	}

	return resp.Routes, nil
}
