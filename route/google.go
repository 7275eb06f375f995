package route

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"mileage/trip"
)

// Google asks the Directions API for a driving route through every stop.
type Google struct {
	client *maps.Client
}

func NewGoogle(apiKey string) (*Google, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Google{client: client}, nil
}

func latLng(s Stop) string {
	return fmt.Sprintf("%f,%f", s.Lat, s.Lng)
}

func (g *Google) Estimate(ctx context.Context, stops []Stop) (float64, error) {
	if len(stops) < 2 {
		return 0, ErrNotEnoughStops
	}
	req := &maps.DirectionsRequest{
		Origin:      latLng(stops[0]),
		Destination: latLng(stops[len(stops)-1]),
		Mode:        maps.TravelModeDriving,
	}
	for _, s := range stops[1 : len(stops)-1] {
		req.Waypoints = append(req.Waypoints, latLng(s))
	}

	routes, _, err := g.client.Directions(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("directions request failed: %w", err)
	}
	if len(routes) == 0 {
		return 0, fmt.Errorf("no route found between %d stops", len(stops))
	}

	meters := 0
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
	}
	return trip.RoundTenth(float64(meters) / 1000), nil
}
