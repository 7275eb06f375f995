// Package route estimates driving distance over an ordered list of stops.
package route

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"mileage/trip"
)

var ErrNotEnoughStops = errors.New("a route needs at least two stops")

type Stop struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (s Stop) Point() orb.Point {
	return orb.Point{s.Lng, s.Lat}
}

type Estimator interface {
	// Estimate returns the route length in km, rounded to 0.1.
	Estimate(ctx context.Context, stops []Stop) (float64, error)
}

// StraightLine sums great-circle legs and scales them by RoadFactor to
// approximate road distance.
type StraightLine struct {
	RoadFactor float64
}

func NewStraightLine(roadFactor float64) *StraightLine {
	return &StraightLine{RoadFactor: roadFactor}
}

func (s *StraightLine) Estimate(_ context.Context, stops []Stop) (float64, error) {
	if len(stops) < 2 {
		return 0, ErrNotEnoughStops
	}
	meters := 0.0
	for i := 1; i < len(stops); i++ {
		meters += geo.Distance(stops[i-1].Point(), stops[i].Point())
	}
	return trip.RoundTenth(meters / 1000 * s.RoadFactor), nil
}
