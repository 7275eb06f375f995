package trip

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"mileage/db/db"
)

var ErrInvalidDistance = errors.New("distance must be a finite, non-negative number of kilometres")

func validDistance(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ResolveDistance decides the distance stored on a record. A round trip
// doubles the computed route. A non-blank manual entry always wins. The
// result is rounded to 0.1 km, the precision records are stored with.
func ResolveDistance(computed float64, roundTrip bool, manual string) (distance float64, isManual bool, err error) {
	if manual = strings.TrimSpace(manual); manual != "" {
		v, err := strconv.ParseFloat(manual, 64)
		if err != nil || !validDistance(v) {
			return 0, false, fmt.Errorf("%w: manual value %q", ErrInvalidDistance, manual)
		}
		return RoundTenth(v), true, nil
	}

	if !validDistance(computed) {
		return 0, false, fmt.Errorf("%w: computed value %v", ErrInvalidDistance, computed)
	}
	if roundTrip {
		computed *= 2
	}
	return RoundTenth(computed), false, nil
}

// SumDistance totals record distances. Values that are not valid distances
// count as zero.
func SumDistance(records []db.Record) float64 {
	total := decimal.Zero
	for _, r := range records {
		if !validDistance(r.Distance) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(r.Distance))
	}
	return total.InexactFloat64()
}

// RoundTenth rounds to 0.1 km.
func RoundTenth(km float64) float64 {
	return decimal.NewFromFloat(km).Round(1).InexactFloat64()
}
