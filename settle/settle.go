// Package settle turns a month of driving into a reimbursement amount.
//
//	fuelCost         = round(distance / efficiency * fuelPrice)
//	depreciationCost = round(distance * depreciationRate)
//	amount           = fuelCost + depreciationCost
//
// Amounts are whole currency units, rounded half away from zero.
package settle

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"mileage/db/db"
)

var (
	ErrMissingRates          = errors.New("no rate table entry for the settlement month")
	ErrMissingFuelPrice      = errors.New("fuel price for the vehicle type is not set")
	ErrMissingFuelEfficiency = errors.New("driver fuel efficiency is not set")
)

type Input struct {
	TotalDistance  float64 // km
	VehicleType    db.VehicleType
	FuelEfficiency float64
	Rates          *db.RateEntry
	// DefaultDepreciation is used when Rates leaves depreciation unset.
	DefaultDepreciation float64
}

type Result struct {
	TotalDistance    float64
	FuelPrice        float64
	DepreciationRate float64
	FuelCost         int64
	DepreciationCost int64
	SettlementAmount int64
}

// quotientPlaces keeps fractional digits well past the rounding position.
const quotientPlaces = 12

func usable(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FuelPrice picks the one price field matching the vehicle type. There is no
// fallback to another fuel.
func FuelPrice(rates *db.RateEntry, vehicle db.VehicleType) (float64, error) {
	if rates == nil {
		return 0, ErrMissingRates
	}
	var price float64
	switch vehicle {
	case db.VehicleGasoline:
		price = rates.GasolinePrice
	case db.VehicleDiesel:
		price = rates.DieselPrice
	case db.VehicleLPG:
		price = rates.LPGPrice
	case db.VehicleElectric:
		price = rates.ElectricPrice
	default:
		return 0, fmt.Errorf("%w: unknown vehicle type %q", ErrMissingFuelPrice, vehicle)
	}
	if !usable(price) {
		return 0, fmt.Errorf("%w: %s price for %04d-%02d is %v", ErrMissingFuelPrice, vehicle, rates.Year, rates.Month, price)
	}
	return price, nil
}

func DepreciationRate(rates *db.RateEntry, fallback float64) float64 {
	if rates != nil && usable(rates.DepreciationCost) {
		return rates.DepreciationCost
	}
	return fallback
}

func Calculate(in Input) (Result, error) {
	if in.Rates == nil {
		return Result{}, ErrMissingRates
	}
	price, err := FuelPrice(in.Rates, in.VehicleType)
	if err != nil {
		return Result{}, err
	}
	if !usable(in.FuelEfficiency) {
		return Result{}, fmt.Errorf("%w: got %v", ErrMissingFuelEfficiency, in.FuelEfficiency)
	}

	distance := in.TotalDistance
	if distance < 0 || math.IsNaN(distance) || math.IsInf(distance, 0) {
		distance = 0
	}
	depRate := DepreciationRate(in.Rates, in.DefaultDepreciation)

	dist := decimal.NewFromFloat(distance)
	// multiply first: a truncated quotient can turn an exact .5 into .4999
	fuel := dist.Mul(decimal.NewFromFloat(price)).DivRound(decimal.NewFromFloat(in.FuelEfficiency), quotientPlaces)
	dep := dist.Mul(decimal.NewFromFloat(depRate))

	res := Result{
		TotalDistance:    distance,
		FuelPrice:        price,
		DepreciationRate: depRate,
		FuelCost:         roundUnits(fuel),
		DepreciationCost: roundUnits(dep),
	}
	res.SettlementAmount = res.FuelCost + res.DepreciationCost
	return res, nil
}

func roundUnits(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
