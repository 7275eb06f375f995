package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"mileage/auth"
	dbt "mileage/db/db"
)

// RateInput carries one month of unit prices. Every field is required.
// DepreciationCost 0 leaves the configured default in force.
type RateInput struct {
	GasolinePrice    *float64 `json:"gasolinePrice"`
	DieselPrice      *float64 `json:"dieselPrice"`
	LPGPrice         *float64 `json:"lpgPrice"`
	ElectricPrice    *float64 `json:"electricPrice"`
	DepreciationCost *float64 `json:"depreciationCost"`
}

func rateField(field string, v *float64) (float64, error) {
	if v == nil {
		return 0, invalid(field, "is required")
	}
	if !finite(*v) || *v < 0 {
		return 0, invalid(field, "must be a number of zero or more, got %v", *v)
	}
	return *v, nil
}

func (in RateInput) entry(year, month int) (*dbt.RateEntry, error) {
	e := &dbt.RateEntry{Year: year, Month: month}
	var err error
	if e.GasolinePrice, err = rateField("gasolinePrice", in.GasolinePrice); err != nil {
		return nil, err
	}
	if e.DieselPrice, err = rateField("dieselPrice", in.DieselPrice); err != nil {
		return nil, err
	}
	if e.LPGPrice, err = rateField("lpgPrice", in.LPGPrice); err != nil {
		return nil, err
	}
	if e.ElectricPrice, err = rateField("electricPrice", in.ElectricPrice); err != nil {
		return nil, err
	}
	if e.DepreciationCost, err = rateField("depreciationCost", in.DepreciationCost); err != nil {
		return nil, err
	}
	return e, nil
}

// GetRates returns db.ErrNotFound when the month has no entry.
func (s *Service) GetRates(ctx context.Context, _ auth.Actor, year, month int) (dbt.RateEntry, error) {
	if err := verifyPeriod(year, month); err != nil {
		return dbt.RateEntry{}, err
	}
	r, err := s.store.GetRates(ctx, year, month)
	if err != nil {
		return dbt.RateEntry{}, fmt.Errorf("failed to get rates: %w", err)
	}
	return *r, nil
}

func (s *Service) ListRates(ctx context.Context, _ auth.Actor, year int) ([]dbt.RateEntry, error) {
	if err := verifyPeriod(year, 1); err != nil {
		return nil, err
	}
	list, err := s.store.ListRates(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	return list, nil
}

func (s *Service) SaveRates(ctx context.Context, actor auth.Actor, year, month int, in RateInput) (dbt.RateEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return dbt.RateEntry{}, err
	}
	if err := verifyPeriod(year, month); err != nil {
		return dbt.RateEntry{}, err
	}
	e, err := in.entry(year, month)
	if err != nil {
		return dbt.RateEntry{}, err
	}
	if err := s.store.UpsertRates(ctx, e); err != nil {
		return dbt.RateEntry{}, fmt.Errorf("failed to save rates: %w", err)
	}
	s.log.WithFields(logrus.Fields{"year": year, "month": month}).Info("rates saved")

	saved, err := s.store.GetRates(ctx, year, month)
	if err != nil {
		return *e, nil
	}
	return *saved, nil
}
