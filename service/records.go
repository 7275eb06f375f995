package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mileage/auth"
	dbt "mileage/db/db"
	"mileage/mq/mq"
	"mileage/route"
	"mileage/trip"
)

type RecordInput struct {
	DriverID uuid.UUID
	// DriveDate zero means today in the configured zone.
	DriveDate   time.Time
	Departure   string
	Destination string
	Waypoints   []string
	ClientName  string

	// ComputedDistance is a distance the client already estimated. Route,
	// when given, is estimated server side and replaces it.
	ComputedDistance float64
	Route            []route.Stop
	RoundTrip        bool
	ManualDistance   string
}

func recordStatusOf(sub *dbt.Submission) dbt.RecordStatus {
	switch {
	case sub == nil:
		return dbt.RecordDraft
	case sub.Status == dbt.SubmissionCompleted:
		return dbt.RecordSettled
	default:
		return dbt.RecordPending
	}
}

// checkMutable fails unless the driver's month is still ABSENT.
func (s *Service) checkMutable(ctx context.Context, driverID uuid.UUID, year, month int) error {
	sub, err := s.findSubmission(ctx, driverID, year, month)
	if err != nil {
		return err
	}
	if sub == nil {
		return nil
	}
	if sub.Status == dbt.SubmissionCompleted {
		return fmt.Errorf("%04d-%02d: %w", year, month, ErrSettlementLocked)
	}
	return fmt.Errorf("%04d-%02d: %w", year, month, ErrSubmissionPending)
}

func (s *Service) resolveDistance(ctx context.Context, in RecordInput) (float64, bool, error) {
	computed := in.ComputedDistance
	if len(in.Route) > 0 && strings.TrimSpace(in.ManualDistance) == "" {
		if s.estimator == nil {
			return 0, false, invalid("route", "route estimation is not available, enter the distance manually")
		}
		km, err := s.estimator.Estimate(ctx, in.Route)
		if errors.Is(err, route.ErrNotEnoughStops) {
			return 0, false, invalid("route", "%v", err)
		}
		if err != nil {
			return 0, false, fmt.Errorf("failed to estimate route: %w", err)
		}
		computed = km
	}
	dist, manual, err := trip.ResolveDistance(computed, in.RoundTrip, in.ManualDistance)
	if err != nil {
		return 0, false, invalid("distance", "%v", err)
	}
	return dist, manual, nil
}

func (s *Service) CreateRecord(ctx context.Context, actor auth.Actor, in RecordInput) (dbt.Record, error) {
	if err := requireSelf(actor, in.DriverID); err != nil {
		return dbt.Record{}, err
	}
	if _, err := s.store.GetDriver(ctx, in.DriverID); err != nil {
		return dbt.Record{}, fmt.Errorf("failed to get driver: %w", err)
	}

	date := s.Today()
	if !in.DriveDate.IsZero() {
		date = trip.CivilDate(in.DriveDate, nil)
	}
	year, month := trip.PeriodOf(date)
	if err := verifyPeriod(year, month); err != nil {
		return dbt.Record{}, err
	}
	if err := s.checkMutable(ctx, in.DriverID, year, month); err != nil {
		return dbt.Record{}, err
	}

	r := &dbt.Record{ID: uuid.New(), DriverID: in.DriverID, DriveDate: date, Status: dbt.RecordDraft}
	var err error
	if r.Departure, err = verifyText("departure", in.Departure); err != nil {
		return dbt.Record{}, err
	}
	if r.Destination, err = verifyText("destination", in.Destination); err != nil {
		return dbt.Record{}, err
	}
	if r.ClientName, err = verifyOptionalText("clientName", in.ClientName); err != nil {
		return dbt.Record{}, err
	}
	if r.Waypoints, err = verifyTextList("waypoints", in.Waypoints); err != nil {
		return dbt.Record{}, err
	}
	if r.Distance, r.IsManualDistance, err = s.resolveDistance(ctx, in); err != nil {
		return dbt.Record{}, err
	}

	if err := s.store.CreateRecord(ctx, r); err != nil {
		return dbt.Record{}, fmt.Errorf("failed to create record: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"driver_id": r.DriverID,
		"record_id": r.ID,
		"distance":  r.Distance,
		"manual":    r.IsManualDistance,
	}).Debug("record created")
	s.publishRecord(r, mq.ActionCreate)
	return *r, nil
}

func (s *Service) DeleteRecord(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	r, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}
	if err := requireSelf(actor, r.DriverID); err != nil {
		return err
	}
	year, month := trip.PeriodOf(r.DriveDate)
	if err := s.checkMutable(ctx, r.DriverID, year, month); err != nil {
		return err
	}
	if err := s.store.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	s.publishRecord(r, mq.ActionDelete)
	return nil
}

// ListRecords returns one driver's month, newest first, each record carrying
// the status of the month's submission.
func (s *Service) ListRecords(ctx context.Context, actor auth.Actor, driverID uuid.UUID, year, month int) ([]dbt.Record, error) {
	if err := requireSelf(actor, driverID); err != nil {
		return nil, err
	}
	if err := verifyPeriod(year, month); err != nil {
		return nil, err
	}
	return s.monthRecords(ctx, driverID, year, month)
}

func (s *Service) monthRecords(ctx context.Context, driverID uuid.UUID, year, month int) ([]dbt.Record, error) {
	first, last := trip.MonthRange(year, month)
	records, err := s.store.ListRecords(ctx, driverID, first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	sub, err := s.findSubmission(ctx, driverID, year, month)
	if err != nil {
		return nil, err
	}
	status := recordStatusOf(sub)
	for i := range records {
		records[i].Status = status
	}
	return records, nil
}

type MonthSummary struct {
	DriverID      uuid.UUID       `json:"driverId"`
	Year          int             `json:"year"`
	Month         int             `json:"month"`
	RecordCount   int             `json:"recordCount"`
	DraftCount    int             `json:"draftCount"`
	TotalDistance float64         `json:"totalDistance"`
	Submission    *dbt.Submission `json:"submission,omitempty"`
}

// MonthSummary is the month view of one driver: totals plus the submission, if any.
func (s *Service) MonthSummary(ctx context.Context, actor auth.Actor, driverID uuid.UUID, year, month int) (MonthSummary, error) {
	records, err := s.ListRecords(ctx, actor, driverID, year, month)
	if err != nil {
		return MonthSummary{}, err
	}
	sub, err := s.findSubmission(ctx, driverID, year, month)
	if err != nil {
		return MonthSummary{}, err
	}
	sum := MonthSummary{
		DriverID:      driverID,
		Year:          year,
		Month:         month,
		RecordCount:   len(records),
		TotalDistance: trip.RoundTenth(trip.SumDistance(records)),
		Submission:    sub,
	}
	for _, r := range records {
		if r.Status == dbt.RecordDraft {
			sum.DraftCount++
		}
	}
	return sum, nil
}
