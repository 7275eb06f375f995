package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mileage/auth"
	dbt "mileage/db/db"
	"mileage/libs/diff"
	"mileage/metrics"
	"mileage/mq/mq"
	"mileage/settle"
	"mileage/trip"
)

// Submit moves a driver's month from ABSENT to PENDING.
func (s *Service) Submit(ctx context.Context, actor auth.Actor, driverID uuid.UUID, year, month int) (dbt.Submission, error) {
	if err := requireSelf(actor, driverID); err != nil {
		return dbt.Submission{}, err
	}
	if err := verifyPeriod(year, month); err != nil {
		return dbt.Submission{}, err
	}
	if _, err := s.store.GetDriver(ctx, driverID); err != nil {
		return dbt.Submission{}, fmt.Errorf("failed to get driver: %w", err)
	}
	existing, err := s.findSubmission(ctx, driverID, year, month)
	if err != nil {
		return dbt.Submission{}, err
	}
	if existing != nil {
		return dbt.Submission{}, fmt.Errorf("%04d-%02d is %s: %w", year, month, existing.Status, ErrDuplicateSubmission)
	}

	sub := &dbt.Submission{
		ID:          uuid.New(),
		DriverID:    driverID,
		Year:        year,
		Month:       month,
		Status:      dbt.SubmissionPending,
		SubmittedAt: s.now(),
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		if errors.Is(err, dbt.ErrDuplicate) {
			return dbt.Submission{}, fmt.Errorf("%04d-%02d: %w", year, month, ErrDuplicateSubmission)
		}
		return dbt.Submission{}, fmt.Errorf("failed to create submission: %w", err)
	}
	s.log.WithFields(logrus.Fields{"driver_id": driverID, "year": year, "month": month}).Info("month submitted")
	s.publishSubmission(sub, mq.ActionCreate)
	return *sub, nil
}

// CancelSubmission withdraws a PENDING month, returning it to ABSENT.
func (s *Service) CancelSubmission(ctx context.Context, actor auth.Actor, driverID uuid.UUID, year, month int) error {
	if err := requireSelf(actor, driverID); err != nil {
		return err
	}
	if err := verifyPeriod(year, month); err != nil {
		return err
	}
	sub, err := s.findSubmission(ctx, driverID, year, month)
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("%04d-%02d was never submitted: %w", year, month, ErrInvalidState)
	}
	if sub.Status != dbt.SubmissionPending {
		return fmt.Errorf("%04d-%02d is %s: %w", year, month, sub.Status, ErrInvalidState)
	}
	if err := s.store.DeleteSubmission(ctx, sub.ID); err != nil {
		return fmt.Errorf("failed to cancel submission: %w", err)
	}
	s.log.WithFields(logrus.Fields{"driver_id": driverID, "year": year, "month": month}).Info("submission cancelled")
	s.publishSubmission(sub, mq.ActionDelete)
	return nil
}

// Complete settles one PENDING submission.
func (s *Service) Complete(ctx context.Context, actor auth.Actor, submissionID uuid.UUID) (dbt.Submission, error) {
	if err := requireAdmin(actor); err != nil {
		return dbt.Submission{}, err
	}
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return dbt.Submission{}, fmt.Errorf("failed to get submission: %w", err)
	}
	done, err := s.settle(ctx, actor, sub)
	if err != nil {
		return dbt.Submission{}, err
	}
	return *done, nil
}

// settle runs the calculator for sub and stores the result. Nothing is
// written when the calculation fails.
func (s *Service) settle(ctx context.Context, actor auth.Actor, sub *dbt.Submission) (*dbt.Submission, error) {
	if sub.Status != dbt.SubmissionPending {
		return nil, fmt.Errorf("submission %s is %s: %w", sub.ID, sub.Status, ErrInvalidState)
	}
	log := s.log.WithFields(logrus.Fields{"submission_id": sub.ID, "driver_id": sub.DriverID, "year": sub.Year, "month": sub.Month})

	res, err := s.calculate(ctx, sub)
	if err != nil {
		metrics.Settlements.WithLabelValues(metrics.OutcomeFailure).Inc()
		log.WithError(err).Warn("settlement failed")
		return nil, err
	}

	done := *sub
	now := s.now()
	done.Status = dbt.SubmissionCompleted
	done.CompletedAt = &now
	done.CompletedBy = actorRef(actor)
	done.SettlementAmount = &res.SettlementAmount
	done.TotalDistance = &res.TotalDistance
	done.FuelCost = &res.FuelCost
	done.DepreciationCost = &res.DepreciationCost
	if err := s.store.UpdateSubmission(ctx, &done); err != nil {
		metrics.Settlements.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, fmt.Errorf("failed to store settlement: %w", err)
	}

	metrics.ObserveSettlement(res.SettlementAmount)
	log.WithField("amount", res.SettlementAmount).Info("submission settled")
	s.logTransition(log, sub, &done)
	s.publishSubmission(&done, mq.ActionUpdate)
	return &done, nil
}

func (s *Service) calculate(ctx context.Context, sub *dbt.Submission) (settle.Result, error) {
	driver, err := s.store.GetDriver(ctx, sub.DriverID)
	if err != nil {
		return settle.Result{}, fmt.Errorf("failed to get driver: %w", err)
	}
	rates, err := s.store.GetRates(ctx, sub.Year, sub.Month)
	if isNotFound(err) {
		return settle.Result{}, fmt.Errorf("%04d-%02d: %w", sub.Year, sub.Month, settle.ErrMissingRates)
	}
	if err != nil {
		return settle.Result{}, fmt.Errorf("failed to get rates: %w", err)
	}
	records, err := s.monthRecords(ctx, sub.DriverID, sub.Year, sub.Month)
	if err != nil {
		return settle.Result{}, err
	}

	res, err := settle.Calculate(settle.Input{
		TotalDistance:       trip.SumDistance(records),
		VehicleType:         driver.VehicleType,
		FuelEfficiency:      driver.FuelEfficiency,
		Rates:               rates,
		DefaultDepreciation: s.opts.DefaultDepreciation,
	})
	if err != nil {
		return settle.Result{}, fmt.Errorf("settling %s for %04d-%02d: %w", driver.Name, sub.Year, sub.Month, err)
	}
	return res, nil
}

func (s *Service) logTransition(log logrus.FieldLogger, before, after *dbt.Submission) {
	changes, err := diff.SubmissionChanges(before, after)
	if err != nil {
		log.WithError(err).Debug("failed to build submission change log")
		return
	}
	for _, c := range changes {
		log.Debug(c.String())
	}
}

// CancelCompletion reverts a COMPLETED submission to PENDING and drops the
// settled amounts.
func (s *Service) CancelCompletion(ctx context.Context, actor auth.Actor, submissionID uuid.UUID) (dbt.Submission, error) {
	if err := requireAdmin(actor); err != nil {
		return dbt.Submission{}, err
	}
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return dbt.Submission{}, fmt.Errorf("failed to get submission: %w", err)
	}
	if sub.Status != dbt.SubmissionCompleted {
		return dbt.Submission{}, fmt.Errorf("submission %s is %s: %w", sub.ID, sub.Status, ErrInvalidState)
	}

	reverted := *sub
	reverted.ClearSettlement()
	if err := s.store.UpdateSubmission(ctx, &reverted); err != nil {
		return dbt.Submission{}, fmt.Errorf("failed to cancel completion: %w", err)
	}
	log := s.log.WithFields(logrus.Fields{"submission_id": sub.ID, "driver_id": sub.DriverID, "admin_id": actor.UserID})
	log.Info("completion cancelled")
	s.logTransition(log, sub, &reverted)
	s.publishSubmission(&reverted, mq.ActionUpdate)
	return reverted, nil
}

// CloseMonth marks every PENDING submission of the month COMPLETED without
// computing an amount. It returns how many were closed, also on error.
func (s *Service) CloseMonth(ctx context.Context, actor auth.Actor, year, month int) (int, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	if err := verifyPeriod(year, month); err != nil {
		return 0, err
	}
	pending, err := s.pending(ctx, year, month)
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range pending {
		sub := pending[i]
		now := s.now()
		sub.Status = dbt.SubmissionCompleted
		sub.CompletedAt = &now
		sub.CompletedBy = actorRef(actor)
		if err := s.store.UpdateSubmission(ctx, &sub); err != nil {
			return closed, fmt.Errorf("failed to close submission %s: %w", sub.ID, err)
		}
		metrics.Settlements.WithLabelValues(metrics.OutcomeClosed).Inc()
		s.publishSubmission(&sub, mq.ActionUpdate)
		closed++
	}
	s.log.WithFields(logrus.Fields{"year": year, "month": month, "closed": closed}).Info("month closed")
	return closed, nil
}

func (s *Service) pending(ctx context.Context, year, month int) ([]dbt.Submission, error) {
	status := dbt.SubmissionPending
	list, err := s.store.ListSubmissions(ctx, dbt.SubmissionFilter{Year: year, Month: month, Status: &status})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending submissions: %w", err)
	}
	return list, nil
}

func (s *Service) GetSubmission(ctx context.Context, actor auth.Actor, id uuid.UUID) (dbt.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		return dbt.Submission{}, fmt.Errorf("failed to get submission: %w", err)
	}
	if err := requireSelf(actor, sub.DriverID); err != nil {
		return dbt.Submission{}, err
	}
	return *sub, nil
}

// FindSubmission returns db.ErrNotFound for a month that was never submitted.
func (s *Service) FindSubmission(ctx context.Context, actor auth.Actor, driverID uuid.UUID, year, month int) (dbt.Submission, error) {
	if err := requireSelf(actor, driverID); err != nil {
		return dbt.Submission{}, err
	}
	if err := verifyPeriod(year, month); err != nil {
		return dbt.Submission{}, err
	}
	sub, err := s.store.FindSubmission(ctx, driverID, year, month)
	if err != nil {
		return dbt.Submission{}, fmt.Errorf("failed to find submission: %w", err)
	}
	return *sub, nil
}

// ListSubmissions lists a month. Employees only ever see their own.
func (s *Service) ListSubmissions(ctx context.Context, actor auth.Actor, year, month int) ([]dbt.Submission, error) {
	if err := verifyPeriod(year, month); err != nil {
		return nil, err
	}
	filter := dbt.SubmissionFilter{Year: year, Month: month}
	if !actor.IsAdmin() {
		id := actor.UserID
		filter.DriverID = &id
	}
	list, err := s.store.ListSubmissions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return list, nil
}
