// Package service holds the mileage expense operations: rate tables, driver
// profiles, trip records and the monthly submission state machine.
//
// Every operation takes the calling auth.Actor explicitly. There is no
// ambient session.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mileage/auth"
	"mileage/config"
	dbt "mileage/db/db"
	"mileage/mq/mq"
	"mileage/route"
	"mileage/trip"
)

type Options struct {
	// DefaultDepreciation applies when a month's rate entry leaves it unset.
	DefaultDepreciation float64
	BulkWorkers         int
	// Location decides which calendar day "today" is.
	Location *time.Location
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DefaultDepreciation: cfg.Settlement.DepreciationRate,
		BulkWorkers:         cfg.Settlement.BulkWorkers,
		Location:            cfg.Location(),
	}
}

type Service struct {
	store     dbt.MileageDBWrapper
	events    mq.MileageMessageQueueWrapper
	estimator route.Estimator
	log       logrus.FieldLogger
	opts      Options
	now       func() time.Time
}

// New wires a Service. events and estimator may be nil: events are then not
// published and route based distances are rejected.
func New(store dbt.MileageDBWrapper, events mq.MileageMessageQueueWrapper, estimator route.Estimator, log logrus.FieldLogger, opts Options) *Service {
	if opts.BulkWorkers < 1 {
		opts.BulkWorkers = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		store:     store,
		events:    events,
		estimator: estimator,
		log:       log,
		opts:      opts,
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Today is the current calendar day in the configured zone.
func (s *Service) Today() time.Time {
	return trip.CivilDate(s.now(), s.opts.Location)
}

func (s *Service) Store() dbt.MileageDBWrapper {
	return s.store
}

func requireAdmin(actor auth.Actor) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func requireSelf(actor auth.Actor, driverID uuid.UUID) error {
	if !actor.CanActFor(driverID) {
		return ErrForbidden
	}
	return nil
}

// actorRef is nil for the system actor.
func actorRef(actor auth.Actor) *uuid.UUID {
	if actor.UserID == uuid.Nil {
		return nil
	}
	id := actor.UserID
	return &id
}

func isNotFound(err error) bool {
	return errors.Is(err, dbt.ErrNotFound)
}

// findSubmission returns nil, nil for an ABSENT month.
func (s *Service) findSubmission(ctx context.Context, driverID uuid.UUID, year, month int) (*dbt.Submission, error) {
	sub, err := s.store.FindSubmission(ctx, driverID, year, month)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up submission: %w", err)
	}
	return sub, nil
}
