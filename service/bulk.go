package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mileage/auth"
	"mileage/metrics"
)

type ItemResult struct {
	SubmissionID uuid.UUID
	DriverID     uuid.UUID
	Amount       int64
	Err          error
}

func (r ItemResult) OK() bool {
	return r.Err == nil
}

type BulkResult struct {
	SuccessCount int
	FailCount    int
	Items        []ItemResult
}

// BulkSettle settles every PENDING submission of the month independently.
// A failing item never stops the others and settled items are not rolled
// back. The error is only set when the pending list cannot be read.
func (s *Service) BulkSettle(ctx context.Context, actor auth.Actor, year, month int) (BulkResult, error) {
	if err := requireAdmin(actor); err != nil {
		return BulkResult{}, err
	}
	if err := verifyPeriod(year, month); err != nil {
		return BulkResult{}, err
	}
	pending, err := s.pending(ctx, year, month)
	if err != nil {
		return BulkResult{}, err
	}
	metrics.BulkSettlements.Inc()

	items := make([]ItemResult, len(pending))
	var g errgroup.Group
	g.SetLimit(s.opts.BulkWorkers)
	for i := range pending {
		sub := &pending[i]
		g.Go(func() error {
			item := ItemResult{SubmissionID: sub.ID, DriverID: sub.DriverID}
			done, err := s.settle(ctx, actor, sub)
			if err != nil {
				item.Err = err
			} else {
				item.Amount = *done.SettlementAmount
			}
			items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	res := BulkResult{Items: items}
	for _, item := range items {
		if item.OK() {
			res.SuccessCount++
		} else {
			res.FailCount++
		}
	}
	s.log.WithFields(logrus.Fields{
		"year":    year,
		"month":   month,
		"success": res.SuccessCount,
		"failed":  res.FailCount,
	}).Info("bulk settlement finished")
	return res, nil
}
