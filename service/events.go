package service

import (
	dbt "mileage/db/db"
	"mileage/mq/mq"
)

// Event delivery is best effort. A failed publish is logged and the
// operation that caused it still succeeds.

func (s *Service) publishSubmission(sub *dbt.Submission, action mq.Action) {
	if s.events == nil {
		return
	}
	msg := mq.SubmissionMessage{
		ID:               sub.ID,
		DriverID:         sub.DriverID,
		Year:             sub.Year,
		Month:            sub.Month,
		SettlementAmount: sub.SettlementAmount,
		Action:           action,
		At:               s.now(),
	}
	if action != mq.ActionDelete {
		msg.Status = string(sub.Status)
	}
	if err := s.events.GetSubmissionMessageQueue().Publish(msg); err != nil {
		s.log.WithError(err).WithField("submission_id", sub.ID).Warn("failed to publish submission event")
	}
}

func (s *Service) publishRecord(r *dbt.Record, action mq.Action) {
	if s.events == nil {
		return
	}
	msg := mq.RecordMessage{
		ID:        r.ID,
		DriverID:  r.DriverID,
		DriveDate: r.DriveDate,
		Distance:  r.Distance,
		Action:    action,
	}
	if err := s.events.GetRecordMessageQueue().Publish(msg); err != nil {
		s.log.WithError(err).WithField("record_id", r.ID).Warn("failed to publish record event")
	}
}
