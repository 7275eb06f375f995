package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"mileage/auth"
	dbt "mileage/db/db"
	"mileage/report"
)

// MonthlyReport collects every employee's month for the accounting workbook.
func (s *Service) MonthlyReport(ctx context.Context, actor auth.Actor, year, month int) (report.Monthly, error) {
	if err := requireAdmin(actor); err != nil {
		return report.Monthly{}, err
	}
	if err := verifyPeriod(year, month); err != nil {
		return report.Monthly{}, err
	}
	drivers, err := s.store.ListDrivers(ctx, "")
	if err != nil {
		return report.Monthly{}, fmt.Errorf("failed to list drivers: %w", err)
	}

	m := report.Monthly{Year: year, Month: month, GeneratedAt: s.now().In(s.opts.Location)}
	if rates, err := s.store.GetRates(ctx, year, month); err == nil {
		m.Rates = rates
	} else if !isNotFound(err) {
		return report.Monthly{}, fmt.Errorf("failed to get rates: %w", err)
	}

	for _, d := range drivers {
		records, err := s.monthRecords(ctx, d.ID, year, month)
		if err != nil {
			return report.Monthly{}, err
		}
		sub, err := s.findSubmission(ctx, d.ID, year, month)
		if err != nil {
			return report.Monthly{}, err
		}
		// admins only show up when they have something in the month
		if len(records) == 0 && sub == nil && d.Role != dbt.RoleEmployee {
			continue
		}
		m.Drivers = append(m.Drivers, report.DriverMonth{Driver: d, Submission: sub, Records: records})
	}
	return m, nil
}

// Statement collects one submission with its records for the PDF statement.
func (s *Service) Statement(ctx context.Context, actor auth.Actor, submissionID uuid.UUID) (report.Statement, error) {
	sub, err := s.GetSubmission(ctx, actor, submissionID)
	if err != nil {
		return report.Statement{}, err
	}
	driver, err := s.store.GetDriver(ctx, sub.DriverID)
	if err != nil {
		return report.Statement{}, fmt.Errorf("failed to get driver: %w", err)
	}
	records, err := s.monthRecords(ctx, sub.DriverID, sub.Year, sub.Month)
	if err != nil {
		return report.Statement{}, err
	}
	st := report.Statement{
		Driver:      *driver,
		Submission:  sub,
		Records:     records,
		GeneratedAt: s.now().In(s.opts.Location),
	}
	if rates, err := s.store.GetRates(ctx, sub.Year, sub.Month); err == nil {
		st.Rates = rates
	}
	return st, nil
}
