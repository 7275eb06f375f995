package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type StoreError string

func (e StoreError) Error() string {
	return string(e)
}

const (
	ErrNotFound  StoreError = "not found"
	ErrDuplicate StoreError = "already exists"
)

type DriverStore interface {
	CreateDriver(ctx context.Context, d *Driver) error
	GetDriver(ctx context.Context, id uuid.UUID) (*Driver, error)
	FindDriverByName(ctx context.Context, name string) (*Driver, error)
	FindDriverByEmail(ctx context.Context, email string) (*Driver, error)
	ListDrivers(ctx context.Context, role Role) ([]Driver, error)
	UpdateDriver(ctx context.Context, d *Driver) error
	// DeleteDriver also removes the driver's records and submissions.
	DeleteDriver(ctx context.Context, id uuid.UUID) error
}

type RecordStore interface {
	CreateRecord(ctx context.Context, r *Record) error
	GetRecord(ctx context.Context, id uuid.UUID) (*Record, error)
	// ListRecords returns records with from <= drive_date <= to, newest first.
	ListRecords(ctx context.Context, driverID uuid.UUID, from, to time.Time) ([]Record, error)
	DeleteRecord(ctx context.Context, id uuid.UUID) error
}

type SubmissionStore interface {
	CreateSubmission(ctx context.Context, s *Submission) error
	GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error)
	FindSubmission(ctx context.Context, driverID uuid.UUID, year, month int) (*Submission, error)
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
	UpdateSubmission(ctx context.Context, s *Submission) error
	DeleteSubmission(ctx context.Context, id uuid.UUID) error
}

type RateStore interface {
	GetRates(ctx context.Context, year, month int) (*RateEntry, error)
	ListRates(ctx context.Context, year int) ([]RateEntry, error)
	UpsertRates(ctx context.Context, r *RateEntry) error
}

type MileageDBWrapper interface {
	DriverStore
	RecordStore
	SubmissionStore
	RateStore
	Ping(ctx context.Context) error
	// Data Loader
	DataLoaderGetDriverList(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Driver, error)
}
