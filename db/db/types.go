package db

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

type VehicleType string

const (
	VehicleGasoline VehicleType = "gasoline"
	VehicleDiesel   VehicleType = "diesel"
	VehicleLPG      VehicleType = "lpg"
	VehicleElectric VehicleType = "electric"
)

func (v VehicleType) Valid() bool {
	switch v {
	case VehicleGasoline, VehicleDiesel, VehicleLPG, VehicleElectric:
		return true
	}
	return false
}

type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionCompleted SubmissionStatus = "completed"
)

// RecordStatus mirrors the owning month's submission. It is never stored.
type RecordStatus string

const (
	RecordDraft   RecordStatus = "draft"
	RecordPending RecordStatus = "pending"
	RecordSettled RecordStatus = "settled"
)

// Driver is a user of the system. Employees log trips, admins settle them.
type Driver struct {
	ID             uuid.UUID
	Name           string
	Email          string
	Role           Role
	VehicleType    VehicleType
	FuelEfficiency float64 // km/l, or km/kWh for electric
	PIN            string
	PasswordHash   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Record struct {
	ID               uuid.UUID
	DriverID         uuid.UUID
	DriveDate        time.Time
	Departure        string
	Destination      string
	Waypoints        []string
	Distance         float64 // km
	IsManualDistance bool
	ClientName       string
	Status           RecordStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Submission struct {
	ID          uuid.UUID
	DriverID    uuid.UUID
	Year        int
	Month       int
	Status      SubmissionStatus
	SubmittedAt time.Time
	CompletedAt *time.Time
	CompletedBy *uuid.UUID

	SettlementAmount *int64
	TotalDistance    *float64
	FuelCost         *int64
	DepreciationCost *int64
}

// ClearSettlement drops every completion field, leaving a pending row.
func (s *Submission) ClearSettlement() {
	s.Status = SubmissionPending
	s.CompletedAt = nil
	s.CompletedBy = nil
	s.SettlementAmount = nil
	s.TotalDistance = nil
	s.FuelCost = nil
	s.DepreciationCost = nil
}

type SubmissionFilter struct {
	Year     int // 0 matches any year
	Month    int // 0 matches any month
	DriverID *uuid.UUID
	Status   *SubmissionStatus
}

func (f SubmissionFilter) Match(s *Submission) bool {
	if f.Year != 0 && s.Year != f.Year {
		return false
	}
	if f.Month != 0 && s.Month != f.Month {
		return false
	}
	if f.DriverID != nil && s.DriverID != *f.DriverID {
		return false
	}
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	return true
}

// RateEntry holds one month's unit prices. DepreciationCost 0 means unset.
type RateEntry struct {
	Year             int
	Month            int
	GasolinePrice    float64
	DieselPrice      float64
	LPGPrice         float64
	ElectricPrice    float64
	DepreciationCost float64
	UpdatedAt        time.Time
}
