package pg

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	dbt "mileage/db/db"
)

type UserModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name           string    `gorm:"size:100;not null"`
	Email          *string   `gorm:"size:255;uniqueIndex"`
	Role           string    `gorm:"size:20;not null"`
	VehicleType    *string   `gorm:"size:20"`
	FuelEfficiency *float64  `gorm:"type:numeric(6,2)"`
	PIN            *string   `gorm:"column:pin;size:4"`
	PasswordHash   *string   `gorm:"size:255"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserModel) TableName() string {
	return "users"
}

type DriveRecordModel struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null"`
	DriveDate        time.Time      `gorm:"type:date;not null"`
	Departure        string         `gorm:"size:255;not null"`
	Destination      string         `gorm:"size:255;not null"`
	Waypoints        pq.StringArray `gorm:"type:text[]"`
	Distance         float64        `gorm:"type:numeric(8,1);not null"`
	IsManualDistance bool           `gorm:"not null"`
	ClientName       string         `gorm:"size:255;not null"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DriveRecordModel) TableName() string {
	return "drive_records"
}

type MonthlySubmissionModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID  `gorm:"type:uuid;not null"`
	Year             int        `gorm:"not null"`
	Month            int        `gorm:"not null"`
	Status           string     `gorm:"size:20;not null"`
	SubmittedAt      time.Time  `gorm:"not null"`
	CompletedAt      *time.Time `gorm:"type:timestamptz"`
	CompletedBy      *uuid.UUID `gorm:"type:uuid"`
	SettlementAmount *int64     `gorm:"type:bigint"`
	TotalDistance    *float64   `gorm:"type:numeric(10,1)"`
	FuelCost         *int64     `gorm:"type:bigint"`
	DepreciationCost *int64     `gorm:"type:bigint"`
}

func (MonthlySubmissionModel) TableName() string {
	return "monthly_submissions"
}

type FuelPriceModel struct {
	Year             int     `gorm:"primaryKey"`
	Month            int     `gorm:"primaryKey"`
	GasolinePrice    float64 `gorm:"type:numeric(10,2);not null"`
	DieselPrice      float64 `gorm:"type:numeric(10,2);not null"`
	LPGPrice         float64 `gorm:"column:lpg_price;type:numeric(10,2);not null"`
	ElectricPrice    float64 `gorm:"type:numeric(10,2);not null"`
	DepreciationCost float64 `gorm:"type:numeric(10,2);not null"`
	UpdatedAt        time.Time
}

func (FuelPriceModel) TableName() string {
	return "monthly_fuel_prices"
}

func optional[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func toUserModel(d *dbt.Driver) UserModel {
	return UserModel{
		ID:             d.ID,
		Name:           d.Name,
		Email:          optional(d.Email),
		Role:           string(d.Role),
		VehicleType:    optional(string(d.VehicleType)),
		FuelEfficiency: optional(d.FuelEfficiency),
		PIN:            optional(d.PIN),
		PasswordHash:   optional(d.PasswordHash),
	}
}

func (m UserModel) toDriver() *dbt.Driver {
	return &dbt.Driver{
		ID:             m.ID,
		Name:           m.Name,
		Email:          deref(m.Email),
		Role:           dbt.Role(m.Role),
		VehicleType:    dbt.VehicleType(deref(m.VehicleType)),
		FuelEfficiency: deref(m.FuelEfficiency),
		PIN:            deref(m.PIN),
		PasswordHash:   deref(m.PasswordHash),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toRecordModel(r *dbt.Record) DriveRecordModel {
	return DriveRecordModel{
		ID:               r.ID,
		UserID:           r.DriverID,
		DriveDate:        r.DriveDate,
		Departure:        r.Departure,
		Destination:      r.Destination,
		Waypoints:        pq.StringArray(r.Waypoints),
		Distance:         r.Distance,
		IsManualDistance: r.IsManualDistance,
		ClientName:       r.ClientName,
	}
}

func (m DriveRecordModel) toRecord() dbt.Record {
	return dbt.Record{
		ID:               m.ID,
		DriverID:         m.UserID,
		DriveDate:        m.DriveDate.UTC(),
		Departure:        m.Departure,
		Destination:      m.Destination,
		Waypoints:        append([]string{}, m.Waypoints...),
		Distance:         m.Distance,
		IsManualDistance: m.IsManualDistance,
		ClientName:       m.ClientName,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toSubmissionModel(s *dbt.Submission) MonthlySubmissionModel {
	return MonthlySubmissionModel{
		ID:               s.ID,
		UserID:           s.DriverID,
		Year:             s.Year,
		Month:            s.Month,
		Status:           string(s.Status),
		SubmittedAt:      s.SubmittedAt,
		CompletedAt:      s.CompletedAt,
		CompletedBy:      s.CompletedBy,
		SettlementAmount: s.SettlementAmount,
		TotalDistance:    s.TotalDistance,
		FuelCost:         s.FuelCost,
		DepreciationCost: s.DepreciationCost,
	}
}

func (m MonthlySubmissionModel) toSubmission() dbt.Submission {
	return dbt.Submission{
		ID:               m.ID,
		DriverID:         m.UserID,
		Year:             m.Year,
		Month:            m.Month,
		Status:           dbt.SubmissionStatus(m.Status),
		SubmittedAt:      m.SubmittedAt,
		CompletedAt:      m.CompletedAt,
		CompletedBy:      m.CompletedBy,
		SettlementAmount: m.SettlementAmount,
		TotalDistance:    m.TotalDistance,
		FuelCost:         m.FuelCost,
		DepreciationCost: m.DepreciationCost,
	}
}

func toFuelPriceModel(r *dbt.RateEntry) FuelPriceModel {
	return FuelPriceModel{
		Year:             r.Year,
		Month:            r.Month,
		GasolinePrice:    r.GasolinePrice,
		DieselPrice:      r.DieselPrice,
		LPGPrice:         r.LPGPrice,
		ElectricPrice:    r.ElectricPrice,
		DepreciationCost: r.DepreciationCost,
	}
}

func (m FuelPriceModel) toRateEntry() dbt.RateEntry {
	return dbt.RateEntry{
		Year:             m.Year,
		Month:            m.Month,
		GasolinePrice:    m.GasolinePrice,
		DieselPrice:      m.DieselPrice,
		LPGPrice:         m.LPGPrice,
		ElectricPrice:    m.ElectricPrice,
		DepreciationCost: m.DepreciationCost,
		UpdatedAt:        m.UpdatedAt,
	}
}
