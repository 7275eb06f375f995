package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbt "mileage/db/db"
)

// GORMMileageDBWrapper is a GORM-based PostgreSQL implementation of dbt.MileageDBWrapper.
type GORMMileageDBWrapper struct {
	db *gorm.DB
}

func NewGORMMileageDBWrapper(db *gorm.DB) dbt.MileageDBWrapper {
	return &GORMMileageDBWrapper{
		db: db,
	}
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

func isForeignKey(err error) bool {
	return errors.Is(err, gorm.ErrForeignKeyViolated) ||
		strings.Contains(err.Error(), "violates foreign key constraint")
}

func (pgdb *GORMMileageDBWrapper) Ping(ctx context.Context) error {
	var one int
	if err := pgdb.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return fmt.Errorf("database keep-alive failed: %w", err)
	}
	return nil
}

// --- drivers ---

func (pgdb *GORMMileageDBWrapper) CreateDriver(ctx context.Context, d *dbt.Driver) error {
	model := toUserModel(d)
	result := pgdb.db.WithContext(ctx).Create(&model)
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return fmt.Errorf("driver %s: %w", d.ID, dbt.ErrDuplicate)
		}
		return fmt.Errorf("failed to create driver: %w", result.Error)
	}
	d.CreatedAt, d.UpdatedAt = model.CreatedAt, model.UpdatedAt
	return nil
}

func (pgdb *GORMMileageDBWrapper) firstDriver(ctx context.Context, what string, query string, args ...any) (*dbt.Driver, error) {
	var model UserModel
	result := pgdb.db.WithContext(ctx).Where(query, args...).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", what, dbt.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", what, result.Error)
	}
	return model.toDriver(), nil
}

func (pgdb *GORMMileageDBWrapper) GetDriver(ctx context.Context, id uuid.UUID) (*dbt.Driver, error) {
	return pgdb.firstDriver(ctx, fmt.Sprintf("driver with ID %s", id), "id = ?", id)
}

func (pgdb *GORMMileageDBWrapper) FindDriverByName(ctx context.Context, name string) (*dbt.Driver, error) {
	return pgdb.firstDriver(ctx, fmt.Sprintf("driver named %q", name), "name = ? AND role = ?", name, string(dbt.RoleEmployee))
}

func (pgdb *GORMMileageDBWrapper) FindDriverByEmail(ctx context.Context, email string) (*dbt.Driver, error) {
	return pgdb.firstDriver(ctx, fmt.Sprintf("user with email %q", email), "LOWER(email) = LOWER(?)", email)
}

func (pgdb *GORMMileageDBWrapper) ListDrivers(ctx context.Context, role dbt.Role) ([]dbt.Driver, error) {
	var models []UserModel
	query := pgdb.db.WithContext(ctx).Order("created_at DESC")
	if role != "" {
		query = query.Where("role = ?", string(role))
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	drivers := make([]dbt.Driver, 0, len(models))
	for _, m := range models {
		drivers = append(drivers, *m.toDriver())
	}
	return drivers, nil
}

func (pgdb *GORMMileageDBWrapper) UpdateDriver(ctx context.Context, d *dbt.Driver) error {
	model := toUserModel(d)
	result := pgdb.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", d.ID).
		Select("name", "email", "vehicle_type", "fuel_efficiency", "pin", "password_hash", "updated_at").
		Updates(map[string]any{
			"name":            model.Name,
			"email":           model.Email,
			"vehicle_type":    model.VehicleType,
			"fuel_efficiency": model.FuelEfficiency,
			"pin":             model.PIN,
			"password_hash":   model.PasswordHash,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update driver %s: %w", d.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("driver with ID %s not found for update: %w", d.ID, dbt.ErrNotFound)
	}
	return nil
}

// DeleteDriver removes the driver together with every record and submission
// it owns, in one transaction.
func (pgdb *GORMMileageDBWrapper) DeleteDriver(ctx context.Context, id uuid.UUID) error {
	return pgdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&DriveRecordModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete records of driver %s: %w", id, err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&MonthlySubmissionModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete submissions of driver %s: %w", id, err)
		}
		result := tx.Delete(&UserModel{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete driver %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("driver with ID %s not found for deletion: %w", id, dbt.ErrNotFound)
		}
		return nil
	})
}

// DataLoaderGetDriverList fetches many drivers in one query for the data loader.
func (pgdb *GORMMileageDBWrapper) DataLoaderGetDriverList(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*dbt.Driver, error) {
	var models []UserModel
	if err := pgdb.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve drivers: %w", err)
	}
	result := make(map[uuid.UUID]*dbt.Driver, len(models))
	for _, m := range models {
		result[m.ID] = m.toDriver()
	}
	return result, nil
}

// --- records ---

func (pgdb *GORMMileageDBWrapper) CreateRecord(ctx context.Context, r *dbt.Record) error {
	model := toRecordModel(r)
	result := pgdb.db.WithContext(ctx).Create(&model)
	if result.Error != nil {
		if isForeignKey(result.Error) {
			return fmt.Errorf("driver with ID %s not found for creating record: %w", r.DriverID, dbt.ErrNotFound)
		}
		if isDuplicate(result.Error) {
			return fmt.Errorf("record %s: %w", r.ID, dbt.ErrDuplicate)
		}
		return fmt.Errorf("failed to create record: %w", result.Error)
	}
	r.CreatedAt, r.UpdatedAt = model.CreatedAt, model.UpdatedAt
	return nil
}

func (pgdb *GORMMileageDBWrapper) GetRecord(ctx context.Context, id uuid.UUID) (*dbt.Record, error) {
	var model DriveRecordModel
	result := pgdb.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("record with ID %s: %w", id, dbt.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get record %s: %w", id, result.Error)
	}
	r := model.toRecord()
	return &r, nil
}

func (pgdb *GORMMileageDBWrapper) ListRecords(ctx context.Context, driverID uuid.UUID, from, to time.Time) ([]dbt.Record, error) {
	var models []DriveRecordModel
	result := pgdb.db.WithContext(ctx).
		Where("user_id = ? AND drive_date >= ? AND drive_date <= ?", driverID, from, to).
		Order("drive_date DESC, created_at DESC").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list records for driver %s: %w", driverID, result.Error)
	}
	records := make([]dbt.Record, 0, len(models))
	for _, m := range models {
		records = append(records, m.toRecord())
	}
	return records, nil
}

func (pgdb *GORMMileageDBWrapper) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	result := pgdb.db.WithContext(ctx).Delete(&DriveRecordModel{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete record with ID %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("record with ID %s not found for deletion: %w", id, dbt.ErrNotFound)
	}
	return nil
}

// --- submissions ---

func (pgdb *GORMMileageDBWrapper) CreateSubmission(ctx context.Context, s *dbt.Submission) error {
	model := toSubmissionModel(s)
	result := pgdb.db.WithContext(ctx).Create(&model)
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return fmt.Errorf("submission for driver %s %04d-%02d: %w", s.DriverID, s.Year, s.Month, dbt.ErrDuplicate)
		}
		return fmt.Errorf("failed to create submission: %w", result.Error)
	}
	return nil
}

func (pgdb *GORMMileageDBWrapper) firstSubmission(ctx context.Context, what string, query string, args ...any) (*dbt.Submission, error) {
	var model MonthlySubmissionModel
	result := pgdb.db.WithContext(ctx).Where(query, args...).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", what, dbt.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", what, result.Error)
	}
	s := model.toSubmission()
	return &s, nil
}

func (pgdb *GORMMileageDBWrapper) GetSubmission(ctx context.Context, id uuid.UUID) (*dbt.Submission, error) {
	return pgdb.firstSubmission(ctx, fmt.Sprintf("submission with ID %s", id), "id = ?", id)
}

func (pgdb *GORMMileageDBWrapper) FindSubmission(ctx context.Context, driverID uuid.UUID, year, month int) (*dbt.Submission, error) {
	return pgdb.firstSubmission(ctx,
		fmt.Sprintf("submission for driver %s %04d-%02d", driverID, year, month),
		"user_id = ? AND year = ? AND month = ?", driverID, year, month)
}

func (pgdb *GORMMileageDBWrapper) ListSubmissions(ctx context.Context, filter dbt.SubmissionFilter) ([]dbt.Submission, error) {
	query := pgdb.db.WithContext(ctx).Order("submitted_at ASC")
	if filter.Year != 0 {
		query = query.Where("year = ?", filter.Year)
	}
	if filter.Month != 0 {
		query = query.Where("month = ?", filter.Month)
	}
	if filter.DriverID != nil {
		query = query.Where("user_id = ?", *filter.DriverID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}

	var models []MonthlySubmissionModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	list := make([]dbt.Submission, 0, len(models))
	for _, m := range models {
		list = append(list, m.toSubmission())
	}
	return list, nil
}

func (pgdb *GORMMileageDBWrapper) UpdateSubmission(ctx context.Context, s *dbt.Submission) error {
	model := toSubmissionModel(s)
	result := pgdb.db.WithContext(ctx).Model(&MonthlySubmissionModel{}).Where("id = ?", s.ID).
		Select("status", "completed_at", "completed_by", "settlement_amount", "total_distance", "fuel_cost", "depreciation_cost").
		Updates(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to update submission %s: %w", s.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("submission with ID %s not found for update: %w", s.ID, dbt.ErrNotFound)
	}
	return nil
}

func (pgdb *GORMMileageDBWrapper) DeleteSubmission(ctx context.Context, id uuid.UUID) error {
	result := pgdb.db.WithContext(ctx).Delete(&MonthlySubmissionModel{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete submission %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("submission with ID %s not found for deletion: %w", id, dbt.ErrNotFound)
	}
	return nil
}

// --- rates ---

func (pgdb *GORMMileageDBWrapper) GetRates(ctx context.Context, year, month int) (*dbt.RateEntry, error) {
	var model FuelPriceModel
	result := pgdb.db.WithContext(ctx).First(&model, "year = ? AND month = ?", year, month)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("rates for %04d-%02d: %w", year, month, dbt.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get rates for %04d-%02d: %w", year, month, result.Error)
	}
	r := model.toRateEntry()
	return &r, nil
}

func (pgdb *GORMMileageDBWrapper) ListRates(ctx context.Context, year int) ([]dbt.RateEntry, error) {
	var models []FuelPriceModel
	if err := pgdb.db.WithContext(ctx).Where("year = ?", year).Order("month ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list rates for %d: %w", year, err)
	}
	list := make([]dbt.RateEntry, 0, len(models))
	for _, m := range models {
		list = append(list, m.toRateEntry())
	}
	return list, nil
}

func (pgdb *GORMMileageDBWrapper) UpsertRates(ctx context.Context, r *dbt.RateEntry) error {
	model := toFuelPriceModel(r)
	result := pgdb.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "year"}, {Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"gasoline_price", "diesel_price", "lpg_price", "electric_price", "depreciation_cost", "updated_at",
		}),
	}).Create(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to save rates for %04d-%02d: %w", r.Year, r.Month, result.Error)
	}
	return nil
}
