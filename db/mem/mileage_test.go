package mem_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "mileage/db/db"
	"mileage/db/mem"
)

func setupTest() dbt.MileageDBWrapper {
	return mem.NewInMemoryMileageDBWrapper()
}

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func newDriver(t *testing.T, db dbt.MileageDBWrapper, name string) *dbt.Driver {
	t.Helper()
	d := &dbt.Driver{
		ID:             uuid.New(),
		Name:           name,
		Role:           dbt.RoleEmployee,
		VehicleType:    dbt.VehicleGasoline,
		FuelEfficiency: 10,
		PIN:            "1234",
	}
	require.NoError(t, db.CreateDriver(context.Background(), d))
	return d
}

func TestCreateDriver(t *testing.T) {
	db := setupTest()
	ctx := context.Background()

	// Test 1: Successfully create a driver
	d := newDriver(t, db, "Kim")
	got, err := db.GetDriver(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kim", got.Name)
	assert.False(t, got.CreatedAt.IsZero())

	// Test 2: Duplicate ID fails
	err = db.CreateDriver(ctx, d)
	assert.True(t, errors.Is(err, dbt.ErrDuplicate))
	assert.Contains(t, err.Error(), "already exists")
}

func TestFindDriver(t *testing.T) {
	db := setupTest()
	ctx := context.Background()
	newDriver(t, db, "Lee")
	admin := &dbt.Driver{ID: uuid.New(), Name: "Boss", Email: "boss@example.com", Role: dbt.RoleAdmin}
	require.NoError(t, db.CreateDriver(ctx, admin))

	// Test 1: by name only matches employees
	got, err := db.FindDriverByName(ctx, "Lee")
	require.NoError(t, err)
	assert.Equal(t, "Lee", got.Name)
	_, err = db.FindDriverByName(ctx, "Boss")
	assert.True(t, errors.Is(err, dbt.ErrNotFound))

	// Test 2: by email is case insensitive
	got, err = db.FindDriverByEmail(ctx, "BOSS@example.com")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)

	// Test 3: list filters by role
	list, err := db.ListDrivers(ctx, dbt.RoleEmployee)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdateDriver(t *testing.T) {
	db := setupTest()
	ctx := context.Background()
	d := newDriver(t, db, "Park")

	// Test 1: Successfully update
	d.FuelEfficiency = 14.2
	d.VehicleType = dbt.VehicleDiesel
	require.NoError(t, db.UpdateDriver(ctx, d))
	got, err := db.GetDriver(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 14.2, got.FuelEfficiency)
	assert.Equal(t, dbt.VehicleDiesel, got.VehicleType)

	// Test 2: Unknown driver
	err = db.UpdateDriver(ctx, &dbt.Driver{ID: uuid.New()})
	assert.True(t, errors.Is(err, dbt.ErrNotFound))
	assert.Contains(t, err.Error(), "not found for update")
}

func TestDeleteDriverCascades(t *testing.T) {
	db := setupTest()
	ctx := context.Background()
	a := newDriver(t, db, "A")
	b := newDriver(t, db, "B")

	for _, d := range []*dbt.Driver{a, b} {
		require.NoError(t, db.CreateRecord(ctx, &dbt.Record{ID: uuid.New(), DriverID: d.ID, DriveDate: date(2024, 5, 3), Distance: 12}))
		require.NoError(t, db.CreateSubmission(ctx, &dbt.Submission{ID: uuid.New(), DriverID: d.ID, Year: 2024, Month: 5, Status: dbt.SubmissionPending}))
	}

	// Test 1: Delete A removes A's data only
	require.NoError(t, db.DeleteDriver(ctx, a.ID))
	_, err := db.GetDriver(ctx, a.ID)
	assert.True(t, errors.Is(err, dbt.ErrNotFound))

	recs, err := db.ListRecords(ctx, a.ID, date(2024, 5, 1), date(2024, 5, 31))
	require.NoError(t, err)
	assert.Empty(t, recs)
	_, err = db.FindSubmission(ctx, a.ID, 2024, 5)
	assert.True(t, errors.Is(err, dbt.ErrNotFound))

	recs, err = db.ListRecords(ctx, b.ID, date(2024, 5, 1), date(2024, 5, 31))
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	_, err = db.FindSubmission(ctx, b.ID, 2024, 5)
	assert.NoError(t, err)

	// Test 2: Deleting again fails
	err = db.DeleteDriver(ctx, a.ID)
	assert.Contains(t, err.Error(), "not found for deletion")
}

func TestRecords(t *testing.T) {
	db := setupTest()
	ctx := context.Background()
	d := newDriver(t, db, "Choi")

	early := &dbt.Record{ID: uuid.New(), DriverID: d.ID, DriveDate: date(2024, 5, 1), Waypoints: []string{"A", "B"}, Distance: 5}
	late := &dbt.Record{ID: uuid.New(), DriverID: d.ID, DriveDate: date(2024, 5, 31), Distance: 7}
	other := &dbt.Record{ID: uuid.New(), DriverID: d.ID, DriveDate: date(2024, 6, 1), Distance: 9}
	for _, r := range []*dbt.Record{early, late, other} {
		require.NoError(t, db.CreateRecord(ctx, r))
	}

	// Test 1: month bounds are inclusive and newest first
	list, err := db.ListRecords(ctx, d.ID, date(2024, 5, 1), date(2024, 5, 31))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, late.ID, list[0].ID)
	assert.Equal(t, early.ID, list[1].ID)

	// Test 2: returned waypoints are copies
	list[1].Waypoints[0] = "changed"
	got, err := db.GetRecord(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, got.Waypoints)

	// Test 3: record for unknown driver is rejected
	err = db.CreateRecord(ctx, &dbt.Record{ID: uuid.New(), DriverID: uuid.New()})
	assert.True(t, errors.Is(err, dbt.ErrNotFound))

	// Test 4: delete
	require.NoError(t, db.DeleteRecord(ctx, early.ID))
	_, err = db.GetRecord(ctx, early.ID)
	assert.True(t, errors.Is(err, dbt.ErrNotFound))
	assert.Error(t, db.DeleteRecord(ctx, early.ID))
}

func TestSubmissions(t *testing.T) {
	db := setupTest()
	ctx := context.Background()
	d := newDriver(t, db, "Jung")

	s := &dbt.Submission{ID: uuid.New(), DriverID: d.ID, Year: 2024, Month: 5, Status: dbt.SubmissionPending, SubmittedAt: time.Now()}
	require.NoError(t, db.CreateSubmission(ctx, s))

	// Test 1: one row per driver and month
	err := db.CreateSubmission(ctx, &dbt.Submission{ID: uuid.New(), DriverID: d.ID, Year: 2024, Month: 5})
	assert.True(t, errors.Is(err, dbt.ErrDuplicate))

	// Test 2: update keeps the natural key
	amount := int64(61000)
	s.Status = dbt.SubmissionCompleted
	s.SettlementAmount = &amount
	s.Month = 9
	require.NoError(t, db.UpdateSubmission(ctx, s))
	got, err := db.FindSubmission(ctx, d.ID, 2024, 5)
	require.NoError(t, err)
	assert.Equal(t, dbt.SubmissionCompleted, got.Status)
	assert.Equal(t, int64(61000), *got.SettlementAmount)

	// Test 3: filter by status
	pending := dbt.SubmissionPending
	list, err := db.ListSubmissions(ctx, dbt.SubmissionFilter{Year: 2024, Month: 5, Status: &pending})
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = db.ListSubmissions(ctx, dbt.SubmissionFilter{Year: 2024, Month: 5})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// Test 4: delete frees the slot
	require.NoError(t, db.DeleteSubmission(ctx, s.ID))
	_, err = db.GetSubmission(ctx, s.ID)
	assert.True(t, errors.Is(err, dbt.ErrNotFound))
	assert.NoError(t, db.CreateSubmission(ctx, &dbt.Submission{ID: uuid.New(), DriverID: d.ID, Year: 2024, Month: 5}))
}

func TestRates(t *testing.T) {
	db := setupTest()
	ctx := context.Background()

	_, err := db.GetRates(ctx, 2024, 5)
	assert.True(t, errors.Is(err, dbt.ErrNotFound))

	require.NoError(t, db.UpsertRates(ctx, &dbt.RateEntry{Year: 2024, Month: 5, GasolinePrice: 1650}))
	require.NoError(t, db.UpsertRates(ctx, &dbt.RateEntry{Year: 2024, Month: 5, GasolinePrice: 1700, DepreciationCost: 150}))
	require.NoError(t, db.UpsertRates(ctx, &dbt.RateEntry{Year: 2024, Month: 1, GasolinePrice: 1600}))

	got, err := db.GetRates(ctx, 2024, 5)
	require.NoError(t, err)
	assert.Equal(t, 1700.0, got.GasolinePrice)
	assert.Equal(t, 150.0, got.DepreciationCost)

	list, err := db.ListRates(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Month)
}

func TestDataLoaderGetDriverList(t *testing.T) {
	db := setupTest()
	d := newDriver(t, db, "Yoon")
	missing := uuid.New()

	got, err := db.DataLoaderGetDriverList(context.Background(), []uuid.UUID{d.ID, missing})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "Yoon", got[d.ID].Name)
}
