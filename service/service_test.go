package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mileage/auth"
	dbt "mileage/db/db"
	"mileage/db/mem"
	"mileage/logger"
	"mileage/mq/goch"
	"mileage/mq/mq"
	"mileage/route"
	"mileage/service"
	"mileage/settle"
)

var fixedNow = time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *service.Service
	store  dbt.MileageDBWrapper
	events *goch.GoChanMileageMessageQueueWrapper
	admin  auth.Actor
}

func setupTest(t *testing.T) *fixture {
	t.Helper()
	store := mem.NewInMemoryMileageDBWrapper()
	events := goch.NewGoChanMileageMessageQueueWrapper(16)
	t.Cleanup(func() { events.Close() })

	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	svc := service.New(store, events, route.NewStraightLine(1.3), logger.Discard(), service.Options{
		DefaultDepreciation: 140,
		BulkWorkers:         2,
		Location:            seoul,
	})
	svc.SetClock(func() time.Time { return fixedNow })

	admin, err := svc.CreateAdmin(context.Background(), "Admin", "admin@example.com", "correct horse")
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, events: events, admin: auth.ActorOf(&admin)}
}

func ptr(v float64) *float64 {
	return &v
}

func (f *fixture) addDriver(t *testing.T, name string, vehicle dbt.VehicleType, efficiency float64) auth.Actor {
	t.Helper()
	d, err := f.svc.AddDriver(context.Background(), f.admin, service.DriverInput{
		Name:           name,
		PIN:            "1234",
		VehicleType:    vehicle,
		FuelEfficiency: efficiency,
	})
	require.NoError(t, err)
	return auth.ActorOf(&d)
}

func (f *fixture) saveRates(t *testing.T, year, month int, gasoline, diesel, depreciation float64) {
	t.Helper()
	_, err := f.svc.SaveRates(context.Background(), f.admin, year, month, service.RateInput{
		GasolinePrice:    ptr(gasoline),
		DieselPrice:      ptr(diesel),
		LPGPrice:         ptr(1000),
		ElectricPrice:    ptr(300),
		DepreciationCost: ptr(depreciation),
	})
	require.NoError(t, err)
}

func (f *fixture) addRecord(t *testing.T, driver auth.Actor, day time.Time, km float64) dbt.Record {
	t.Helper()
	r, err := f.svc.CreateRecord(context.Background(), driver, service.RecordInput{
		DriverID:         driver.UserID,
		DriveDate:        day,
		Departure:        "Seoul Station",
		Destination:      "Gangnam",
		ClientName:       "ACME",
		ComputedDistance: km,
	})
	require.NoError(t, err)
	return r
}

func june(day int) time.Time {
	return time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC)
}

func TestSaveRates(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()

	// Test 1: a missing field names the field
	_, err := f.svc.SaveRates(ctx, f.admin, 2025, 6, service.RateInput{GasolinePrice: ptr(1650)})
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "dieselPrice", verr.Field)

	// Test 2: negative values are rejected
	_, err = f.svc.SaveRates(ctx, f.admin, 2025, 6, service.RateInput{
		GasolinePrice: ptr(-1), DieselPrice: ptr(1), LPGPrice: ptr(1), ElectricPrice: ptr(1), DepreciationCost: ptr(0),
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "gasolinePrice", verr.Field)

	// Test 3: invalid month
	f.saveRates(t, 2025, 6, 1650, 1500, 0)
	_, err = f.svc.GetRates(ctx, f.admin, 2025, 13)
	require.ErrorAs(t, err, &verr)

	// Test 4: upsert overwrites
	f.saveRates(t, 2025, 6, 1700, 1500, 150)
	got, err := f.svc.GetRates(ctx, f.admin, 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, 1700.0, got.GasolinePrice)
	assert.Equal(t, 150.0, got.DepreciationCost)

	list, err := f.svc.ListRates(ctx, f.admin, 2025)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// Test 5: employees cannot write rates
	emp := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)
	_, err = f.svc.SaveRates(ctx, emp, 2025, 6, service.RateInput{})
	assert.ErrorIs(t, err, service.ErrForbidden)

	// Test 6: absent month
	_, err = f.svc.GetRates(ctx, emp, 2024, 1)
	assert.ErrorIs(t, err, dbt.ErrNotFound)
}

func TestAddDriverValidation(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    service.DriverInput
		field string
	}{
		{"blank name", service.DriverInput{Name: "  ", PIN: "1234", VehicleType: dbt.VehicleGasoline, FuelEfficiency: 10}, "name"},
		{"short pin", service.DriverInput{Name: "Kim", PIN: "123", VehicleType: dbt.VehicleGasoline, FuelEfficiency: 10}, "pin"},
		{"letter pin", service.DriverInput{Name: "Kim", PIN: "12a4", VehicleType: dbt.VehicleGasoline, FuelEfficiency: 10}, "pin"},
		{"unknown vehicle", service.DriverInput{Name: "Kim", PIN: "1234", VehicleType: "hydrogen", FuelEfficiency: 10}, "vehicleType"},
		{"zero efficiency", service.DriverInput{Name: "Kim", PIN: "1234", VehicleType: dbt.VehicleGasoline, FuelEfficiency: 0}, "fuelEfficiency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddDriver(ctx, f.admin, tt.in)
			var verr *service.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	f.addDriver(t, "김철수", dbt.VehicleLPG, 8.5)
	_, err := f.svc.AddDriver(ctx, f.admin, service.DriverInput{Name: "김철수", PIN: "0000", VehicleType: dbt.VehicleLPG, FuelEfficiency: 9})
	assert.ErrorIs(t, err, dbt.ErrDuplicate)

	drivers, err := f.svc.ListDrivers(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, drivers, 1, "admins are not listed as drivers")
}

func TestUpdateDriver(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)
	f.addDriver(t, "Lee", dbt.VehicleGasoline, 10)

	updated, err := f.svc.UpdateDriver(ctx, f.admin, kim.UserID, service.DriverInput{
		Name: "Kim", PIN: "4321", VehicleType: dbt.VehicleDiesel, FuelEfficiency: 14,
	})
	require.NoError(t, err)
	assert.Equal(t, dbt.VehicleDiesel, updated.VehicleType)
	assert.Equal(t, "4321", updated.PIN)

	_, err = f.svc.UpdateDriver(ctx, f.admin, kim.UserID, service.DriverInput{
		Name: "Lee", PIN: "4321", VehicleType: dbt.VehicleDiesel, FuelEfficiency: 14,
	})
	assert.ErrorIs(t, err, dbt.ErrDuplicate)

	_, err = f.svc.UpdateDriver(ctx, f.admin, uuid.New(), service.DriverInput{
		Name: "Park", PIN: "4321", VehicleType: dbt.VehicleDiesel, FuelEfficiency: 14,
	})
	assert.ErrorIs(t, err, dbt.ErrNotFound)
}

func TestLogin(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)

	d, err := f.svc.LoginEmployee(ctx, "Kim", "1234")
	require.NoError(t, err)
	assert.Equal(t, kim.UserID, d.ID)

	_, err = f.svc.LoginEmployee(ctx, "Kim", "9999")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = f.svc.LoginEmployee(ctx, "Nobody", "1234")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	a, err := f.svc.LoginAdmin(ctx, "admin@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, dbt.RoleAdmin, a.Role)
	_, err = f.svc.LoginAdmin(ctx, "admin@example.com", "wrong horse")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

// 200 km at 10 km/l and 1650 per litre plus 140 per km.
func TestCompleteSettlementExample(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)
	f.saveRates(t, 2025, 6, 1650, 1500, 0)
	f.addRecord(t, kim, june(2), 120)
	f.addRecord(t, kim, june(20), 80)
	f.addRecord(t, kim, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), 500)

	sub, err := f.svc.Submit(ctx, kim, kim.UserID, 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, dbt.SubmissionPending, sub.Status)
	assert.Equal(t, fixedNow, sub.SubmittedAt)

	done, err := f.svc.Complete(ctx, f.admin, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, dbt.SubmissionCompleted, done.Status)
	require.NotNil(t, done.SettlementAmount)
	assert.Equal(t, int64(61000), *done.SettlementAmount)
	assert.Equal(t, int64(33000), *done.FuelCost)
	assert.Equal(t, int64(28000), *done.DepreciationCost)
	assert.Equal(t, 200.0, *done.TotalDistance)
	require.NotNil(t, done.CompletedBy)
	assert.Equal(t, f.admin.UserID, *done.CompletedBy)

	// employees cannot settle
	_, err = f.svc.Complete(ctx, kim, sub.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestCompleteMissingRates(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)
	f.addRecord(t, kim, june(2), 100)
	sub, err := f.svc.Submit(ctx, kim, kim.UserID, 2025, 6)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, f.admin, sub.ID)
	assert.ErrorIs(t, err, settle.ErrMissingRates)

	got, err := f.svc.GetSubmission(ctx, kim, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, dbt.SubmissionPending, got.Status)
	assert.Nil(t, got.SettlementAmount)
}

func TestCompleteMissingPriceOrEfficiency(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	f.saveRates(t, 2025, 6, 1650, 0, 140)

	// Test 1: diesel price is zero
	park := f.addDriver(t, "Park", dbt.VehicleDiesel, 12)
	f.addRecord(t, park, june(3), 50)
	sub, err := f.svc.Submit(ctx, park, park.UserID, 2025, 6)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, f.admin, sub.ID)
	assert.ErrorIs(t, err, settle.ErrMissingFuelPrice)

	// Test 2: efficiency was zeroed directly in storage
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)
	d, err := f.store.GetDriver(ctx, kim.UserID)
	require.NoError(t, err)
	d.FuelEfficiency = 0
	require.NoError(t, f.store.UpdateDriver(ctx, d))
	sub2, err := f.svc.Submit(ctx, kim, kim.UserID, 2025, 6)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, f.admin, sub2.ID)
	assert.ErrorIs(t, err, settle.ErrMissingFuelEfficiency)

	for _, id := range []uuid.UUID{sub.ID, sub2.ID} {
		got, err := f.svc.GetSubmission(ctx, f.admin, id)
		require.NoError(t, err)
		assert.Equal(t, dbt.SubmissionPending, got.Status)
		assert.Nil(t, got.CompletedAt)
	}
}

func TestSubmissionStateMachine(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)
	f.saveRates(t, 2025, 6, 1650, 1500, 140)

	// Test 1: cancelling an absent month
	err := f.svc.CancelSubmission(ctx, kim, kim.UserID, 2025, 6)
	assert.ErrorIs(t, err, service.ErrInvalidState)

	// Test 2: double submit
	sub, err := f.svc.Submit(ctx, kim, kim.UserID, 2025, 6)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, kim, kim.UserID, 2025, 6)
	assert.ErrorIs(t, err, service.ErrDuplicateSubmission)

	// Test 3: cancel completion of a pending month
	_, err = f.svc.CancelCompletion(ctx, f.admin, sub.ID)
	assert.ErrorIs(t, err, service.ErrInvalidState)

	// Test 4: cancel then resubmit
	require.NoError(t, f.svc.CancelSubmission(ctx, kim, kim.UserID, 2025, 6))
	_, err = f.svc.FindSubmission(ctx, kim, kim.UserID, 2025, 6)
	assert.ErrorIs(t, err, dbt.ErrNotFound)
	sub, err = f.svc.Submit(ctx, kim, kim.UserID, 2025, 6)
	require.NoError(t, err)

	// Test 5: completed months cannot be completed or cancelled by the driver
	_, err = f.svc.Complete(ctx, f.admin, sub.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, f.admin, sub.ID)
	assert.ErrorIs(t, err, service.ErrInvalidState)
	err = f.svc.CancelSubmission(ctx, kim, kim.UserID, 2025, 6)
	assert.ErrorIs(t, err, service.ErrInvalidState)
	_, err = f.svc.Submit(ctx, kim, kim.UserID, 2025, 6)
	assert.ErrorIs(t, err, service.ErrDuplicateSubmission)

	// Test 6: admin reverts the completion
	reverted, err := f.svc.CancelCompletion(ctx, f.admin, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, dbt.SubmissionPending, reverted.Status)
	assert.Nil(t, reverted.SettlementAmount)
	assert.Nil(t, reverted.CompletedBy)
	assert.Nil(t, reverted.CompletedAt)

	// Test 7: other drivers cannot touch the month
	lee := f.addDriver(t, "Lee", dbt.VehicleGasoline, 10)
	err = f.svc.CancelSubmission(ctx, lee, kim.UserID, 2025, 6)
	assert.ErrorIs(t, err, service.ErrForbidden)
	_, err = f.svc.GetSubmission(ctx, lee, sub.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestRecordLocks(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)
	f.saveRates(t, 2025, 6, 1650, 1500, 140)
	r := f.addRecord(t, kim, june(2), 10)
	assert.Equal(t, dbt.RecordDraft, r.Status)

	sub, err := f.svc.Submit(ctx, kim, kim.UserID, 2025, 6)
	require.NoError(t, err)

	// Test 1: pending locks
	_, err = f.svc.CreateRecord(ctx, kim, service.RecordInput{
		DriverID: kim.UserID, DriveDate: june(5), Departure: "A", Destination: "B", ClientName: "C", ComputedDistance: 1,
	})
	assert.ErrorIs(t, err, service.ErrSubmissionPending)
	assert.ErrorIs(t, f.svc.DeleteRecord(ctx, kim, r.ID), service.ErrSubmissionPending)

	records, err := f.svc.ListRecords(ctx, kim, kim.UserID, 2025, 6)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, dbt.RecordPending, records[0].Status)

	// Test 2: completed locks
	_, err = f.svc.Complete(ctx, f.admin, sub.ID)
	require.NoError(t, err)
	_, err = f.svc.CreateRecord(ctx, f.admin, service.RecordInput{
		DriverID: kim.UserID, DriveDate: june(5), Departure: "A", Destination: "B", ClientName: "C", ComputedDistance: 1,
	})
	assert.ErrorIs(t, err, service.ErrSettlementLocked)
	assert.ErrorIs(t, f.svc.DeleteRecord(ctx, kim, r.ID), service.ErrSettlementLocked)

	records, err = f.svc.ListRecords(ctx, kim, kim.UserID, 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, dbt.RecordSettled, records[0].Status)

	// Test 3: other months stay open
	f.addRecord(t, kim, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), 5)
}

func TestCreateRecordDistance(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)
	base := service.RecordInput{
		DriverID: kim.UserID, DriveDate: june(2), Departure: "Seoul", Destination: "Suwon", ClientName: "ACME",
	}

	// Test 1: manual value wins over computed and round trip
	in := base
	in.ComputedDistance = 30
	in.RoundTrip = true
	in.ManualDistance = " 42.5 "
	r, err := f.svc.CreateRecord(ctx, kim, in)
	require.NoError(t, err)
	assert.Equal(t, 42.5, r.Distance)
	assert.True(t, r.IsManualDistance)

	// Test 2: computed round trip is doubled
	in.ManualDistance = ""
	r, err = f.svc.CreateRecord(ctx, kim, in)
	require.NoError(t, err)
	assert.Equal(t, 60.0, r.Distance)
	assert.False(t, r.IsManualDistance)

	// Test 3: route estimate, one degree of latitude with road factor 1.3
	in = base
	in.Route = []route.Stop{{Lat: 37, Lng: 127}, {Lat: 38, Lng: 127}}
	r, err = f.svc.CreateRecord(ctx, kim, in)
	require.NoError(t, err)
	assert.InDelta(t, 144.7, r.Distance, 0.05)

	// Test 4: bad manual value
	in = base
	in.ManualDistance = "far"
	_, err = f.svc.CreateRecord(ctx, kim, in)
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "distance", verr.Field)

	// Test 5: departure is required
	in = base
	in.Departure = "  "
	_, err = f.svc.CreateRecord(ctx, kim, in)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "departure", verr.Field)

	// Test 6: manual values are kept to 0.1 km
	in = base
	in.ManualDistance = "12.34"
	r, err = f.svc.CreateRecord(ctx, kim, in)
	require.NoError(t, err)
	assert.Equal(t, 12.3, r.Distance)

	// Test 7: someone else's driver id
	lee := f.addDriver(t, "Lee", dbt.VehicleGasoline, 10)
	_, err = f.svc.CreateRecord(ctx, lee, base)
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestCreateRecordFreeText(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)

	r, err := f.svc.CreateRecord(ctx, kim, service.RecordInput{
		DriverID:         kim.UserID,
		DriveDate:        june(4),
		Departure:        "서울 강남구 역삼동 1~3",
		Destination:      "경기 수원시 팔달구 [본점]",
		Waypoints:        []string{"판교역 #2 출구!"},
		ClientName:       " A+ Consulting ",
		ComputedDistance: 35,
	})
	require.NoError(t, err)
	assert.Equal(t, "서울 강남구 역삼동 1~3", r.Departure)
	assert.Equal(t, "A+ Consulting", r.ClientName)
	assert.Equal(t, []string{"판교역 #2 출구!"}, r.Waypoints)

	// client name is optional
	r, err = f.svc.CreateRecord(ctx, kim, service.RecordInput{
		DriverID:         kim.UserID,
		DriveDate:        june(5),
		Departure:        "Seoul",
		Destination:      "Suwon",
		ComputedDistance: 35,
	})
	require.NoError(t, err)
	assert.Empty(t, r.ClientName)

	// driver names stay restricted
	_, err = f.svc.AddDriver(ctx, f.admin, service.DriverInput{
		Name: "Kim<script>", PIN: "1234", VehicleType: dbt.VehicleGasoline, FuelEfficiency: 10,
	})
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
}

func TestCreateRecordDefaultsToToday(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)

	// 2025-06-30 20:00 UTC is already July 1st in Seoul
	f.svc.SetClock(func() time.Time { return time.Date(2025, 6, 30, 20, 0, 0, 0, time.UTC) })
	r, err := f.svc.CreateRecord(ctx, kim, service.RecordInput{
		DriverID: kim.UserID, Departure: "A", Destination: "B", ClientName: "C", ComputedDistance: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), r.DriveDate)
}

func TestDeleteDriverCascade(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)
	lee := f.addDriver(t, "Lee", dbt.VehicleGasoline, 10)
	f.addRecord(t, kim, june(1), 10)
	f.addRecord(t, lee, june(1), 20)
	_, err := f.svc.Submit(ctx, kim, kim.UserID, 2025, 6)
	require.NoError(t, err)
	leeSub, err := f.svc.Submit(ctx, lee, lee.UserID, 2025, 6)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteDriver(ctx, kim, lee.UserID), service.ErrForbidden)
	require.NoError(t, f.svc.DeleteDriver(ctx, f.admin, kim.UserID))

	_, err = f.store.GetDriver(ctx, kim.UserID)
	assert.ErrorIs(t, err, dbt.ErrNotFound)
	subs, err := f.svc.ListSubmissions(ctx, f.admin, 2025, 6)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, leeSub.ID, subs[0].ID)

	records, err := f.svc.ListRecords(ctx, lee, lee.UserID, 2025, 6)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 20.0, records[0].Distance)
}

func TestBulkSettleIsolation(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	f.saveRates(t, 2025, 6, 1650, 0, 140)

	drivers := []auth.Actor{
		f.addDriver(t, "Kim", dbt.VehicleGasoline, 10),
		f.addDriver(t, "Lee", dbt.VehicleGasoline, 12),
		f.addDriver(t, "Park", dbt.VehicleDiesel, 15),
	}
	for _, d := range drivers {
		f.addRecord(t, d, june(10), 100)
		_, err := f.svc.Submit(ctx, d, d.UserID, 2025, 6)
		require.NoError(t, err)
	}

	res, err := f.svc.BulkSettle(ctx, f.admin, 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.FailCount)
	require.Len(t, res.Items, 3)

	for _, item := range res.Items {
		got, err := f.svc.GetSubmission(ctx, f.admin, item.SubmissionID)
		require.NoError(t, err)
		if item.DriverID == drivers[2].UserID {
			assert.True(t, errors.Is(item.Err, settle.ErrMissingFuelPrice))
			assert.Equal(t, dbt.SubmissionPending, got.Status)
			continue
		}
		require.NoError(t, item.Err)
		assert.Equal(t, dbt.SubmissionCompleted, got.Status)
		assert.Equal(t, item.Amount, *got.SettlementAmount)
	}

	// a second run only sees the one still pending
	res, err = f.svc.BulkSettle(ctx, f.admin, 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, 0, res.SuccessCount)
	assert.Equal(t, 1, res.FailCount)
}

func TestCloseMonth(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)
	lee := f.addDriver(t, "Lee", dbt.VehicleGasoline, 10)
	for _, d := range []auth.Actor{kim, lee} {
		_, err := f.svc.Submit(ctx, d, d.UserID, 2025, 6)
		require.NoError(t, err)
	}

	n, err := f.svc.CloseMonth(ctx, f.admin, 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	subs, err := f.svc.ListSubmissions(ctx, f.admin, 2025, 6)
	require.NoError(t, err)
	for _, s := range subs {
		assert.Equal(t, dbt.SubmissionCompleted, s.Status)
		assert.Nil(t, s.SettlementAmount, "closing does not compute amounts")
		assert.NotNil(t, s.CompletedAt)
	}

	n, err = f.svc.CloseMonth(ctx, f.admin, 2025, 6)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.CloseMonth(ctx, kim, 2025, 6)
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestListSubmissionsScope(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)
	lee := f.addDriver(t, "Lee", dbt.VehicleGasoline, 10)
	for _, d := range []auth.Actor{kim, lee} {
		_, err := f.svc.Submit(ctx, d, d.UserID, 2025, 6)
		require.NoError(t, err)
	}

	mine, err := f.svc.ListSubmissions(ctx, kim, 2025, 6)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, kim.UserID, mine[0].DriverID)

	all, err := f.svc.ListSubmissions(ctx, f.admin, 2025, 6)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMonthSummary(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)
	f.addRecord(t, kim, june(1), 10.25)
	f.addRecord(t, kim, june(2), 20.1)

	sum, err := f.svc.MonthSummary(ctx, kim, kim.UserID, 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.RecordCount)
	assert.Equal(t, 2, sum.DraftCount)
	assert.InDelta(t, 30.4, sum.TotalDistance, 1e-9)
	assert.Nil(t, sum.Submission)

	_, err = f.svc.Submit(ctx, kim, kim.UserID, 2025, 6)
	require.NoError(t, err)
	sum, err = f.svc.MonthSummary(ctx, kim, kim.UserID, 2025, 6)
	require.NoError(t, err)
	assert.Zero(t, sum.DraftCount)
	require.NotNil(t, sum.Submission)
}

func TestSubmissionEvents(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)

	q := f.events.GetSubmissionMessageQueue()
	subID, ch, err := q.Subscribe(kim.UserID)
	require.NoError(t, err)
	defer q.DeSubscribe(subID)

	sub, err := f.svc.Submit(ctx, kim, kim.UserID, 2025, 6)
	require.NoError(t, err)

	select {
	case msg := <-ch:
		assert.Equal(t, sub.ID, msg.ID)
		assert.Equal(t, mq.ActionCreate, msg.Action)
		assert.Equal(t, string(dbt.SubmissionPending), msg.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no submission event received")
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)
	require.NoError(t, f.events.Close())

	_, err := f.svc.Submit(ctx, kim, kim.UserID, 2025, 6)
	assert.NoError(t, err)
}

func TestReports(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	kim := f.addDriver(t, "Kim", dbt.VehicleGasoline, 10)
	f.addDriver(t, "Lee", dbt.VehicleGasoline, 10)
	f.saveRates(t, 2025, 6, 1650, 1500, 0)
	f.addRecord(t, kim, june(3), 200)
	sub, err := f.svc.Submit(ctx, kim, kim.UserID, 2025, 6)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, f.admin, sub.ID)
	require.NoError(t, err)

	m, err := f.svc.MonthlyReport(ctx, f.admin, 2025, 6)
	require.NoError(t, err)
	require.Len(t, m.Drivers, 2, "the admin has no data and is left out")
	require.NotNil(t, m.Rates)

	_, err = f.svc.MonthlyReport(ctx, kim, 2025, 6)
	assert.ErrorIs(t, err, service.ErrForbidden)

	st, err := f.svc.Statement(ctx, kim, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kim", st.Driver.Name)
	assert.Equal(t, int64(61000), *st.Submission.SettlementAmount)
	assert.Len(t, st.Records, 1)
}
