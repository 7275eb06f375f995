package mem

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	dbt "mileage/db/db"
)

type periodKey struct {
	year  int
	month int
}

type submissionKey struct {
	driverID uuid.UUID
	year     int
	month    int
}

// inMemoryMileageDBWrapper is an in-memory implementation of dbt.MileageDBWrapper.
// Every getter hands out copies so callers never alias stored values.
type inMemoryMileageDBWrapper struct {
	drivers     map[uuid.UUID]*dbt.Driver
	records     map[uuid.UUID]*dbt.Record
	submissions map[uuid.UUID]*dbt.Submission
	subIndex    map[submissionKey]uuid.UUID
	rates       map[periodKey]*dbt.RateEntry

	mu sync.RWMutex
}

func NewInMemoryMileageDBWrapper() dbt.MileageDBWrapper {
	return &inMemoryMileageDBWrapper{
		drivers:     make(map[uuid.UUID]*dbt.Driver),
		records:     make(map[uuid.UUID]*dbt.Record),
		submissions: make(map[uuid.UUID]*dbt.Submission),
		subIndex:    make(map[submissionKey]uuid.UUID),
		rates:       make(map[periodKey]*dbt.RateEntry),
	}
}

func (db *inMemoryMileageDBWrapper) Ping(_ context.Context) error {
	return nil
}

func copyRecord(r *dbt.Record) dbt.Record {
	c := *r
	c.Waypoints = append([]string(nil), r.Waypoints...)
	return c
}

// --- drivers ---

func (db *inMemoryMileageDBWrapper) CreateDriver(_ context.Context, d *dbt.Driver) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.drivers[d.ID]; exists {
		return fmt.Errorf("driver with ID %s: %w", d.ID, dbt.ErrDuplicate)
	}
	now := time.Now()
	c := *d
	c.CreatedAt, c.UpdatedAt = now, now
	db.drivers[d.ID] = &c
	d.CreatedAt, d.UpdatedAt = now, now
	return nil
}

func (db *inMemoryMileageDBWrapper) GetDriver(_ context.Context, id uuid.UUID) (*dbt.Driver, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	d, exists := db.drivers[id]
	if !exists {
		return nil, fmt.Errorf("driver with ID %s: %w", id, dbt.ErrNotFound)
	}
	c := *d
	return &c, nil
}

func (db *inMemoryMileageDBWrapper) findDriver(match func(d *dbt.Driver) bool) *dbt.Driver {
	for _, d := range db.drivers {
		if match(d) {
			c := *d
			return &c
		}
	}
	return nil
}

func (db *inMemoryMileageDBWrapper) FindDriverByName(_ context.Context, name string) (*dbt.Driver, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if d := db.findDriver(func(d *dbt.Driver) bool { return d.Role == dbt.RoleEmployee && d.Name == name }); d != nil {
		return d, nil
	}
	return nil, fmt.Errorf("driver named %q: %w", name, dbt.ErrNotFound)
}

func (db *inMemoryMileageDBWrapper) FindDriverByEmail(_ context.Context, email string) (*dbt.Driver, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if d := db.findDriver(func(d *dbt.Driver) bool { return strings.EqualFold(d.Email, email) }); d != nil {
		return d, nil
	}
	return nil, fmt.Errorf("user with email %q: %w", email, dbt.ErrNotFound)
}

func (db *inMemoryMileageDBWrapper) ListDrivers(_ context.Context, role dbt.Role) ([]dbt.Driver, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	list := make([]dbt.Driver, 0, len(db.drivers))
	for _, d := range db.drivers {
		if role == "" || d.Role == role {
			list = append(list, *d)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (db *inMemoryMileageDBWrapper) UpdateDriver(_ context.Context, d *dbt.Driver) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, exists := db.drivers[d.ID]
	if !exists {
		return fmt.Errorf("driver with ID %s not found for update: %w", d.ID, dbt.ErrNotFound)
	}
	c := *d
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	db.drivers[d.ID] = &c
	return nil
}

func (db *inMemoryMileageDBWrapper) DeleteDriver(_ context.Context, id uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.drivers[id]; !exists {
		return fmt.Errorf("driver with ID %s not found for deletion: %w", id, dbt.ErrNotFound)
	}
	for rid, r := range db.records {
		if r.DriverID == id {
			delete(db.records, rid)
		}
	}
	for key, sid := range db.subIndex {
		if key.driverID == id {
			delete(db.submissions, sid)
			delete(db.subIndex, key)
		}
	}
	delete(db.drivers, id)
	return nil
}

func (db *inMemoryMileageDBWrapper) DataLoaderGetDriverList(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*dbt.Driver, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := make(map[uuid.UUID]*dbt.Driver, len(ids))
	for _, id := range ids {
		if d, ok := db.drivers[id]; ok {
			c := *d
			result[id] = &c
		}
	}
	return result, nil
}

// --- records ---

func (db *inMemoryMileageDBWrapper) CreateRecord(_ context.Context, r *dbt.Record) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.records[r.ID]; exists {
		return fmt.Errorf("record with ID %s: %w", r.ID, dbt.ErrDuplicate)
	}
	if _, exists := db.drivers[r.DriverID]; !exists {
		return fmt.Errorf("driver with ID %s not found for creating record: %w", r.DriverID, dbt.ErrNotFound)
	}
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now
	c := copyRecord(r)
	db.records[r.ID] = &c
	return nil
}

func (db *inMemoryMileageDBWrapper) GetRecord(_ context.Context, id uuid.UUID) (*dbt.Record, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	r, exists := db.records[id]
	if !exists {
		return nil, fmt.Errorf("record with ID %s: %w", id, dbt.ErrNotFound)
	}
	c := copyRecord(r)
	return &c, nil
}

func (db *inMemoryMileageDBWrapper) ListRecords(_ context.Context, driverID uuid.UUID, from, to time.Time) ([]dbt.Record, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	list := []dbt.Record{}
	for _, r := range db.records {
		if r.DriverID != driverID || r.DriveDate.Before(from) || r.DriveDate.After(to) {
			continue
		}
		list = append(list, copyRecord(r))
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].DriveDate.Equal(list[j].DriveDate) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].DriveDate.After(list[j].DriveDate)
	})
	return list, nil
}

func (db *inMemoryMileageDBWrapper) DeleteRecord(_ context.Context, id uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.records[id]; !exists {
		return fmt.Errorf("record with ID %s not found for deletion: %w", id, dbt.ErrNotFound)
	}
	delete(db.records, id)
	return nil
}

// --- submissions ---

func keyOf(s *dbt.Submission) submissionKey {
	return submissionKey{driverID: s.DriverID, year: s.Year, month: s.Month}
}

func (db *inMemoryMileageDBWrapper) CreateSubmission(_ context.Context, s *dbt.Submission) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.subIndex[keyOf(s)]; exists {
		return fmt.Errorf("submission for driver %s %04d-%02d: %w", s.DriverID, s.Year, s.Month, dbt.ErrDuplicate)
	}
	if _, exists := db.submissions[s.ID]; exists {
		return fmt.Errorf("submission with ID %s: %w", s.ID, dbt.ErrDuplicate)
	}
	c := *s
	db.submissions[s.ID] = &c
	db.subIndex[keyOf(s)] = s.ID
	return nil
}

func (db *inMemoryMileageDBWrapper) GetSubmission(_ context.Context, id uuid.UUID) (*dbt.Submission, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	s, exists := db.submissions[id]
	if !exists {
		return nil, fmt.Errorf("submission with ID %s: %w", id, dbt.ErrNotFound)
	}
	c := *s
	return &c, nil
}

func (db *inMemoryMileageDBWrapper) FindSubmission(_ context.Context, driverID uuid.UUID, year, month int) (*dbt.Submission, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, exists := db.subIndex[submissionKey{driverID: driverID, year: year, month: month}]
	if !exists {
		return nil, fmt.Errorf("submission for driver %s %04d-%02d: %w", driverID, year, month, dbt.ErrNotFound)
	}
	c := *db.submissions[id]
	return &c, nil
}

func (db *inMemoryMileageDBWrapper) ListSubmissions(_ context.Context, filter dbt.SubmissionFilter) ([]dbt.Submission, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	list := []dbt.Submission{}
	for _, s := range db.submissions {
		if filter.Match(s) {
			list = append(list, *s)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SubmittedAt.Before(list[j].SubmittedAt) })
	return list, nil
}

func (db *inMemoryMileageDBWrapper) UpdateSubmission(_ context.Context, s *dbt.Submission) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, exists := db.submissions[s.ID]
	if !exists {
		return fmt.Errorf("submission with ID %s not found for update: %w", s.ID, dbt.ErrNotFound)
	}
	c := *s
	// the natural key never moves
	c.DriverID, c.Year, c.Month = existing.DriverID, existing.Year, existing.Month
	db.submissions[s.ID] = &c
	return nil
}

func (db *inMemoryMileageDBWrapper) DeleteSubmission(_ context.Context, id uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, exists := db.submissions[id]
	if !exists {
		return fmt.Errorf("submission with ID %s not found for deletion: %w", id, dbt.ErrNotFound)
	}
	delete(db.subIndex, keyOf(s))
	delete(db.submissions, id)
	return nil
}

// --- rates ---

func (db *inMemoryMileageDBWrapper) GetRates(_ context.Context, year, month int) (*dbt.RateEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	r, exists := db.rates[periodKey{year, month}]
	if !exists {
		return nil, fmt.Errorf("rates for %04d-%02d: %w", year, month, dbt.ErrNotFound)
	}
	c := *r
	return &c, nil
}

func (db *inMemoryMileageDBWrapper) ListRates(_ context.Context, year int) ([]dbt.RateEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	list := []dbt.RateEntry{}
	for key, r := range db.rates {
		if key.year == year {
			list = append(list, *r)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Month < list[j].Month })
	return list, nil
}

func (db *inMemoryMileageDBWrapper) UpsertRates(_ context.Context, r *dbt.RateEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c := *r
	c.UpdatedAt = time.Now()
	db.rates[periodKey{r.Year, r.Month}] = &c
	return nil
}
