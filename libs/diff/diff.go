package diff

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	odiff "github.com/r3labs/diff/v3"

	dbt "mileage/db/db"
)

func GetCustomDiffer() *odiff.Differ {
	ret, err := odiff.NewDiffer(odiff.CustomValueDiffers(&UUIDComparer{}))
	if err != nil {
		panic(err)
	}
	return ret
}

type UUIDComparer struct{}

var (
	uuidType = reflect.TypeOf(uuid.UUID{})
)

// Match reports whether both sides are uuid.UUID (or one side is nil).
func (c UUIDComparer) Match(a, b reflect.Value) bool {
	aok := a.Kind() == uuidType.Kind() && a.Type() == uuidType
	bok := b.Kind() == uuidType.Kind() && b.Type() == uuidType
	return (aok && bok) || (a.Kind() == reflect.Invalid && bok) || (b.Kind() == reflect.Invalid && aok)
}

// Diff compares UUIDs as whole values rather than as 16 separate bytes.
func (c UUIDComparer) Diff(_ odiff.DiffType, _ odiff.DiffFunc, cl *odiff.Changelog, path []string, a reflect.Value, b reflect.Value, _ interface{}) error {
	valA := reflect.Indirect(a)
	valB := reflect.Indirect(b)

	if !valA.IsValid() || !valB.IsValid() {
		if valA.IsValid() != valB.IsValid() {
			cl.Add(odiff.UPDATE, path, a.Interface(), b.Interface())
		}
		return nil
	}

	u1 := valA.Interface().(uuid.UUID)
	u2 := valB.Interface().(uuid.UUID)
	if u1 != u2 {
		cl.Add(odiff.UPDATE, path, u1, u2)
	}
	return nil
}

// InsertParentDiffer is a no-op, a uuid is always a leaf.
func (c UUIDComparer) InsertParentDiffer(_ func(path []string, a reflect.Value, b reflect.Value, p interface{}) error) {
}

type Change struct {
	Field string
	From  interface{}
	To    interface{}
}

func (c Change) String() string {
	return fmt.Sprintf("%s: %v -> %v", c.Field, c.From, c.To)
}

// driverView is the audited part of a driver. Secrets never enter the log.
type driverView struct {
	ID             uuid.UUID `diff:"id"`
	Name           string    `diff:"name"`
	Email          string    `diff:"email"`
	Role           string    `diff:"role"`
	VehicleType    string    `diff:"vehicle_type"`
	FuelEfficiency float64   `diff:"fuel_efficiency"`
}

func viewOfDriver(d *dbt.Driver) driverView {
	return driverView{
		ID:             d.ID,
		Name:           d.Name,
		Email:          d.Email,
		Role:           string(d.Role),
		VehicleType:    string(d.VehicleType),
		FuelEfficiency: d.FuelEfficiency,
	}
}

// submissionView covers the state machine fields of a submission.
type submissionView struct {
	Status           string     `diff:"status"`
	CompletedBy      *uuid.UUID `diff:"completed_by"`
	SettlementAmount *int64     `diff:"settlement_amount"`
	TotalDistance    *float64   `diff:"total_distance"`
}

func viewOfSubmission(s *dbt.Submission) submissionView {
	return submissionView{
		Status:           string(s.Status),
		CompletedBy:      s.CompletedBy,
		SettlementAmount: s.SettlementAmount,
		TotalDistance:    s.TotalDistance,
	}
}

func DriverChanges(before, after *dbt.Driver) ([]Change, error) {
	return changes(viewOfDriver(before), viewOfDriver(after))
}

func SubmissionChanges(before, after *dbt.Submission) ([]Change, error) {
	return changes(viewOfSubmission(before), viewOfSubmission(after))
}

func changes(a, b interface{}) ([]Change, error) {
	cl, err := GetCustomDiffer().Diff(a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to diff: %w", err)
	}
	ret := make([]Change, 0, len(cl))
	for _, c := range cl {
		ret = append(ret, Change{Field: strings.Join(c.Path, "."), From: c.From, To: c.To})
	}
	return ret, nil
}
