package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"mileage/auth"
	dbt "mileage/db/db"
	"mileage/libs/diff"
)

const minPasswordLength = 8

type DriverInput struct {
	Name           string          `json:"name"`
	PIN            string          `json:"pin"`
	VehicleType    dbt.VehicleType `json:"vehicleType"`
	FuelEfficiency float64         `json:"fuelEfficiency"`
}

func (in DriverInput) validate() (DriverInput, error) {
	name, err := verifyName("name", in.Name)
	if err != nil {
		return in, err
	}
	in.Name = name
	if !isPIN(in.PIN) {
		return in, invalid("pin", "must be exactly four digits")
	}
	if !in.VehicleType.Valid() {
		return in, invalid("vehicleType", "unknown vehicle type %q", in.VehicleType)
	}
	if !finite(in.FuelEfficiency) || in.FuelEfficiency <= 0 {
		return in, invalid("fuelEfficiency", "must be greater than zero, got %v", in.FuelEfficiency)
	}
	return in, nil
}

// nameTaken reports whether another employee already logs in with name.
func (s *Service) nameTaken(ctx context.Context, name string, self uuid.UUID) (bool, error) {
	d, err := s.store.FindDriverByName(ctx, name)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up driver name: %w", err)
	}
	return d.ID != self, nil
}

func (s *Service) AddDriver(ctx context.Context, actor auth.Actor, in DriverInput) (dbt.Driver, error) {
	if err := requireAdmin(actor); err != nil {
		return dbt.Driver{}, err
	}
	in, err := in.validate()
	if err != nil {
		return dbt.Driver{}, err
	}
	taken, err := s.nameTaken(ctx, in.Name, uuid.Nil)
	if err != nil {
		return dbt.Driver{}, err
	}
	if taken {
		return dbt.Driver{}, fmt.Errorf("driver named %q: %w", in.Name, dbt.ErrDuplicate)
	}

	d := &dbt.Driver{
		ID:             uuid.New(),
		Name:           in.Name,
		Role:           dbt.RoleEmployee,
		VehicleType:    in.VehicleType,
		FuelEfficiency: in.FuelEfficiency,
		PIN:            in.PIN,
	}
	if err := s.store.CreateDriver(ctx, d); err != nil {
		return dbt.Driver{}, fmt.Errorf("failed to create driver: %w", err)
	}
	s.log.WithField("driver_id", d.ID).Info("driver added")
	return *d, nil
}

// UpdateDriver overwrites every mutable field of an employee profile.
func (s *Service) UpdateDriver(ctx context.Context, actor auth.Actor, id uuid.UUID, in DriverInput) (dbt.Driver, error) {
	if err := requireAdmin(actor); err != nil {
		return dbt.Driver{}, err
	}
	in, err := in.validate()
	if err != nil {
		return dbt.Driver{}, err
	}
	before, err := s.store.GetDriver(ctx, id)
	if err != nil {
		return dbt.Driver{}, fmt.Errorf("failed to get driver: %w", err)
	}
	taken, err := s.nameTaken(ctx, in.Name, id)
	if err != nil {
		return dbt.Driver{}, err
	}
	if taken {
		return dbt.Driver{}, fmt.Errorf("driver named %q: %w", in.Name, dbt.ErrDuplicate)
	}

	after := *before
	after.Name = in.Name
	after.PIN = in.PIN
	after.VehicleType = in.VehicleType
	after.FuelEfficiency = in.FuelEfficiency
	if err := s.store.UpdateDriver(ctx, &after); err != nil {
		return dbt.Driver{}, fmt.Errorf("failed to update driver: %w", err)
	}

	changes, err := diff.DriverChanges(before, &after)
	if err != nil {
		s.log.WithError(err).Warn("failed to build driver change log")
	}
	for _, c := range changes {
		s.log.WithField("driver_id", id).WithField("admin_id", actor.UserID).Info("driver changed " + c.String())
	}

	updated, err := s.store.GetDriver(ctx, id)
	if err != nil {
		return after, nil
	}
	return *updated, nil
}

// DeleteDriver removes the driver with every record and submission they own.
func (s *Service) DeleteDriver(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.UserID == id {
		return invalid("id", "admins cannot delete themselves")
	}
	if err := s.store.DeleteDriver(ctx, id); err != nil {
		return fmt.Errorf("failed to delete driver: %w", err)
	}
	s.log.WithField("driver_id", id).Warn("driver deleted with all records and submissions")
	return nil
}

func (s *Service) ListDrivers(ctx context.Context, actor auth.Actor) ([]dbt.Driver, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	list, err := s.store.ListDrivers(ctx, dbt.RoleEmployee)
	if err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	return list, nil
}

func (s *Service) GetDriver(ctx context.Context, actor auth.Actor, id uuid.UUID) (dbt.Driver, error) {
	if err := requireSelf(actor, id); err != nil {
		return dbt.Driver{}, err
	}
	d, err := s.store.GetDriver(ctx, id)
	if err != nil {
		return dbt.Driver{}, fmt.Errorf("failed to get driver: %w", err)
	}
	return *d, nil
}

// CreateAdmin bootstraps an administrator account.
func (s *Service) CreateAdmin(ctx context.Context, name, email, password string) (dbt.Driver, error) {
	name, err := verifyName("name", name)
	if err != nil {
		return dbt.Driver{}, err
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return dbt.Driver{}, invalid("email", "%q is not an email address", email)
	}
	if len(password) < minPasswordLength {
		return dbt.Driver{}, invalid("password", "must be at least %d characters", minPasswordLength)
	}

	if _, err := s.store.FindDriverByEmail(ctx, addr.Address); err == nil {
		return dbt.Driver{}, fmt.Errorf("user with email %q: %w", addr.Address, dbt.ErrDuplicate)
	} else if !isNotFound(err) {
		return dbt.Driver{}, fmt.Errorf("failed to look up email: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return dbt.Driver{}, err
	}
	d := &dbt.Driver{
		ID:           uuid.New(),
		Name:         name,
		Email:        addr.Address,
		Role:         dbt.RoleAdmin,
		PasswordHash: hash,
	}
	if err := s.store.CreateDriver(ctx, d); err != nil {
		return dbt.Driver{}, fmt.Errorf("failed to create admin: %w", err)
	}
	s.log.WithField("admin_id", d.ID).Info("admin created")
	return *d, nil
}

// LoginEmployee checks a name and PIN pair.
func (s *Service) LoginEmployee(ctx context.Context, name, pin string) (dbt.Driver, error) {
	d, err := s.store.FindDriverByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, dbt.ErrNotFound) {
			return dbt.Driver{}, auth.ErrInvalidCredentials
		}
		return dbt.Driver{}, fmt.Errorf("failed to look up driver: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(d.PIN), []byte(pin)) != 1 {
		return dbt.Driver{}, auth.ErrInvalidCredentials
	}
	return *d, nil
}

func (s *Service) LoginAdmin(ctx context.Context, email, password string) (dbt.Driver, error) {
	d, err := s.store.FindDriverByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, dbt.ErrNotFound) {
			return dbt.Driver{}, auth.ErrInvalidCredentials
		}
		return dbt.Driver{}, fmt.Errorf("failed to look up admin: %w", err)
	}
	if d.Role != dbt.RoleAdmin {
		return dbt.Driver{}, auth.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(d.PasswordHash, password); err != nil {
		return dbt.Driver{}, err
	}
	return *d, nil
}
