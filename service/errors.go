package service

import "fmt"

type StateError string

func (e StateError) Error() string {
	return string(e)
}

const (
	ErrInvalidState        StateError = "submission is not in a state that allows this operation"
	ErrDuplicateSubmission StateError = "a submission for this driver and month already exists"
	ErrSettlementLocked    StateError = "the month is settled, its records can no longer change"
	ErrSubmissionPending   StateError = "the month is submitted and awaiting settlement, cancel the submission first"
	ErrForbidden           StateError = "operation not permitted for this user"
)

// ValidationError reports malformed input. Field names the offending input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
