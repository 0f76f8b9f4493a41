package check

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinels returned by store adapters and matched by errors.Is against the typed errors below.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrPartialBulk      = errors.New("partial bulk failure")
	ErrTransient        = errors.New("transient remote failure")
)

type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return "check not found: " + e.ID }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type PermissionError struct {
	Op  string
	Err error
}

func (e *PermissionError) Error() string {
	if e.Err == nil {
		return e.Op + ": permission denied"
	}
	return fmt.Sprintf("%s: permission denied: %v", e.Op, e.Err)
}

func (e *PermissionError) Is(target error) bool { return target == ErrPermissionDenied }

func (e *PermissionError) Unwrap() error { return e.Err }

type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

func (e *TransientError) Unwrap() error { return e.Err }

// PartialBulkFailure reports a bulk call where fewer than Requested sub-operations succeeded.
type PartialBulkFailure struct {
	Op        string
	Requested int
	Succeeded int
	Failed    map[string]error
}

func (e *PartialBulkFailure) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("%s: %d of %d succeeded (failed: %s)", e.Op, e.Succeeded, e.Requested, strings.Join(ids, ","))
}

func (e *PartialBulkFailure) Is(target error) bool { return target == ErrPartialBulk }

func (e *PartialBulkFailure) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		out = append(out, err)
	}
	return out
}

// Classify maps a remote failure into the error taxonomy. Already classified errors pass through.
func Classify(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		nf *NotFoundError
		pe *PermissionError
		pb *PartialBulkFailure
		te *TransientError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &nf), errors.As(err, &pe), errors.As(err, &pb), errors.As(err, &te):
		return err
	case errors.Is(err, ErrNotFound):
		return &NotFoundError{ID: id}
	case errors.Is(err, ErrPermissionDenied):
		return &PermissionError{Op: op, Err: err}
	default:
		return &TransientError{Op: op, Err: err}
	}
}
