package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NotFoundError is returned when a lookup matched nothing.
type NotFoundError struct {
	// Kind is what was looked up: "suite" for a name lookup, "file" for a
	// document referenced by a record.
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "suite"
	}
	return fmt.Sprintf("%s %q not found", kind, e.Name)
}

// AmbiguousNameError is returned when a name lookup matched more than one
// record. Names are required to be unique, so this is a catalogue defect.
type AmbiguousNameError struct {
	Name string
	// Indices are the positions of the matching records in their table.
	Indices []int
}

func (e *AmbiguousNameError) Error() string {
	var positions []string
	for _, index := range e.Indices {
		positions = append(positions, fmt.Sprintf("%d", index))
	}
	return fmt.Sprintf("suite name %q is not unique: defined by records %s", e.Name, strings.Join(positions, ", "))
}

// StepFailure is returned when the module invoked by a step reported failure.
type StepFailure struct {
	Step   string
	Module string
	Err    error
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("step %q (%s) failed: %v", e.Step, e.Module, e.Err)
}

func (e *StepFailure) Unwrap() error {
	return e.Err
}

// TimeoutFailure is returned when a step or the preparation of a pipeline
// run exceeded its time bound.
type TimeoutFailure struct {
	// Operation is the step name or the pipeline phase that timed out.
	Operation string
	Timeout   time.Duration
	Err       error
}

func (e *TimeoutFailure) Error() string {
	return fmt.Sprintf("%s did not finish within %s", e.Operation, e.Timeout)
}

func (e *TimeoutFailure) Unwrap() error {
	return e.Err
}

// UpdateFailure is returned when the update operation of a pipeline run kept
// failing after all retries were spent.
type UpdateFailure struct {
	Release  string
	Attempts int
	Err      error
}

func (e *UpdateFailure) Error() string {
	release := e.Release
	if release == "" {
		release = "<unset>"
	}
	return fmt.Sprintf("update to release %s failed after %d attempts: %v", release, e.Attempts, e.Err)
}

func (e *UpdateFailure) Unwrap() error {
	return e.Err
}

// IsNotFound determines if the error chain holds a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAmbiguousName determines if the error chain holds an AmbiguousNameError.
func IsAmbiguousName(err error) bool {
	var target *AmbiguousNameError
	return errors.As(err, &target)
}

// IsTimeout determines if the error chain holds a TimeoutFailure or ended
// because a deadline was exceeded.
func IsTimeout(err error) bool {
	var target *TimeoutFailure
	return errors.As(err, &target) || errors.Is(err, context.DeadlineExceeded)
}
