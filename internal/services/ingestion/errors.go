package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrStageFailed is wrapped by every StageError.
	ErrStageFailed = errors.New("pipeline stage failed")

	ErrUnknownZone      = errors.New("unknown zone")
	ErrInvalidCommand   = errors.New("invalid control command")
	ErrDuplicateCommand = errors.New("duplicate control command")
)

// StageError tells which stage stopped a reading.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error { return []error{ErrStageFailed, e.Err} }

// panicError carries a recovered panic value.
type panicError struct {
	value any
}

func (p panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }
