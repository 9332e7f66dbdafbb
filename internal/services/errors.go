package services

import (
	"errors"
	"fmt"
	"strings"
)

// Fault markers. These tag genuine failures for later classification.
var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrConflict      = errors.New("conflict")
)

// Outcome markers. These are expected results of contention and filtering,
// not failures; callers branch on them rather than logging them as errors.
var (
	ErrDuplicate     = errors.New("duplicate item")
	ErrNotReady      = errors.New("collection not ready")
	ErrLocked        = errors.New("group locked")
	ErrCadenceDenied = errors.New("cadence denied")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker. The marker should be one of the exported
// sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsOutcome reports whether err is an expected contention or filtering
// outcome rather than a fault.
func IsOutcome(err error) bool {
	return errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrNotReady) ||
		errors.Is(err, ErrLocked) ||
		errors.Is(err, ErrCadenceDenied)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
