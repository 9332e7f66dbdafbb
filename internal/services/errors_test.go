package services_test

import (
	"errors"
	"strings"
	"testing"

	"bobbin/internal/services"
)

func TestWrapIncludesMarkerAndDetail(t *testing.T) {
	cause := errors.New("connection refused")
	err := services.Wrap(services.ErrTransient, "classifier", "score", "fast tier unreachable", cause)

	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}
	msg := err.Error()
	for _, want := range []string{"classifier", "score", "fast tier unreachable", "connection refused"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in message %q", want, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "store", "open", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected nil marker to default to ErrTransient, got %v", err)
	}
}

func TestIsOutcome(t *testing.T) {
	outcomes := []error{
		services.ErrDuplicate,
		services.ErrNotReady,
		services.ErrLocked,
		services.ErrCadenceDenied,
	}
	for _, err := range outcomes {
		if !services.IsOutcome(err) {
			t.Fatalf("expected %v to be an outcome", err)
		}
		wrapped := services.Wrap(err, "pipeline", "consume", "", nil)
		if !services.IsOutcome(wrapped) {
			t.Fatalf("expected wrapped %v to remain an outcome", err)
		}
	}
	if services.IsOutcome(services.ErrTransient) {
		t.Fatal("ErrTransient must not be an outcome")
	}
	if services.IsOutcome(nil) {
		t.Fatal("nil must not be an outcome")
	}
}
