package services_test

import (
	"errors"
	"strings"
	"testing"

	"cloudpush/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "delivery", "post", "connection refused", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"delivery", "post", "connection refused"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	cases := map[string]error{
		"timeout":     services.Wrap(services.ErrTimeout, "delivery", "post", "", nil),
		"http_status": services.Wrap(services.ErrHTTPStatus, "delivery", "post", "", &services.StatusError{StatusCode: 500}),
		"not_found":   services.Wrap(services.ErrNotFound, "state", "lookup", "", nil),
		"transient":   errors.New("plain"),
		"":            nil,
	}
	for want, err := range cases {
		if got := services.Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestStatusCodeExtraction(t *testing.T) {
	err := services.Wrap(services.ErrHTTPStatus, "delivery", "post", "rejected", &services.StatusError{StatusCode: 404, Body: "missing"})
	if code := services.StatusCode(err); code != 404 {
		t.Fatalf("expected 404, got %d", code)
	}
	if !strings.Contains(err.Error(), "status 404: missing") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if code := services.StatusCode(errors.New("x")); code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
}
