package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"reelforge/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "Segment:1-10", "encode", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"Segment:1-10", "encode", "failed"} {
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
	if !strings.Contains(err.Error(), "unit failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{err: nil, want: false},
		{err: services.Wrap(services.ErrNotFound, "Segment:1-10", "prepare", "scene missing", nil), want: true},
		{err: services.Wrap(services.ErrTransient, "Output:a.mov", "queue", "busy", errors.New("locked")), want: true},
		{err: services.Wrap(services.ErrValidation, "Segment:1-10", "package", "bad range", nil), want: false},
		{err: services.Wrap(services.ErrExternalTool, "Segment:1-10", "encode", "exit 1", nil), want: false},
		{err: errors.New("plain"), want: false},
		{err: fmt.Errorf("render: %w", context.DeadlineExceeded), want: true},
	}
	for _, tc := range cases {
		if got := services.Retryable(tc.err); got != tc.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestClassName(t *testing.T) {
	cases := map[string]error{
		"external_tool": services.Wrap(services.ErrExternalTool, "Output:a.mov", "mux", "exit 2", nil),
		"not_found":     fmt.Errorf("claim: %w", services.ErrNotFound),
		"timeout":       context.DeadlineExceeded,
		"unclassified":  errors.New("plain"),
	}
	for want, err := range cases {
		if got := services.ClassName(err); got != want {
			t.Errorf("ClassName(%v) = %q, want %q", err, got, want)
		}
	}
	if got := services.ClassName(nil); got != "unclassified" {
		t.Errorf("ClassName(nil) = %q", got)
	}
}
