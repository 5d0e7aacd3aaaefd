package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "error with cause",
			err: Wrap(KindStorage, "store.insert_upload", "insert failed",
				errors.New("connection refused")),
			contains: []string{"[storage:store.insert_upload]", "insert failed", "connection refused"},
		},
		{
			name:     "error without cause",
			err:      New(KindIngest, "validate", "unsupported media type"),
			contains: []string{"[ingest:validate]", "unsupported media type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	sentinel := errors.New("artifact not found")
	wrapped := Wrap(KindAnalysis, "locate", "companion lookup", fmt.Errorf("street1.png: %w", sentinel))

	if !errors.Is(wrapped, sentinel) {
		t.Error("wrapped error should match the sentinel through Unwrap")
	}
}

func TestWrap_NilAndTyped(t *testing.T) {
	if Wrap(KindConfig, "op", "msg", nil) != nil {
		t.Fatal("Wrap(nil) should return nil")
	}

	inner := New(KindStorage, "inner", "boom")
	outer := Wrap(KindTransport, "outer", "ignored", fmt.Errorf("ctx: %w", inner))
	if outer != inner {
		t.Fatalf("Wrap should keep the existing typed error, got %v", outer)
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{"direct match", New(KindConfig, "test", "message"), KindConfig, true},
		{"wrapped match", Wrap(KindDomain, "test", "message", errors.New("cause")), KindDomain, true},
		{"fmt wrapped match", fmt.Errorf("outer: %w", New(KindAnalysis, "scan", "x")), KindAnalysis, true},
		{"mismatch", New(KindConfig, "test", "message"), KindDomain, false},
		{"plain error", errors.New("plain error"), KindConfig, false},
		{"nil", nil, KindConfig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKind(tt.err, tt.kind); got != tt.expected {
				t.Errorf("IsKind() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(New(KindIngest, "op", "m")); got != KindIngest {
		t.Fatalf("KindOf = %s", got)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Fatalf("KindOf plain = %s", got)
	}
}
