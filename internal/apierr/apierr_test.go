package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		Validation:            http.StatusBadRequest,
		NotFound:              http.StatusNotFound,
		Conflict:              http.StatusConflict,
		Unauthorized:          http.StatusUnauthorized,
		RateLimited:           http.StatusTooManyRequests,
		IngestionBackpressure: http.StatusTooManyRequests,
		UpstreamUnavailable:   http.StatusServiceUnavailable,
		ActionRejected:        http.StatusForbidden,
		ActionTimedOut:        http.StatusGatewayTimeout,
		Cancelled:             http.StatusRequestTimeout,
		ToolFailed:            http.StatusOK,
		Internal:              http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := HTTPStatus(kind); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestAsExtractsWrappedError(t *testing.T) {
	base := Wrap(Internal, "db failed", fmt.Errorf("connection reset"))
	wrapped := fmt.Errorf("loading rules: %w", base)

	extracted, ok := As(wrapped)
	if !ok {
		t.Fatal("expected As to find the wrapped apierr.Error")
	}
	if extracted.Kind != Internal {
		t.Fatalf("expected Kind Internal, got %s", extracted.Kind)
	}
}

func TestAsFailsForPlainError(t *testing.T) {
	if _, ok := As(errors.New("plain")); ok {
		t.Fatal("expected As to fail for a plain error")
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(NotFound, "rule missing", errors.New("no rows"))
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty error message")
	}
	if err.Unwrap() == nil {
		t.Fatal("expected Unwrap to return the cause")
	}
}
