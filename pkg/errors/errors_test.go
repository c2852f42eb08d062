package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	err := New("TEST", "something failed", http.StatusBadRequest)
	if err.Error() != "something failed" {
		t.Fatalf("unexpected message: %s", err.Error())
	}

	wrapped := err.WithInternal(errors.New("db down"))
	if wrapped.Error() != "something failed: db down" {
		t.Fatalf("unexpected wrapped message: %s", wrapped.Error())
	}
	if !errors.Is(wrapped, wrapped.Internal) {
		t.Fatal("expected Unwrap to expose internal error")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil) != nil {
		t.Fatal("expected nil for nil input")
	}

	appErr := NewConflict("duplicate email")
	if got := FromError(appErr); got != appErr {
		t.Fatal("expected AppError to be returned unchanged")
	}

	generic := FromError(errors.New("boom"))
	if generic.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", generic.Code)
	}
	if generic.Internal == nil {
		t.Fatal("expected internal cause to be retained")
	}
}

func TestCommonErrorStatusCodes(t *testing.T) {
	cases := map[*AppError]int{
		ErrUnauthorized:       http.StatusUnauthorized,
		ErrInvalidCredentials: http.StatusUnauthorized,
		ErrNotFound:           http.StatusNotFound,
		ErrConflict:           http.StatusConflict,
		ErrBadRequest:         http.StatusBadRequest,
		ErrRateLimit:          http.StatusTooManyRequests,
	}

	for err, want := range cases {
		if err.StatusCode != want {
			t.Fatalf("%s: expected status %d got %d", err.Code, want, err.StatusCode)
		}
	}
}
