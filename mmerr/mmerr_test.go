package mmerr

import (
	"errors"
	"net/http"
	"testing"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := map[Kind]int{
		ClientInvalid:        http.StatusBadRequest,
		OriginDenied:         http.StatusForbidden,
		RateLimited:          http.StatusTooManyRequests,
		PayloadTooLarge:      http.StatusRequestEntityTooLarge,
		BotDropped:           http.StatusAccepted,
		ExtensionUnavailable: http.StatusOK,
		StorageFailure:       http.StatusInternalServerError,
		Internal:             http.StatusInternalServerError,
	}
	for kind, want := range cases {
		e := New(kind, "test")
		if got := e.StatusCode(); got != want {
			t.Errorf("kind %d: got status %d, want %d", kind, got, want)
		}
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	e := Wrap(StorageFailure, "flush failed", cause)
	if !errors.Is(e, cause) {
		t.Fatalf("expected Wrap to preserve the underlying cause for errors.Is")
	}
}

func TestAs(t *testing.T) {
	var target *Error
	err := error(New(ClientInvalid, "bad input"))
	if !As(err, &target) {
		t.Fatalf("expected As to match an *Error")
	}
	if target.Kind != ClientInvalid {
		t.Fatalf("expected matched error to carry ClientInvalid kind")
	}
}
