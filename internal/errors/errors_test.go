package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{FEED_VALIDATION, http.StatusBadRequest},
		{FEED_EMPTY_INPUT, http.StatusBadRequest},
		{FEED_NOT_AUTHENTICATED, http.StatusUnauthorized},
		{FEED_AUTHN, http.StatusUnauthorized},
		{FEED_JWT_INVALID, http.StatusUnauthorized},
		{FEED_NOT_FOUND, http.StatusNotFound},
		{FEED_TX_FAILED, http.StatusConflict},
		{FEED_BUSY, http.StatusTooManyRequests},
		{FEED_STORE_UNAVAILABLE, http.StatusServiceUnavailable},
		{FEED_INTERNAL, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := New(tt.code, "x", "").HTTPStatus; got != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := New(FEED_BUSY, "another message", "corr-1")
	if !errors.Is(err, ErrBusy) {
		t.Errorf("expected errors.Is to match on code")
	}
	if errors.Is(err, ErrEmptyInput) {
		t.Errorf("errors.Is matched a different code")
	}

	wrapped := fmt.Errorf("outer: %w", Wrap(FEED_TX_FAILED, "failed", ErrStoreUnavailable))
	if !errors.Is(wrapped, ErrTransactionFailed) {
		t.Errorf("expected match through fmt wrapping")
	}
	if !errors.Is(wrapped, ErrStoreUnavailable) {
		t.Errorf("expected match on the cause")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("x: %w", ErrNotAuthenticated)); got != FEED_NOT_AUTHENTICATED {
		t.Errorf("CodeOf = %s", got)
	}
	if got := CodeOf(errors.New("plain")); got != FEED_INTERNAL {
		t.Errorf("CodeOf(plain) = %s, want FEED_INTERNAL", got)
	}
}

func TestErrorString(t *testing.T) {
	err := Wrap(FEED_TX_FAILED, "failed to update like", errors.New("conflict"))
	want := "FEED_TX_FAILED: failed to update like: conflict"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	detailed := NewWithDetails(FEED_VALIDATION, "bad body", "", []string{"title"})
	if !strings.Contains(detailed.Error(), "details: [title]") {
		t.Errorf("Error() = %q, missing details", detailed.Error())
	}
}

func TestWithCorrelationIDCopies(t *testing.T) {
	stamped := ErrBusy.WithCorrelationID("corr-9")
	if stamped.CorrelationID != "corr-9" {
		t.Errorf("CorrelationID = %q", stamped.CorrelationID)
	}
	if ErrBusy.CorrelationID != "" {
		t.Errorf("sentinel was modified")
	}
}
