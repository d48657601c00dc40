package httpdto

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"circle-chat/internal/chat"
	circle_errors "circle-chat/pkg/errors"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{chat.ErrSignedOut, http.StatusUnauthorized, CodeUnauthorized},
		{fmt.Errorf("send: %w", chat.ErrBlocked), http.StatusForbidden, CodeForbidden},
		{fmt.Errorf("message m1: %w", circle_errors.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{chat.ErrSendInFlight, http.StatusConflict, CodeConflict},
		{chat.ErrNothingToSend, http.StatusBadRequest, CodeInvalidRequest},
		{circle_errors.ErrTooLarge, http.StatusRequestEntityTooLarge, CodeInvalidRequest},
		{circle_errors.ErrNotConfigured, http.StatusServiceUnavailable, CodeUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		status, code := StatusFor(tc.err)
		if status != tc.status || code != tc.code {
			t.Errorf("%v: got %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}

func TestMessageHidesUnmappedErrors(t *testing.T) {
	if got := Message(errors.New("dial tcp 10.0.0.1: refused")); got != "request failed" {
		t.Fatalf("got %q", got)
	}
	wrapped := fmt.Errorf("start edit: %w", chat.ErrNotAuthor)
	if got := Message(wrapped); got != chat.ErrNotAuthor.Error() {
		t.Fatalf("got %q", got)
	}
}
