package httpdto

import (
	"errors"
	"net/http"

	"circle-chat/internal/chat"
	circle_errors "circle-chat/pkg/errors"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorTable = []errorMapping{
	{chat.ErrSignedOut, http.StatusUnauthorized, CodeUnauthorized},
	{circle_errors.ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},

	{chat.ErrBlocked, http.StatusForbidden, CodeForbidden},
	{chat.ErrNotAuthor, http.StatusForbidden, CodeForbidden},
	{chat.ErrNotAdmin, http.StatusForbidden, CodeForbidden},
	{chat.ErrNotMember, http.StatusForbidden, CodeForbidden},
	{circle_errors.ErrForbidden, http.StatusForbidden, CodeForbidden},
	{circle_errors.ErrPermissionDenied, http.StatusForbidden, CodeForbidden},

	{circle_errors.ErrNotFound, http.StatusNotFound, CodeNotFound},

	{chat.ErrNoConversation, http.StatusConflict, CodeConflict},
	{chat.ErrSendInFlight, http.StatusConflict, CodeConflict},
	{chat.ErrNoEdit, http.StatusConflict, CodeConflict},
	{circle_errors.ErrConflict, http.StatusConflict, CodeConflict},
	{circle_errors.ErrAlreadyExists, http.StatusConflict, CodeConflict},

	{chat.ErrNothingToSend, http.StatusBadRequest, CodeInvalidRequest},
	{chat.ErrEmptyEdit, http.StatusBadRequest, CodeInvalidRequest},
	{chat.ErrGroupNameRequired, http.StatusBadRequest, CodeInvalidRequest},
	{chat.ErrGroupMembersRequired, http.StatusBadRequest, CodeInvalidRequest},
	{chat.ErrNotGroup, http.StatusBadRequest, CodeInvalidRequest},
	{chat.ErrSelfConversation, http.StatusBadRequest, CodeInvalidRequest},
	{circle_errors.ErrInvalidInput, http.StatusBadRequest, CodeInvalidRequest},

	{circle_errors.ErrTooLarge, http.StatusRequestEntityTooLarge, CodeInvalidRequest},
	{circle_errors.ErrServiceUnavailable, http.StatusServiceUnavailable, CodeUnavailable},
	{circle_errors.ErrNotConfigured, http.StatusServiceUnavailable, CodeUnavailable},
}

// StatusFor maps a domain error to its HTTP status and response code.
func StatusFor(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

// Message is the client-facing text of err. Unmapped errors are not echoed.
func Message(err error) string {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.err.Error()
		}
	}
	return "request failed"
}
