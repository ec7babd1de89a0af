package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/meridian-admin/meridian-admin/internal/shared"
	"github.com/meridian-admin/meridian-admin/internal/token"
)

// Machine-readable codes carried in the envelope so clients can distinguish
// "re-login" from "refresh" on a 401.
const (
	CodeTokenExpired = 40101
	CodeTokenInvalid = 40102
)

// RespondError maps a domain error to an HTTP status and envelope.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		Fail(w, http.StatusUnauthorized, CodeTokenExpired, "token expired")
	case errors.Is(err, token.ErrTokenInvalid):
		Fail(w, http.StatusUnauthorized, CodeTokenInvalid, "token invalid")
	case errors.Is(err, shared.ErrInvalidInput):
		Fail(w, http.StatusBadRequest, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Fail(w, http.StatusUnauthorized, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, shared.ErrUserLocked):
		Fail(w, http.StatusForbidden, http.StatusForbidden, "user account is locked")
	case errors.Is(err, shared.ErrForbidden):
		Fail(w, http.StatusForbidden, http.StatusForbidden, err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Fail(w, http.StatusNotFound, http.StatusNotFound, err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Fail(w, http.StatusConflict, http.StatusConflict, err.Error())
	case errors.Is(err, shared.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		Fail(w, http.StatusServiceUnavailable, http.StatusServiceUnavailable, "service unavailable")
	default:
		Fail(w, http.StatusInternalServerError, http.StatusInternalServerError, "internal error")
	}
}
