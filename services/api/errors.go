package api

import (
	"errors"
	"net/http"

	"rollcall/services/attendance"
	"rollcall/services/auth"
)

var errNotAuthenticated = errors.New("not authenticated")

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, attendance.ErrInvalid),
		errors.Is(err, auth.ErrDuplicateAccount),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		auth.RejectionReason(err) != "":
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrAccountNotFound),
		errors.Is(err, attendance.ErrStudentNotFound):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrExportUnavailable):
		return http.StatusFailedDependency
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err using statusFor. Server errors are logged and replaced with
// a generic message.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	switch {
	case status >= http.StatusInternalServerError:
		a.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, status, errors.New("internal server error"))
	case status == http.StatusUnauthorized && !errors.Is(err, auth.ErrInvalidCredentials):
		respondUnauthenticated(w)
	default:
		respondError(w, status, err)
	}
}

func respondUnauthenticated(w http.ResponseWriter) {
	respondError(w, http.StatusUnauthorized, errNotAuthenticated)
}
