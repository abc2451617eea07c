// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"encoding/json"
	"net/http"

	"github.com/juju/errors"

	"github.com/teamsync/teamsync/apiserver/params"
)

// Stable error codes carried in every error envelope.
const (
	codeInvalid      = "invalid"
	codeConflict     = "conflict"
	codeNotFound     = "not-found"
	codeUnauthorized = "unauthorized"
	codeInternal     = "internal"
)

// statusAndCode maps a domain error onto an HTTP status and stable
// code. Conflicts deliberately surface as 400, matching the categories
// callers already handle.
func statusAndCode(err error) (int, string) {
	switch {
	case errors.Is(err, errors.NotValid):
		return http.StatusBadRequest, codeInvalid
	case errors.Is(err, errors.AlreadyExists):
		return http.StatusBadRequest, codeConflict
	case errors.Is(err, errors.NotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, errors.Unauthorized):
		return http.StatusUnauthorized, codeUnauthorized
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("cannot write response: %v", err)
	}
}

// sendError writes err in message form. Internal failures are logged
// server-side and surfaced as a generic message.
func sendError(w http.ResponseWriter, err error) {
	status, code := statusAndCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Errorf("internal server error: %v", errors.Details(err))
		message = "internal server error"
	}
	writeJSON(w, status, params.ErrorResponse{Message: message, Code: code})
}

// sendErrors writes err in list form, used by the user account routes
// whose callers expect an errors array.
func sendErrors(w http.ResponseWriter, err error) {
	status, code := statusAndCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Errorf("internal server error: %v", errors.Details(err))
		message = "internal server error"
	}
	writeJSON(w, status, params.ErrorResponse{Errors: []string{message}, Code: code})
}

// badRequest reports an unparsable body.
func badRequest(w http.ResponseWriter, err error) {
	sendError(w, errors.NotValidf("request body: %v", err))
}
