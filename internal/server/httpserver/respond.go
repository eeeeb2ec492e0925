package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/educhain/internal/common"
)

type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{"success": false, "message": msg})
}

// statusFor maps an error kind to its HTTP status and the message shown
// to the caller. Unclassified errors never leak their text.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorAuth):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrorVerificationInProgress):
		return http.StatusConflict, "verification already in progress for this document"
	case errors.Is(err, common.ErrorVerificationTimeout):
		return http.StatusGatewayTimeout, err.Error()
	case errors.Is(err, common.ErrorVerification):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, documentNotFound
	case errors.Is(err, common.ErrorStorage):
		return http.StatusInternalServerError, "document storage is unavailable"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeFailure(w, status, msg)
}

const documentNotFound = "document not found"

// writeDocumentError renders errors about a single document. A student
// gets the same response for someone else's document as for a missing one.
func (s *Server) writeDocumentError(w http.ResponseWriter, r *http.Request, err error) {
	actor, _ := identityFrom(r.Context())
	if errors.Is(err, common.ErrorNotFound) || (errors.Is(err, common.ErrorForbidden) && !actor.IsAdmin()) {
		writeFailure(w, http.StatusNotFound, documentNotFound)
		return
	}
	s.writeError(w, r, err)
}
