package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/extract"
	"github.com/joseph-ayodele/artists-registry/internal/resilience"
	"github.com/joseph-ayodele/artists-registry/internal/services/artists"
)

type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Artist any    `json:"artist,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// httpStatus maps domain and application errors onto status codes.
func httpStatus(err error) int {
	var xe *extract.ExtractionError
	switch {
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrInvalidInput),
		errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	case errors.As(err, &xe), errors.Is(err, extract.ErrNoText):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrUnavailable), resilience.IsCircuitOpen(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// errorMessage never leaks internal causes for 5xx responses.
func errorMessage(err error, status int) (msg, code string) {
	var ae *common.AppError
	if errors.As(err, &ae) {
		code = ae.Code
	}
	switch {
	case status == http.StatusUnprocessableEntity:
		return artists.OperatorMessage(err), "EXTRACTION_FAILED"
	case status >= 500:
		if status == http.StatusServiceUnavailable {
			return "service temporarily unavailable", code
		}
		if code == "" {
			code = "INTERNAL_ERROR"
		}
		return common.ErrInternal.Error(), code
	case ae != nil:
		return ae.Message, code
	}
	return err.Error(), code
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorWith(w, r, err, nil)
}

// writeErrorWith attaches payload (e.g. the failed artist) to the error body.
func (s *Server) writeErrorWith(w http.ResponseWriter, r *http.Request, err error, payload any) {
	status := httpStatus(err)
	msg, code := errorMessage(err, status)
	if status >= 500 {
		s.log(r).Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.log(r).Warn("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code, Artist: payload})
}
