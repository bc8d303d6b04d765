package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/reelrate/reelrate/internal/ledger"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Printf("failed to encode response: %v", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{Code: code, Message: message})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

// respondSubmissionError maps the ledger taxonomy onto transport codes.
// ErrBusy carries a Retry-After hint since it is the retryable outcome.
func (s *Server) respondSubmissionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, ledger.ErrBusy):
		w.Header().Set("Retry-After", "1")
		s.respondError(w, http.StatusConflict, "BUSY", "Title is being rated concurrently, retry shortly")
	case errors.Is(err, ledger.ErrConsistency):
		s.logger.Printf("consistency failure: %v", err)
		s.respondError(w, http.StatusInternalServerError, "CONSISTENCY_ERROR", "Rating verification failed")
	case errors.Is(err, ledger.ErrUnavailable):
		s.respondError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Storage temporarily unavailable")
	default:
		s.logger.Printf("submit rating error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process rating")
	}
}

func (s *Server) verifyBearer(header string) bool {
	if header == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token == s.cfg.AuthToken
}

func normalizeStringPtr(ptr *string) *string {
	if ptr == nil {
		return nil
	}
	val := strings.TrimSpace(*ptr)
	if val == "" {
		return nil
	}
	return &val
}
