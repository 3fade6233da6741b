package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/goccy/go-json"
)

const maxBodySize = 1 << 20

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrNotFound):
		return http.StatusNotFound, e.ErrNotFound.Error()
	case errors.Is(err, e.ErrEmptyBatch):
		return http.StatusBadRequest, e.ErrEmptyBatch.Error()
	case errors.Is(err, e.ErrBatchTooLarge):
		return http.StatusBadRequest, e.ErrBatchTooLarge.Error()
	case errors.Is(err, e.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, e.ErrDimMismatch):
		return http.StatusBadRequest, e.ErrDimMismatch.Error()
	case errors.Is(err, e.ErrIndexUnavailable):
		return http.StatusServiceUnavailable, e.ErrIndexUnavailable.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	WriteSuccess(w, code, NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parseK читает k из query-параметра, отсутствующий параметр даёт def.
func parseK(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("k")
	if raw == "" {
		return def, nil
	}

	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: k must be an integer", e.ErrInvalidArgument)
	}

	return k, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", e.ErrInvalidArgument)
	}

	return nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
