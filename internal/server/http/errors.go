package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/helixir/literature-review-service/internal/domain"
)

// errorStatus maps a typed internal error to its HTTP status per spec.md §7.
// Anything unrecognized is Internal (500).
func errorStatus(err error) int {
	var (
		validationErr *domain.ValidationError
		notFoundErr   *domain.NotFoundError
		forbiddenErr  *domain.ForbiddenError
		conflictErr   *domain.ConflictError
		existsErr     *domain.AlreadyExistsError
		rateLimitErr  *domain.RateLimitError
		timeoutErr    *domain.TimeoutError
		externalErr   *domain.ExternalAPIError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &forbiddenErr):
		return http.StatusForbidden
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &conflictErr), errors.As(err, &existsErr):
		return http.StatusConflict
	case errors.As(err, &rateLimitErr):
		return http.StatusTooManyRequests
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrStoreConflict):
		return http.StatusInternalServerError
	case errors.As(err, &externalErr):
		if externalErr.StatusCode == http.StatusTooManyRequests {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeErr translates err to its mapped status and writes a JSON error body.
// correlationID, when non-empty, is included so a 500 can be traced without
// leaking implementation detail to the caller.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	body := map[string]string{"error": err.Error()}
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
		if correlationID := w.Header().Get("X-Correlation-ID"); correlationID != "" {
			body["correlationId"] = correlationID
		}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", "malformed or unexpected JSON: "+err.Error())
	}
	return nil
}
