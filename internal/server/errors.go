package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spigell/placement-checker/internal/matcher"
)

// HTTPError is an error with the status code it should be reported with.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

var errInputRequired = &HTTPError{
	Code:    http.StatusBadRequest,
	Message: "Internship responsibilities cannot be empty. Please paste the job responsibilities before submitting.",
}

// classify maps scoring failures to the status reported to the client.
func classify(err error) *HTTPError {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, matcher.ErrUnknownRole):
		return &HTTPError{Code: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return &HTTPError{Code: http.StatusGatewayTimeout, Message: "the similarity check took too long, please try again"}
	case errors.Is(err, matcher.ErrModelUnavailable):
		return &HTTPError{Code: http.StatusServiceUnavailable, Message: "the embedding model is unavailable, please try again later"}
	default:
		return &HTTPError{Code: http.StatusInternalServerError, Message: "internal server error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, err *HTTPError) error {
	return writeJSON(w, err.Code, map[string]string{"error": err.Message})
}
