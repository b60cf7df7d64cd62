package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/sui-wrapped/internal/model"
)

// Successful reports may be cached by intermediaries for an hour and served stale for a day.
const cacheControl = "public, s-maxage=3600, stale-while-revalidate=86400"

// envelope is the response shape of the API.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    model.ErrorCode `json:"code"`
	Message string          `json:"message"`
}

// wrappedPayload adds the persona card text to the report.
type wrappedPayload struct {
	model.WrappedAggregate
	PersonaCopy model.PersonaCopy `json:"personaCopy"`
}

// statusFor maps an error code to the HTTP status returned to clients.
func statusFor(code model.ErrorCode) int {
	switch code {
	case model.CodeInvalidAddress, model.CodeInvalidWindow:
		return http.StatusBadRequest
	case model.CodeNoTransactions:
		return http.StatusNotFound
	case model.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing message. Internal causes are not exposed.
func messageFor(err error) string {
	var coded *model.Error
	if errors.As(err, &coded) && coded.Code != model.CodeGenerationFailed {
		return coded.Message
	}
	return model.ErrGenerationFailed.Message
}

// parseRange accepts RFC 3339 timestamps or YYYY-MM-DD dates; a date-only end covers the whole day.
func parseRange(rawStart, rawEnd string) (time.Time, time.Time, error) {
	start, _, err := parseInstant(rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, dateOnly, err := parseInstant(rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if dateOnly {
		end = end.Add(24*time.Hour - time.Millisecond)
	}
	return start, end, nil
}

func parseInstant(raw string) (time.Time, bool, error) {
	if raw == "" {
		return time.Time{}, false, model.NewError(model.CodeInvalidWindow, nil, "both start and end are required")
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, model.NewError(model.CodeInvalidWindow, err, "invalid time %q", raw)
	}
	return t, false, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Warn("Error writing response")
	}
}
