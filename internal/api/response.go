package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zapponejosh/teller/internal/calendar"
	"github.com/zapponejosh/teller/internal/database"
)

// Response represents a standard API response.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// WriteCreated writes a 201 Created response.
func WriteCreated(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, status int, message string, code ...string) error {
	errInfo := ErrorInfo{
		Message: message,
	}
	if len(code) > 0 {
		errInfo.Code = code[0]
	}

	return WriteJSON(w, status, Response{
		Success: false,
		Error:   &errInfo,
	})
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusNotFound, message, "NOT_FOUND")
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusBadRequest, message, "BAD_REQUEST")
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusInternalServerError, message, "INTERNAL_ERROR")
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusUnauthorized, message, "UNAUTHORIZED")
}

// clientErrors maps domain errors a caller can fix to an HTTP status and code.
var clientErrors = []struct {
	err    error
	status int
	code   string
}{
	{calendar.ErrDateOutOfRange, http.StatusBadRequest, "DATE_OUT_OF_RANGE"},
	{calendar.ErrUnparsableLunarLabel, http.StatusBadRequest, "UNPARSABLE_LUNAR_LABEL"},
	{calendar.ErrInvalidBranch, http.StatusBadRequest, "INVALID_BRANCH"},
	{calendar.ErrInvalidStem, http.StatusBadRequest, "INVALID_STEM"},
	{calendar.ErrLunarMonthOutOfRange, http.StatusBadRequest, "LUNAR_MONTH_OUT_OF_RANGE"},
	{calendar.ErrLunarDayOutOfRange, http.StatusBadRequest, "LUNAR_DAY_OUT_OF_RANGE"},
	{calendar.ErrInvalidYearBranchSource, http.StatusBadRequest, "INVALID_YEAR_BRANCH_SOURCE"},
	{database.ErrInvalidJournalEntry, http.StatusBadRequest, "INVALID_JOURNAL_ENTRY"},
	{database.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{database.ErrDuplicate, http.StatusConflict, "DUPLICATE"},
}

// WriteDomainError maps err to a client error response. It reports false,
// writing nothing, when err is not a known client error.
func WriteDomainError(w http.ResponseWriter, err error) bool {
	for _, ce := range clientErrors {
		if errors.Is(err, ce.err) {
			WriteError(w, ce.status, err.Error(), ce.code)
			return true
		}
	}
	return false
}
