// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Score submission errors
	CodeScoreInvalidData  Code = "SCORE_INVALID_DATA"
	CodeScoreNameRequired Code = "SCORE_NAME_REQUIRED"

	// Storage errors
	CodeStorageWriteFailed Code = "STORAGE_WRITE_FAILED"
)

// IsValidation reports whether the code describes a client-caused failure.
func (c Code) IsValidation() bool {
	switch c {
	case CodeScoreInvalidData, CodeScoreNameRequired:
		return true
	default:
		return false
	}
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	if c.IsValidation() {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
