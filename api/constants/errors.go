package constants

import "fmt"

// ============================================================================
// FILE UPLOAD ERRORS
// ============================================================================

const (
	ErrFileAlreadyProcessed = "This file has already been processed (batch %s)"
	ErrFileUploadFailed     = "File upload failed. Please check the file format and try again"
	ErrInvalidFileFormat    = "Invalid file format. Please upload a CSV, XLSX or XLS file"
	ErrFileTooLarge         = "File size exceeds the maximum limit"
	ErrFileParsingFailed    = "Failed to parse file contents: %s"
	ErrEmptyFile            = "Uploaded file is empty"
	ErrMissingFile          = "No file found in the 'file' form field"
	ErrBatchNotFound        = "Upload batch not found"
	ErrInvalidFingerprint   = "Fingerprint must be a 64 character SHA-256 hex digest"
	ErrInvalidTemplate      = "Unknown template format. Use csv or xlsx"
)

// ============================================================================
// ARRANGEMENT ERRORS
// ============================================================================

const (
	ErrArrangementNotFound = "Arrangement not found"
	ErrArrangementResolved = "Arrangement is already paid or defaulted"
	ErrAccountNotFound     = "Account not found"
	ErrSweepRunning        = "An arrangement sweep is already running"
)

// ============================================================================
// INPUT VALIDATION ERRORS
// ============================================================================

const (
	ErrMissingRequiredField = "Required field '%s' is missing"
	ErrInvalidDateFormat    = "Invalid date format for '%s'. Expected format: YYYY-MM-DD"
	ErrInvalidAmount        = "Invalid amount specified"
)

// ============================================================================
// GENERAL ERRORS
// ============================================================================

const (
	ErrInternalServer  = "Internal server error. Please contact support"
	ErrOperationFailed = "Operation failed. Please try again"
)

// ============================================================================
// HELPER FUNCTIONS TO FORMAT ERRORS WITH CONTEXT
// ============================================================================

// FormatError formats an error message with additional context
func FormatError(baseError string, context ...interface{}) string {
	if len(context) == 0 {
		return baseError
	}
	return fmt.Sprintf(baseError, context...)
}

// FormatMissingFieldError formats a missing field error
func FormatMissingFieldError(fieldName string) string {
	return fmt.Sprintf(ErrMissingRequiredField, fieldName)
}
