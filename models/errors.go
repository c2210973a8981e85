package models

import (
	"context"
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeLaunch       = "LAUNCH_FAILED"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeTimeout      = "SCAN_TIMEOUT"
	ErrCodeInspection   = "INSPECTION_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeBusy         = "SCANNER_BUSY"
	ErrCodeInternal     = "INTERNAL_ERROR"

	// LLM-related error codes for analysis and fix suggestions.
	ErrCodeLLMFailure     = "LLM_FAILURE"
	ErrCodeLLMAuthFailure = "LLM_AUTH_FAILURE"
	ErrCodeLLMRateLimited = "LLM_RATE_LIMITED"
	ErrCodeLLMDisabled    = "LLM_NOT_CONFIGURED"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LaunchError means the browser session could not be started.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string { return "launch browser session: " + e.Err.Error() }
func (e *LaunchError) Unwrap() error { return e.Err }

// NavigationError covers DNS, connection and timeout failures while loading
// the target page.
type NavigationError struct {
	URL     string
	Timeout bool
	Err     error
}

func (e *NavigationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("navigate to %s: timed out: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("navigate to %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// InspectionError means a DOM query or timing read failed unexpectedly.
type InspectionError struct {
	Check string
	Err   error
}

func (e *InspectionError) Error() string {
	return fmt.Sprintf("inspect %s: %v", e.Check, e.Err)
}

func (e *InspectionError) Unwrap() error { return e.Err }

// ScanError is the single error a failed scan surfaces to its caller.
// It implements the error interface and supports error wrapping via Unwrap.
type ScanError struct {
	Code    string
	URL     string
	Message string
	Err     error // wrapped stage error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// NewScanError creates a new ScanError.
func NewScanError(code, message string, err error) *ScanError {
	return &ScanError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScanError) ToDetail() *ErrorDetail {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return &ErrorDetail{Code: e.Code, Message: msg}
}

// WrapScanError classifies a stage failure into a ScanError for url.
// An error that already is a ScanError is returned unchanged.
func WrapScanError(url string, err error) *ScanError {
	var se *ScanError
	if errors.As(err, &se) {
		return se
	}

	var (
		launchErr  *LaunchError
		navErr     *NavigationError
		inspectErr *InspectionError
	)
	code, msg := ErrCodeInternal, "scan failed"
	switch {
	case errors.As(err, &navErr) && navErr.Timeout:
		code, msg = ErrCodeTimeout, "navigation timed out"
	case errors.As(err, &navErr):
		code, msg = ErrCodeNavigation, "navigation failed"
	case errors.As(err, &launchErr):
		code, msg = ErrCodeLaunch, "browser session could not start"
	case errors.As(err, &inspectErr):
		code, msg = ErrCodeInspection, "page inspection failed"
	case errors.Is(err, context.DeadlineExceeded):
		code, msg = ErrCodeTimeout, "scan timed out"
	}
	return &ScanError{Code: code, URL: url, Message: msg, Err: err}
}
