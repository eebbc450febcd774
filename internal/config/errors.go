package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoOutputDir is returned when no output directory is configured.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrInvalidBaseURL is returned when the base URL is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid base URL: must be an absolute http or https URL")

	// ErrUnknownEngine is returned for an engine name that is not supported.
	ErrUnknownEngine = errors.New("unknown engine: use playwright, chromedp or static")

	// ErrInvalidTimeout is returned when the page timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidFetchTimeout is returned when the fetch timeout is not positive.
	ErrInvalidFetchTimeout = errors.New("invalid fetch timeout: must be positive")

	// ErrInvalidWaitUntil is returned for an unknown readiness condition.
	ErrInvalidWaitUntil = errors.New("invalid wait condition: use networkidle, load or domcontentloaded")

	// ErrInvalidModuleClass is returned when the module class is empty.
	ErrInvalidModuleClass = errors.New("invalid module class: must not be empty")

	// ErrInvalidModulePattern is returned when the module page pattern does not compile.
	ErrInvalidModulePattern = errors.New("invalid module page pattern")

	// ErrInvalidServeTimeout is returned when --serve is used with a non-positive timeout.
	ErrInvalidServeTimeout = errors.New("invalid serve timeout: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)

// PageConfigError reports an invalid per-page override.
type PageConfigError struct {
	Page string
	Err  error
}

// Error implements the error interface.
func (e *PageConfigError) Error() string {
	return fmt.Sprintf("page %s: %v", e.Page, e.Err)
}

// Unwrap returns the underlying error.
func (e *PageConfigError) Unwrap() error {
	return e.Err
}
