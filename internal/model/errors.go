package model

import (
	"errors"
	"fmt"
	"time"
)

// Catalog errors. They are wrapped by CatalogError and can be matched
// with errors.Is.
var (
	// ErrOutputDirMissing is returned when the output directory does not exist.
	ErrOutputDirMissing = errors.New("output directory does not exist")

	// ErrOutputDirUnreadable is returned when the output directory cannot be
	// listed or is not a directory.
	ErrOutputDirUnreadable = errors.New("output directory is not readable")

	// ErrNoPages is returned when the output directory contains no page files.
	ErrNoPages = errors.New("output directory contains no pages")

	// ErrNoModulePages is recorded when the catalog has no module page.
	// Unlike the other catalog errors it does not abort the run.
	ErrNoModulePages = errors.New("no module pages found")
)

// CatalogError reports a problem with the build output directory.
// A CatalogError returned by the catalog aborts the run before any page
// is loaded.
type CatalogError struct {
	// Dir is the output directory that was inspected.
	Dir string

	// Err is one of the catalog sentinel errors, possibly wrapping the
	// underlying file system error.
	Err error
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Dir, e.Err)
}

// Unwrap returns the wrapped error.
func (e *CatalogError) Unwrap() error {
	return e.Err
}

// LoadTimeoutError reports a page that did not become ready within its
// timeout. Any total load failure (refused connection, error status for the
// document) is reported the same way.
type LoadTimeoutError struct {
	// Page is the catalog name of the page.
	Page string

	// URL is the address that was requested.
	URL string

	// WaitUntil is the readiness condition that was awaited.
	WaitUntil string

	// Timeout is the time budget of the load.
	Timeout time.Duration

	// Err is the error reported by the browser engine.
	Err error
}

// Error implements the error interface.
func (e *LoadTimeoutError) Error() string {
	return fmt.Sprintf("page %s (%s) not %s within %s: %v", e.Page, e.URL, e.WaitUntil, e.Timeout, e.Err)
}

// Unwrap returns the engine error.
func (e *LoadTimeoutError) Unwrap() error {
	return e.Err
}
