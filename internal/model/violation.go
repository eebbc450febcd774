package model

import (
	"strconv"
	"strings"
)

// Violation is a single failed assertion.
// It carries enough context to locate the defect without re-running:
// the page, the element ordinal or the resource, and the observed value.
type Violation struct {
	// Kind is the class of the violation.
	Kind Kind `json:"kind"`

	// Page is the catalog name of the page. Empty for run-level violations.
	Page string `json:"page,omitempty"`

	// Ordinal is the 1-based position of the image on the page, when the
	// violation concerns a single element.
	Ordinal int `json:"ordinal,omitempty"`

	// Resource is the src attribute as written in the page.
	Resource string `json:"resource,omitempty"`

	// URL is the absolute address that was requested.
	URL string `json:"url,omitempty"`

	// Status is the HTTP status of the independent fetch. Zero means the
	// request failed before a response was received.
	Status int `json:"status,omitempty"`

	// Observed is the offending value, e.g. a computed color or an error text.
	Observed string `json:"observed,omitempty"`

	// Message is the localized, human-readable description.
	Message string `json:"message"`
}

// Error implements the error interface so violations can be logged and
// joined like any other error.
func (v Violation) Error() string {
	return v.Message
}

// Key returns a stable identity for the violation. Two runs over an
// unchanged site produce the same set of keys.
func (v Violation) Key() string {
	return strings.Join([]string{
		string(v.Kind),
		v.Page,
		strconv.Itoa(v.Ordinal),
		v.Resource,
		strconv.Itoa(v.Status),
		v.Observed,
	}, "|")
}

// ResourceCheckResult is the outcome of the independent fetch of one image source.
type ResourceCheckResult struct {
	// Src is the src attribute as written in the page.
	Src string `json:"src"`

	// URL is the absolute URL used for the request.
	URL string `json:"url"`

	// Status is the HTTP status code, or zero on network failure.
	Status int `json:"status"`

	// Reachable is true for a 2xx status.
	Reachable bool `json:"reachable"`

	// Error is the network error text, if any.
	Error string `json:"error,omitempty"`
}

// StyleObservation is the computed background of one module image.
type StyleObservation struct {
	// Ordinal is the 1-based position among the matched images.
	Ordinal int `json:"ordinal"`

	// BackgroundColor is the normalized computed background color.
	BackgroundColor string `json:"background_color"`

	// White is true when the color is one of the canonical opaque whites.
	White bool `json:"white"`
}

// ImageRecord is the browser-side state of one image, kept for reports.
type ImageRecord struct {
	// Ordinal is the 1-based position of the image in document order.
	Ordinal int `json:"ordinal"`

	// Src is the raw src attribute.
	Src string `json:"src"`

	// Complete reports whether the browser finished loading the image.
	Complete bool `json:"complete"`

	// NaturalWidth is the intrinsic width in pixels.
	NaturalWidth int `json:"natural_width"`
}
