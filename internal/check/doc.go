// Package check inspects loaded pages.
//
// ResourceChecker verifies that every image of a page finished loading with
// a non-zero natural width and that every distinct image source is
// reachable over HTTP. StyleAuditor verifies that module images render on
// an opaque white background. Both accumulate violations instead of
// stopping at the first one.
package check
