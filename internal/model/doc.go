// Package model defines the data structures shared by sitecheck packages.
//
// This package contains the following main types:
//   - Violation: A single failed assertion on a page, tagged with its Kind
//   - PageResult: Everything observed and asserted while validating one page
//   - Report: The result of a full validation run over the output directory
//   - Summary: Per-kind counts and the pass/fail verdict of a run
//
// It also holds the typed errors of a run: CatalogError for a missing or
// empty output directory and LoadTimeoutError for a page that never became
// ready.
//
// All types serialize to JSON for report output and history storage.
package model
