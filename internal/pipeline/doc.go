// Package pipeline runs the checks of a site one page at a time.
//
// Each page gets its own browser session and its own Pipeline of steps:
// load the page, check its images, and for module pages audit the image
// backgrounds. A Step records violations on the page result and returns an
// error only when it could not do its work. Errors wrapping ErrHaltPage
// stop the remaining steps of that page; the Runner then moves on to the
// next page.
package pipeline
