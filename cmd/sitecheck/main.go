// Package main provides the entry point for the sitecheck CLI.
//
// sitecheck verifies a statically generated site after it has been built:
// every page is loaded in a real browser, every image must render and be
// reachable, and images inside module containers must sit on an opaque
// white background.
//
// Usage:
//
//	sitecheck check [output-dir]
//	sitecheck check --serve --base-url http://127.0.0.1:4173 dist
//
// See --help for all available options.
package main

// main is the entry point for sitecheck.
func main() {
	Execute()
}
