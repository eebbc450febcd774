// Package database stores the history of validation runs in SQLite.
//
// Each run is kept as its full JSON report plus a row per page, so
// the compare command can diff two runs of the same site and show how a
// single page evolved over time.
//
// The driver is modernc.org/sqlite, a CGO-free implementation, so the
// binary cross-compiles without a C toolchain.
package database
