// Package server serves a build output directory over HTTP so a run can
// validate a site without an external preview server.
//
// When something already answers on the configured address the running
// server is reused and nothing is started.
package server
