// Package config provides the configuration of a sitecheck run: defaults,
// validation, the optional .sitecheck YAML file and XDG directories.
package config
