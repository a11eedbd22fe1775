// Package version carries the build stamp, set with -ldflags "-X regiokaart/internal/version.Commit=...".
package version

var Commit = "dev"
