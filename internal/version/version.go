// Package version holds the release version of the enricher.
package version

// Current is the released version, <major>.<minor>.<patch> without a "v" prefix.
const Current = "0.1.0"
