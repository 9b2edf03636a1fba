// Package output renders browserbox-cli results.
//
// Results print as an aligned table, JSON or YAML according to the
// --output flag. ProgressBar reports archive transfers and Spinner marks
// waits of unknown length, both on stderr so stdout stays parseable.
package output
