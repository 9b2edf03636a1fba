// Package capture orchestrates environment capture: it drives a browser
// session, records the fingerprint, and once the session ends hands the
// live state to the snapshot store and the archiver.
package capture
