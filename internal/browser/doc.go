// Package browser adapts go-rod to the two ways BrowserBox drives Chrome.
//
// A capture Session runs a headful browser on a fresh user data dir so a
// person can shape the environment, and signals Done once the last page is
// closed. A pool Instance runs on a user-state dir restored from a
// snapshot and applies the snapshot's fingerprint (user agent, viewport,
// locale, timezone) to each page it opens.
package browser
