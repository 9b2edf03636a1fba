// Package storage holds the on-disk layers of BrowserBox.
//
// The root package provides the embedded Badger key-value store used for
// server metadata. Sub-packages implement the environment artifacts:
//
//   - snapshot: capture directory layout and the retry-tolerant copy
//   - archive: deterministic tar.gz packing and guarded extraction
//   - blob: the server-side archive store fed by chunked uploads
package storage
