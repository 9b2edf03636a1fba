// Package blob is the server-side archive store behind the chunked upload
// protocol.
//
// An upload is created with its declared size, receives chunks of at most
// 1 MiB at exactly its committed offset, and is completed once every byte
// has arrived and the optional SHA-256 matches. Records are kept in Badger
// so a restarted server resumes pending uploads where clients left them.
//
// Data layout under the configured data dir:
//
//	blobs/<id>.part         pending upload data
//	blobs/<id>.tar.gz       completed archive
//	blobs/<id>.tar.gz.enc   completed archive sealed at rest
//	meta/                   Badger metadata
//
// With a passphrase configured, completed archives are sealed in 1 MiB
// frames by pkg/crypto/adaptive. Open returns a seekable plaintext view
// either way.
package blob
