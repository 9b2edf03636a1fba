// Package transport moves archive files between the capture host and the
// serving host.
//
// Every backend streams in fixed 1 MiB blocks and never buffers a whole
// archive in memory. Locator schemes:
//
//	file://   shared filesystem (bare paths are accepted too)
//	http(s):// BrowserBox chunked upload; plain GET with Range resume for download
//	s3://     object storage via aws-sdk-go-v2, ranged GetObject for download
//
// Failures are reported as the retryable domain.ErrTransport. Retrying is
// left to the caller.
package transport
