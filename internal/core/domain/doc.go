// Package domain defines the core value types of BrowserBox.
//
// Everything here is free of IO:
//
//   - FingerprintDescriptor: identity attributes of a captured environment
//   - DeriveInstanceID: stable pool key for an environment locator
//   - Upload: server-side record of a chunked archive transfer
//   - DomainError: the classified error taxonomy shared by all layers
package domain
