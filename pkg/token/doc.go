// Package token generates and verifies BrowserBox API keys.
//
// Keys have the form bbk_ followed by 43 characters of base64url encoded
// random bytes. Servers may be configured with keys verbatim or with their
// "sha256:<hex>" digest; Verify accepts both and compares in constant time.
package token
