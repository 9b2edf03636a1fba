// Package adaptive provides authenticated encryption for archives at rest.
//
// A Cipher wraps AES-256-GCM when the CPU accelerates AES and
// ChaCha20-Poly1305 otherwise. Keys come either from raw key material or
// from a passphrase stretched with Argon2id, and purpose-bound subkeys are
// derived with HKDF.
//
// Large payloads are sealed as a sequence of fixed-size frames. Each frame
// authenticates its stream identity, index and whether it is the last one,
// so a Reader can seek and decrypt any range without reading the stream
// from the start, and truncation is detected.
//
// Usage:
//
//	c, err := adaptive.New(key)
//	w := adaptive.NewWriter(f, c, 1<<20, []byte(id))
//	io.Copy(w, src)
//	w.Close()
//
//	r, err := adaptive.NewReader(f, size, c, 1<<20, []byte(id))
//	http.ServeContent(rw, req, name, modTime, r)
package adaptive
