// Package digest computes and verifies the HTTP Digest header (RFC 3230)
// for request pipelines.
//
// It provides client-side signing and verification (via Signer and
// Verifier, both http.RoundTripper) and server-side middleware for the
// gorilla/mux router (via SignMiddleware and VerifyMiddleware).
//
// # Supported Algorithms
//
// Identifiers are matched case-insensitively:
//
//   - crc32c (CRC-32 Castagnoli, decimal)
//   - sha-256, alias id-sha-256 (base64)
//   - sha-512, alias id-sha-512 (base64)
//   - unixcksum (POSIX cksum, decimal)
//   - unixsum (BSD sum, decimal)
//
// The legacy algorithms adler32, md5 and sha (SHA-1) are available only
// through a Registry created with RegistryConfig{Legacy: true}, or in
// DefaultRegistry when built with the digest_legacy tag. A disabled
// algorithm resolves exactly like an unknown name.
//
// # Header Format
//
// The header value is a comma-separated list of name=value entries with no
// whitespace handling:
//
//	Digest: crc32c=2591144780,sha-256=LPJNul+wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ=
//
// # Signing Requests
//
// SignRequest sets the header directly on a request:
//
//	err := digest.SignRequest(ctx, req, []digest.Algorithm{digest.AlgorithmSHA256}, true)
//
// NewSigner wraps a transport so that every outgoing request is signed:
//
//	signer, err := digest.NewSigner(nil, digest.SignerConfig{
//	    Algorithms: []digest.Algorithm{digest.AlgorithmCRC32C, digest.AlgorithmSHA256},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := &http.Client{Transport: signer}
//
// # Verifying Requests
//
//	mw, err := digest.VerifyMiddleware(digest.MiddlewareConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mw.Close()
//	router.Use(mw.Func())
//
// Entries are checked in header order and verification stops at the first
// mismatch, reported as a *HashMismatchError. Comparison is not constant
// time.
//
// # Bodies
//
// Both directions read the whole body into memory before hashing and
// replace it with a replayable reader, so downstream handlers and
// transports can read it again. No size limit is applied; wrap the body
// with http.MaxBytesReader first when one is needed.
//
// # Serialization
//
// Every stage forwards through a Guard: a bounded queue (DefaultQueueSize
// unless configured) drained by a single worker, so the wrapped transport
// or handlers are never called concurrently. A Middleware owns one guard
// for all handlers it wraps, however often the router applies it. Callers wait while the queue is
// full; nothing is rejected while the stage is open.
package digest
