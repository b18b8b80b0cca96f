// Package swaperr defines the error kinds from spec §7. Callers should use
// errors.Is against the sentinel values, and errors.As against the typed
// wrappers when they need the attached context (hash, peer id, ...).
package swaperr

import "errors"

// Sentinel kinds. Wrap with fmt.Errorf("...: %w", KindX) to attach context
// while keeping errors.Is(err, KindX) working.
var (
	// ErrHashMismatch: integrity check failed. Fatal for that operation,
	// non-fatal for the peer connection unless it recurs.
	ErrHashMismatch = errors.New("hash mismatch")

	// ErrPrivacyViolation: an upload path saw an unencrypted CID, or the
	// allowlist rejected a peer serve. Never silently downgraded.
	ErrPrivacyViolation = errors.New("privacy violation")

	// ErrRateLimited: forwarding refused; the request is dropped, not
	// retried by the core.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout: a forward or request deadline expired.
	ErrTimeout = errors.New("timeout")

	// ErrTransportUnavailable: bus or peer channel not ready. Retried with
	// backoff by the transport adapter, not by the core.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrProtocolViolation: malformed frame or unexpected shape. The peer
	// is disconnected.
	ErrProtocolViolation = errors.New("protocol violation")
)

// HashMismatchError carries the expected/actual hashes for diagnostics.
type HashMismatchError struct {
	Expected string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return "hash mismatch: expected " + e.Expected + ", got " + e.Actual
}

func (e *HashMismatchError) Unwrap() error { return ErrHashMismatch }
