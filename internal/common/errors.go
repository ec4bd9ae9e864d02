// Package common contains shared constants and sentinel errors used across
// the client and server halves of the sync engine. Callers match them with
// errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrLWWConflict signals that a guarded write lost the last-write-wins
	// comparison (the stored row is strictly newer). It is a normal merge
	// outcome, not a failure: the service layer converts it into a conflict
	// record for the response.
	ErrLWWConflict = errors.New("last-write-wins conflict")

	// ErrDecode marks a corrupt or tampered encrypted field. It must always
	// propagate as a hard failure; decrypted garbage never leaves cryptox.
	ErrDecode = errors.New("decode error")

	// ErrConfig means the service is missing its remote store or crypto
	// secret and refuses to handle sync requests.
	ErrConfig = errors.New("service not configured")

	// ErrUnauthorized means the shared sync key did not match.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTransport wraps network and server-side failures seen by the
	// client. A cycle that fails with it left no sync bookkeeping behind
	// and is safe to retry in full.
	ErrTransport = errors.New("transport error")
)
