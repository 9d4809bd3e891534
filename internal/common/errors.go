// Package common defines sentinel errors and small helpers shared by the
// server and client layers of GophBank. Callers should use errors.Is to match
// these values; producers wrap them with context via fmt.Errorf("%w: ...").
package common

import "errors"

var (
	// Lookup errors.
	ErrorNotFound = errors.New("account not found")

	// Request validation (non-positive amount, empty field, malformed body).
	ErrValidation = errors.New("validation error")

	// Bad credentials, password mismatch or a caller that does not own the session.
	ErrUnauthorized = errors.New("unauthorized")

	// A second login while a session for the username is still live.
	ErrSessionConflict = errors.New("user already logged in elsewhere")

	ErrUsernameTaken     = errors.New("username already taken")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Snapshot could not be read, decoded or written.
	ErrPersistence = errors.New("persistence error")

	// Unparseable line, unknown action or an action not allowed in the current state.
	ErrProtocol = errors.New("protocol error")

	ErrorInternal = errors.New("internal error")
)
