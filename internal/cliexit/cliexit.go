// Package cliexit gives farmctl deterministic process exit codes: an
// error carries its own exit code, the same shape a one-shot
// graph-execution CLI uses, retargeted here to a thin HTTP client. The
// codes distinguish a bad invocation from a server-reported rejection
// from a transport failure, since an operator scripting around farmctl
// needs to tell those apart.
package cliexit

import "errors"

const (
	Success        = 0
	UsageError     = 1
	ServerRejected = 2
	TransportError = 3
)

// Error wraps a farmctl failure with the exit code the process should
// return for it.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Code extracts the exit code for err, defaulting to TransportError for any
// error not originating from this package (a network failure, an
// unexpected server response shape).
func Code(err error) int {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return TransportError
}
