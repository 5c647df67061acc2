// Package workerclient is the worker RPC collaborator: whatever sends a
// bound command to a RenderNode and learns its terminal status. The
// assignment loop and the client-side local executor both depend only on
// the Dispatcher interface; concrete implementations live alongside it.
package workerclient

import (
	"context"

	"dispatchd/internal/model"
)

// DispatchRequest is what gets sent to a worker once the assignment loop
// (or the client-side local executor) has decided to run a command.
type DispatchRequest struct {
	CommandID   int
	RequestID   string // correlation id, google/uuid
	Runner      string
	Arguments   map[string]string
	Environment map[string]string
	Validation  string
	Timeout     int // seconds, 0 means no timeout
}

// Dispatcher sends a bound command to a worker. Run returns as soon as the
// worker has accepted (or rejected) the command — it does not wait for the
// command to finish running. A successful accept is reported as
// model.StatusRunning; the eventual terminal status arrives out of band,
// through a worker callback processed by internal/depengine. Callers that
// have nowhere to receive that callback (the client-side local executor)
// treat acceptance itself as completion.
type Dispatcher interface {
	Run(ctx context.Context, rn string, req DispatchRequest) (model.Status, string, error)
	Cancel(ctx context.Context, rn string, commandID int) error
}
