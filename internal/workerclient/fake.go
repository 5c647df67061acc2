package workerclient

import (
	"context"
	"sync"

	"dispatchd/internal/model"
)

// FakeDispatcher runs commands in-process instead of over the wire. It
// understands the "default" runner's cmd argument (SUPPLEMENTED FEATURES):
// cmd names a registered function. A timeout argument is not read, and
// nothing in the fake forces an ERROR for it. It is used by the graph
// builder's local Execute() and by assignment-loop tests.
type FakeDispatcher struct {
	mu sync.Mutex
	// Handlers maps a "cmd" argument value to a function producing the
	// terminal status and an optional message. A command whose "cmd" has
	// no registered handler succeeds trivially (DONE, "").
	Handlers map[string]func(args map[string]string) (model.Status, string)
	Calls    []DispatchRequest
}

// NewFakeDispatcher returns a dispatcher with an empty handler set; every
// dispatched command succeeds unless a handler is registered for its cmd.
func NewFakeDispatcher() *FakeDispatcher {
	return &FakeDispatcher{Handlers: map[string]func(map[string]string) (model.Status, string){}}
}

func (f *FakeDispatcher) Run(ctx context.Context, rn string, req DispatchRequest) (model.Status, string, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, req)
	f.mu.Unlock()

	if req.Runner != "" && req.Runner != "default" {
		return model.StatusError, "unknown runner: " + req.Runner, nil
	}

	cmd := req.Arguments["cmd"]
	if h, ok := f.Handlers[cmd]; ok {
		status, msg := h(req.Arguments)
		return status, msg, nil
	}
	return model.StatusDone, "", nil
}

func (f *FakeDispatcher) Cancel(ctx context.Context, rn string, commandID int) error {
	return nil
}
