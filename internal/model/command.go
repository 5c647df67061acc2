package model

import "time"

// Command is the atomic unit of dispatch: the thing actually bound to and
// run on a RenderNode. A Task decomposes into one or more Commands (frame
// range packeting being the common case).
type Command struct {
	ID         int
	TaskID     int
	Name       string
	Runner     string
	Arguments  map[string]string
	Status     Status
	Attempt    int
	MaxAttempt int
	RenderNode string // assigned worker name, "" if unbound
	Message    string // diagnostic text from the last result; a dependency-cancel root cause is tagged on the task/folder instead
	StartTime  *int64
	EndTime    *int64
	// LastUpdate is when this command's RUNNING status was last refreshed,
	// by dispatch or by a worker callback; a command stuck RUNNING past the
	// configured timeout without a refresh is forced to ERROR.
	LastUpdate time.Time
	// CancelDeadline is set when a RUNNING command is cooperatively asked
	// to stop; if the worker hasn't confirmed by this time the command is
	// force-transitioned to CANCELED regardless.
	CancelDeadline *time.Time
	Archived       bool
}

// Retryable reports whether a command that just errored may be resubmitted
// to READY automatically rather than terminally failed. MaxAttempt bounds
// the total number of runs (Attempt counts from 0).
func (c *Command) Retryable() bool {
	return c.Status == StatusError && c.Attempt+1 < c.MaxAttempt
}
