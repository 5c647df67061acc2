package graphbuilder

import "errors"

var (
	// ErrDuplicateNode is raised when the same Task or TaskGroup object is
	// attached under two parents, or attached twice under the same parent.
	// Ground truth: GraphDumper.addTask in puliclient raises on re-adding
	// the same node object to the serialized output.
	ErrDuplicateNode = errors.New("graphbuilder: node already attached to a parent")

	// ErrNotAGraphRoot is returned by Graph.Add when the node is neither a
	// *Task nor a *TaskGroup (not reachable with this package's own Node
	// types, kept because puliclient.Graph guards the same case explicitly).
	ErrNotAGraphRoot = errors.New("graphbuilder: graph root must be a task group")

	// ErrUnknownDecomposer / ErrUnknownExpander are raised when a task or
	// task group names a decomposer/expander that was never registered.
	ErrUnknownDecomposer = errors.New("graphbuilder: unknown decomposer")
	ErrUnknownExpander    = errors.New("graphbuilder: unknown expander")

	// ErrUnknownStrategy names the unknown-strategy case. Nothing in this
	// package returns it: WithStrategy accepts any name, and an unknown one
	// is rejected by the server's submission validation (internal/wire).
	ErrUnknownStrategy = errors.New("graphbuilder: unknown strategy")
)
