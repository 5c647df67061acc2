// Package strategy implements the pluggable task-ordering strategies the
// assignment loop (C5) uses to decide, among all READY tasks competing for
// the same pool quota, which one gets the next available RenderNode. The
// set of strategies is a closed enumeration — fifo and roundrobin — not
// an open plugin surface, so registration is internal to this package.
package strategy

// Candidate is one READY task competing for dispatch: just enough context
// for a strategy to order it. The assignment loop fills Priority and
// DispatchKey from the task's own fields; nothing is inherited from an
// ancestor folder.
type Candidate struct {
	TaskID      int
	Priority    int
	DispatchKey float64
}

// Strategy orders one folder's ready candidates for an assignment tick.
// Implementations must not mutate the input slice.
type Strategy interface {
	Order(candidates []Candidate) []Candidate
}

var registry = map[string]func() Strategy{}

func register(name string, ctor func() Strategy) {
	if _, exists := registry[name]; exists {
		panic("strategy: duplicate registration for " + name)
	}
	registry[name] = ctor
}

// Lookup returns a fresh strategy instance for name, defaulting to fifo
// for an empty name. An unrecognized name also falls back to fifo: by the
// time a folder reaches the assignment loop, internal/wire's validation
// already rejected any name outside the known set.
func Lookup(name string) Strategy {
	if name == "" {
		name = "fifo"
	}
	if ctor, ok := registry[name]; ok {
		return ctor()
	}
	return registry["fifo"]()
}
