package graphbuilder

import "sync"

// DecomposeFunc turns a Task into its Commands. Registered under a dotted
// name, resolved at serialization time — a named-function-in-a-registry
// pattern applied here to the decomposer/expander design.
type DecomposeFunc func(t *Task) ([]Command, error)

// ExpandFunc expands a TaskGroup, typically by attaching children built
// from its arguments. The default expander is a no-op: most graphs list
// their children explicitly and never need one.
type ExpandFunc func(tg *TaskGroup) error

var (
	registryMu  sync.Mutex
	decomposers = map[string]DecomposeFunc{}
	expanders   = map[string]ExpandFunc{}
)

// RegisterDecomposer adds name to the closed registry of decomposers.
// Registering the same name twice panics at init time — a programming
// error, not a runtime condition to recover from.
func RegisterDecomposer(name string, fn DecomposeFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := decomposers[name]; exists {
		panic("graphbuilder: decomposer already registered: " + name)
	}
	decomposers[name] = fn
}

// RegisterExpander adds name to the closed registry of expanders.
func RegisterExpander(name string, fn ExpandFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := expanders[name]; exists {
		panic("graphbuilder: expander already registered: " + name)
	}
	expanders[name] = fn
}

func lookupDecomposer(name string) (DecomposeFunc, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	fn, ok := decomposers[name]
	return fn, ok
}

func lookupExpander(name string) (ExpandFunc, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	fn, ok := expanders[name]
	return fn, ok
}

func init() {
	RegisterDecomposer("default", defaultDecompose)
	RegisterExpander("default", func(*TaskGroup) error { return nil })
}
