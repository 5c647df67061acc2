// Package graphbuilder is the client-side graph builder (C1): the API a
// submitting program uses to build a graph of tasks and task groups
// in-memory, expand/decompose it, and either submit it to a dispatchd
// server or run it locally. Grounded on original_source/Puli's
// puliclient/__init__.py, translated from Python kwargs-heavy
// constructors into Go functional options.
package graphbuilder

import "dispatchd/internal/model"

// Command is one explicit, already-fully-specified unit of work. Most
// tasks never construct these directly — the decomposer produces them —
// but AddCommand lets a caller bypass decomposition entirely.
type Command struct {
	Name      string
	Runner    string
	Arguments map[string]string
}

// Node is satisfied by both *Task and *TaskGroup: anything that can be a
// child of a TaskGroup or the source/target of a dependency edge.
type Node interface {
	nodeName() string
	addDependency(target Node, statusSet []model.Status)
	deps() []dependencyDecl
	parentNode() *TaskGroup
	setParentNode(*TaskGroup)
}

type dependencyDecl struct {
	target    Node
	statusSet []model.Status
}

// Task is a leaf unit of work. It decomposes into one or more Commands
// either explicitly (AddCommand) or via its named decomposer.
type Task struct {
	name         string
	arguments    map[string]string
	environment  map[string]string
	runner       string
	decomposer   string
	maxRN        int
	priority     int
	dispatchKey  float64
	minNbCores   int
	maxNbCores   int
	ramUse       int
	requirements map[string]string
	licence      string
	tags         map[string]string
	timer        *int64
	maxAttempt   int
	commands     []Command
	explicit     bool
	decomposed   bool
	dependencies []dependencyDecl
	parent       *TaskGroup
}

// TaskOption configures a Task at construction time.
type TaskOption func(*Task)

func WithArguments(m map[string]string) TaskOption    { return func(t *Task) { t.arguments = m } }
func WithEnvironment(m map[string]string) TaskOption  { return func(t *Task) { t.environment = m } }
func WithRunner(name string) TaskOption               { return func(t *Task) { t.runner = name } }
func WithDecomposer(name string) TaskOption           { return func(t *Task) { t.decomposer = name } }
func WithMaxRN(n int) TaskOption                      { return func(t *Task) { t.maxRN = n } }
func WithPriority(n int) TaskOption                   { return func(t *Task) { t.priority = n } }
func WithDispatchKey(n float64) TaskOption            { return func(t *Task) { t.dispatchKey = n } }
func WithMinNbCores(n int) TaskOption                 { return func(t *Task) { t.minNbCores = n } }
func WithMaxNbCores(n int) TaskOption                 { return func(t *Task) { t.maxNbCores = n } }
func WithRamUse(n int) TaskOption                     { return func(t *Task) { t.ramUse = n } }
func WithRequirements(m map[string]string) TaskOption { return func(t *Task) { t.requirements = m } }
func WithLicence(s string) TaskOption                 { return func(t *Task) { t.licence = s } }
func WithTags(m map[string]string) TaskOption         { return func(t *Task) { t.tags = m } }
func WithTimer(unix int64) TaskOption                 { return func(t *Task) { t.timer = &unix } }
func WithMaxAttempt(n int) TaskOption                 { return func(t *Task) { t.maxAttempt = n } }

// NewTask builds a Task with the same defaults puliclient.Task uses:
// runner "default", decomposer "default", minNbCores 1, maxAttempt 1.
func NewTask(name string, opts ...TaskOption) *Task {
	t := &Task{
		name:       name,
		runner:     "default",
		decomposer: "default",
		minNbCores: 1,
		maxAttempt: 1,
		arguments:  map[string]string{},
		environment: map[string]string{},
		tags:        map[string]string{},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// AddCommand appends an explicit command, bypassing the decomposer for
// this task entirely — mirrors Task.addCommand.
func (t *Task) AddCommand(c Command) {
	t.commands = append(t.commands, c)
	t.explicit = true
}

// SetEnv sets a single environment variable on the task's own scope.
func (t *Task) SetEnv(key, value string) {
	if t.environment == nil {
		t.environment = map[string]string{}
	}
	t.environment[key] = value
}

// DependsOn declares that this task must not go READY until target's
// status is in statusSet (defaulting to [DONE], mirroring
// Task.dependsOn's default).
func (t *Task) DependsOn(target Node, statusSet ...model.Status) {
	t.addDependency(target, statusSet)
}

func (t *Task) nodeName() string { return t.name }
func (t *Task) deps() []dependencyDecl { return t.dependencies }
func (t *Task) parentNode() *TaskGroup { return t.parent }
func (t *Task) setParentNode(tg *TaskGroup) { t.parent = tg }

func (t *Task) addDependency(target Node, statusSet []model.Status) {
	if len(statusSet) == 0 {
		statusSet = []model.Status{model.StatusDone}
	}
	t.dependencies = append(t.dependencies, dependencyDecl{target: target, statusSet: statusSet})
}

// TaskGroup is a container of child tasks/task groups with a pluggable
// ordering strategy, mirroring puliclient.TaskGroup.
type TaskGroup struct {
	name        string
	strategy    string
	expander    string
	arguments   map[string]string
	environment map[string]string
	tags        map[string]string
	timer       *int64
	priority    int
	dispatchKey float64
	maxRN       int
	children    []Node
	dependencies []dependencyDecl
	parent      *TaskGroup
	expanded    bool
}

// TaskGroupOption configures a TaskGroup at construction time.
type TaskGroupOption func(*TaskGroup)

func WithStrategy(name string) TaskGroupOption          { return func(tg *TaskGroup) { tg.strategy = name } }
func WithExpander(name string) TaskGroupOption          { return func(tg *TaskGroup) { tg.expander = name } }
func WithGroupArguments(m map[string]string) TaskGroupOption {
	return func(tg *TaskGroup) { tg.arguments = m }
}
func WithGroupEnvironment(m map[string]string) TaskGroupOption {
	return func(tg *TaskGroup) { tg.environment = m }
}
func WithGroupTags(m map[string]string) TaskGroupOption { return func(tg *TaskGroup) { tg.tags = m } }
func WithGroupTimer(unix int64) TaskGroupOption         { return func(tg *TaskGroup) { tg.timer = &unix } }
func WithGroupPriority(n int) TaskGroupOption           { return func(tg *TaskGroup) { tg.priority = n } }
func WithGroupDispatchKey(n float64) TaskGroupOption    { return func(tg *TaskGroup) { tg.dispatchKey = n } }
func WithGroupMaxRN(n int) TaskGroupOption              { return func(tg *TaskGroup) { tg.maxRN = n } }

// NewTaskGroup builds a TaskGroup defaulting to the FIFO strategy, the
// same default puliclient.TaskGroup uses.
func NewTaskGroup(name string, opts ...TaskGroupOption) *TaskGroup {
	tg := &TaskGroup{
		name:        name,
		strategy:    "fifo",
		expander:    "default",
		arguments:   map[string]string{},
		environment: map[string]string{},
		tags:        map[string]string{},
	}
	for _, o := range opts {
		o(tg)
	}
	return tg
}

func (tg *TaskGroup) nodeName() string { return tg.name }
func (tg *TaskGroup) deps() []dependencyDecl { return tg.dependencies }
func (tg *TaskGroup) parentNode() *TaskGroup { return tg.parent }
func (tg *TaskGroup) setParentNode(parent *TaskGroup) { tg.parent = parent }

func (tg *TaskGroup) addDependency(target Node, statusSet []model.Status) {
	if len(statusSet) == 0 {
		statusSet = []model.Status{model.StatusDone}
	}
	tg.dependencies = append(tg.dependencies, dependencyDecl{target: target, statusSet: statusSet})
}

// DependsOn declares a dependency that hierarchical lowering will push
// down onto every descendant leaf task at serialization time.
func (tg *TaskGroup) DependsOn(target Node, statusSet ...model.Status) {
	tg.addDependency(target, statusSet)
}

// AddTask attaches an already-built task as a child, setting its parent
// scope for argument/environment inheritance. Returns ErrDuplicateNode if
// the task is already attached somewhere.
func (tg *TaskGroup) AddTask(t *Task) error {
	if t.parent != nil {
		return ErrDuplicateNode
	}
	t.parent = tg
	tg.children = append(tg.children, t)
	return nil
}

// AddTaskGroup attaches an already-built task group as a child.
func (tg *TaskGroup) AddTaskGroup(child *TaskGroup) error {
	if child.parent != nil {
		return ErrDuplicateNode
	}
	child.parent = tg
	tg.children = append(tg.children, child)
	return nil
}

// AddNewTask builds and attaches a task in one call.
func (tg *TaskGroup) AddNewTask(name string, opts ...TaskOption) (*Task, error) {
	t := NewTask(name, opts...)
	if err := tg.AddTask(t); err != nil {
		return nil, err
	}
	return t, nil
}

// AddNewTaskGroup builds and attaches a task group in one call.
func (tg *TaskGroup) AddNewTaskGroup(name string, opts ...TaskGroupOption) (*TaskGroup, error) {
	child := NewTaskGroup(name, opts...)
	if err := tg.AddTaskGroup(child); err != nil {
		return nil, err
	}
	return child, nil
}

// Graph is the top-level object a client builds, expands, and submits.
type Graph struct {
	Name     string
	User     string
	PoolName string
	MaxRN    int
	Root     *TaskGroup
	Tags     map[string]string
}

// NewGraph creates a graph with a fresh root task group, mirroring
// puliclient.Graph's default-root behavior.
func NewGraph(name, user string) *Graph {
	return &Graph{
		Name:     name,
		User:     user,
		PoolName: "default",
		MaxRN:    -1,
		Root:     NewTaskGroup(name),
		Tags:     map[string]string{},
	}
}

// Add attaches an already-built node under the graph's root.
func (g *Graph) Add(n Node) error {
	switch v := n.(type) {
	case *Task:
		return g.Root.AddTask(v)
	case *TaskGroup:
		return g.Root.AddTaskGroup(v)
	default:
		return ErrNotAGraphRoot
	}
}

// AddNewTask builds and attaches a task under the graph's root.
func (g *Graph) AddNewTask(name string, opts ...TaskOption) (*Task, error) {
	return g.Root.AddNewTask(name, opts...)
}

// AddNewTaskGroup builds and attaches a task group under the graph's root.
func (g *Graph) AddNewTaskGroup(name string, opts ...TaskGroupOption) (*TaskGroup, error) {
	return g.Root.AddNewTaskGroup(name, opts...)
}

// Edge is one dependency declaration for AddEdges/AddChain.
type Edge struct {
	From      Node
	To        Node
	StatusSet []model.Status
}

// AddEdges declares a batch of dependencies in one call, mirroring
// puliclient.Graph.addEdges.
func (g *Graph) AddEdges(edges ...Edge) {
	for _, e := range edges {
		e.From.addDependency(e.To, e.StatusSet)
	}
}

// AddChain declares a dependency chain: nodes[1] depends on nodes[0],
// nodes[2] depends on nodes[1], and so on, mirroring
// puliclient.Graph.addChain.
func (g *Graph) AddChain(nodes []Node, statusSet ...model.Status) {
	for i := 1; i < len(nodes); i++ {
		nodes[i].addDependency(nodes[i-1], statusSet)
	}
}
