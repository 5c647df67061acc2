package model

// RootParentID marks a node with no parent folder (the tree root).
const RootParentID = -1

// NodeRef identifies a node in the tree by class and ID. Folder and task
// IDs are allocated from independent per-class allocators, so a bare int
// is ambiguous — every cross-reference (child list, dependency target)
// carries its Kind alongside the ID.
type NodeRef struct {
	Kind EntityKind
	ID   int
}

// Dependency is one outgoing dependency edge: "don't go READY until the
// target node's status is in StatusSet". StatusSet is almost always
// []Status{StatusDone}, but the wire format allows any subset.
type Dependency struct {
	Target    NodeRef
	StatusSet []Status
}

// Satisfied reports whether the dependency's target currently satisfies it.
func (d Dependency) Satisfied(targetStatus Status) bool {
	for _, s := range d.StatusSet {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Blocking reports whether the target's status makes this dependency
// permanently unsatisfiable (ERROR or CANCELED and neither is in the
// accepted set), which forces the dependent into CANCELED.
func (d Dependency) Blocking(targetStatus Status) bool {
	if d.Satisfied(targetStatus) {
		return false
	}
	return targetStatus == StatusError || targetStatus == StatusCanceled
}

// FolderNode is a TaskGroup: a container of child folders/tasks with a
// pluggable ordering Strategy, its own argument/environment scope, and a
// status that rolls up from its children per the fixed precedence order.
type FolderNode struct {
	ID           int
	ParentID     int
	Name         string
	Strategy     string
	Children     []NodeRef
	Status       Status
	Arguments    *ArgScope
	Environment  *ArgScope
	Tags         map[string]string
	Timer        *int64
	Priority     int
	DispatchKey  float64
	MaxRN        int
	Dependencies []Dependency
	Archived     bool
}

// TaskNode is a Task: a leaf unit of work decomposed into one or more
// Commands. Status rolls up from its commands the same way a folder's
// rolls up from its children.
type TaskNode struct {
	ID           int
	ParentID     int
	Name         string
	Commands     []int
	Status       Status
	Arguments    *ArgScope
	Environment  *ArgScope
	Tags         map[string]string
	Timer        *int64
	Priority     int
	DispatchKey  float64
	MaxRN        int
	Runner       string
	MaxAttempt   int
	MinNbCores   int
	MaxNbCores   int
	RamUse       int
	Requirements map[string]string
	Licence      string
	Dependencies []Dependency
	Archived     bool
}

func (f *FolderNode) dependencies() []Dependency { return f.Dependencies }
func (t *TaskNode) dependencies() []Dependency   { return t.Dependencies }
