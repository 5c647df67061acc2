// Package model implements the in-memory dispatch tree (C3): the node
// types, the status state machine and its rollup precedence, the
// hierarchical argument/environment scoping, and the tree itself with its
// pending-persistence queues. Nothing in this package talks to a network
// or a database; it is the single-writer data structure every other
// component mutates or reads through.
package model

import "sync"

// Tree is the whole in-memory dispatch tree plus its bookkeeping. Callers
// are expected to serialize access through one writer goroutine (see
// internal/dispatchloop) — the mutex here is a safety net for the
// read-mostly paths (metrics, HTTP status queries) that run concurrently
// with it, not a substitute for that discipline.
type Tree struct {
	mu sync.RWMutex

	RootID int

	Folders     map[int]*FolderNode
	Tasks       map[int]*TaskNode
	Commands    map[int]*Command
	RenderNodes map[string]*RenderNode
	Pools       map[string]*Pool
	PoolShares  map[int]*PoolShare

	// dependents maps a target NodeRef to the set of NodeRefs that declared
	// a dependency on it, so the dependency engine can find what to
	// re-evaluate after a status change without scanning the whole tree.
	dependents map[NodeRef][]NodeRef

	folderIDs    *IDAllocator
	taskIDs      *IDAllocator
	commandIDs   *IDAllocator
	poolShareIDs *IDAllocator

	ToCreate  *OpQueue
	ToModify  *OpQueue
	ToArchive *OpQueue
}

// NewTree creates an empty tree with a single root folder node (ID 0,
// ParentID RootParentID), matching puliclient.Graph's default root
// TaskGroup when none is supplied explicitly.
func NewTree() *Tree {
	t := &Tree{
		Folders:      map[int]*FolderNode{},
		Tasks:        map[int]*TaskNode{},
		Commands:     map[int]*Command{},
		RenderNodes:  map[string]*RenderNode{},
		Pools:        map[string]*Pool{},
		PoolShares:   map[int]*PoolShare{},
		dependents:   map[NodeRef][]NodeRef{},
		folderIDs:    NewIDAllocator(),
		taskIDs:      NewIDAllocator(),
		commandIDs:   NewIDAllocator(),
		poolShareIDs: NewIDAllocator(),
		ToCreate:     newOpQueue(),
		ToModify:     newOpQueue(),
		ToArchive:    newOpQueue(),
	}
	root := &FolderNode{
		ID:       t.folderIDs.Next(),
		ParentID: RootParentID,
		Name:     "root",
		Strategy: "fifo",
		Status:   StatusDone,
	}
	t.Folders[root.ID] = root
	t.RootID = root.ID
	t.ToCreate.Enqueue(KindFolderNode, root.ID, OpCreate)
	return t
}

// NewFolderID allocates the next folder ID without registering a node;
// callers finish construction then call RegisterFolder.
func (t *Tree) NewFolderID() int { return t.folderIDs.Next() }

// NewTaskID allocates the next task ID.
func (t *Tree) NewTaskID() int { return t.taskIDs.Next() }

// NewCommandID allocates the next command ID.
func (t *Tree) NewCommandID() int { return t.commandIDs.Next() }

// NewPoolShareID allocates the next pool-share ID.
func (t *Tree) NewPoolShareID() int { return t.poolShareIDs.Next() }

// RestoreAllocators fast-forwards every per-class allocator past the
// highest ID seen in a restored snapshot, called once during the 9-step
// restart-restore sequence before any new submission is accepted.
func (t *Tree) RestoreAllocators(maxFolder, maxTask, maxCommand, maxPoolShare int) {
	t.folderIDs.Restore(maxFolder)
	t.taskIDs.Restore(maxTask)
	t.commandIDs.Restore(maxCommand)
	t.poolShareIDs.Restore(maxPoolShare)
}

// RestoreTree rebuilds a tree from rows already persisted in the store,
// wiring the dependency reverse-index but staging nothing onto the
// persistence queues (the data already exists there). Callers must call
// RestoreAllocators afterward so newly submitted nodes never collide with a
// restored ID.
func RestoreTree(rootID int, folders map[int]*FolderNode, tasks map[int]*TaskNode, commands map[int]*Command, renderNodes map[string]*RenderNode, pools map[string]*Pool, poolShares map[int]*PoolShare) *Tree {
	t := &Tree{
		RootID:       rootID,
		Folders:      folders,
		Tasks:        tasks,
		Commands:     commands,
		RenderNodes:  renderNodes,
		Pools:        pools,
		PoolShares:   poolShares,
		dependents:   map[NodeRef][]NodeRef{},
		folderIDs:    NewIDAllocator(),
		taskIDs:      NewIDAllocator(),
		commandIDs:   NewIDAllocator(),
		poolShareIDs: NewIDAllocator(),
		ToCreate:     newOpQueue(),
		ToModify:     newOpQueue(),
		ToArchive:    newOpQueue(),
	}
	for id, f := range folders {
		t.indexDependencies(NodeRef{Kind: KindFolderNode, ID: id}, f.Dependencies)
	}
	for id, tn := range tasks {
		t.indexDependencies(NodeRef{Kind: KindTaskNode, ID: id}, tn.Dependencies)
	}
	return t
}

// RegisterFolder inserts a fully-built folder node, wires its dependency
// reverse-index, and stages a persistence create.
func (t *Tree) RegisterFolder(f *FolderNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Folders[f.ID] = f
	t.indexDependencies(NodeRef{Kind: KindFolderNode, ID: f.ID}, f.Dependencies)
	t.ToCreate.Enqueue(KindFolderNode, f.ID, OpCreate)
}

// RegisterTask inserts a fully-built task node.
func (t *Tree) RegisterTask(tn *TaskNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Tasks[tn.ID] = tn
	t.indexDependencies(NodeRef{Kind: KindTaskNode, ID: tn.ID}, tn.Dependencies)
	t.ToCreate.Enqueue(KindTaskNode, tn.ID, OpCreate)
}

// RegisterCommand inserts a command belonging to an already-registered task.
func (t *Tree) RegisterCommand(c *Command) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Commands[c.ID] = c
	t.ToCreate.Enqueue(KindCommand, c.ID, OpCreate)
}

// RegisterPoolShare inserts a pool share reservation.
func (t *Tree) RegisterPoolShare(p *PoolShare) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.PoolShares[p.ID] = p
	t.ToCreate.Enqueue(KindPoolShare, p.ID, OpCreate)
}

func (t *Tree) indexDependencies(src NodeRef, deps []Dependency) {
	for _, d := range deps {
		t.dependents[d.Target] = append(t.dependents[d.Target], src)
	}
}

// Dependents returns the NodeRefs that declared a dependency on target.
func (t *Tree) Dependents(target NodeRef) []NodeRef {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]NodeRef, len(t.dependents[target]))
	copy(out, t.dependents[target])
	return out
}

// StatusOf returns the current status of any node by ref.
func (t *Tree) StatusOf(ref NodeRef) (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch ref.Kind {
	case KindFolderNode:
		if f, ok := t.Folders[ref.ID]; ok {
			return f.Status, true
		}
	case KindTaskNode:
		if tn, ok := t.Tasks[ref.ID]; ok {
			return tn.Status, true
		}
	case KindCommand:
		if c, ok := t.Commands[ref.ID]; ok {
			return c.Status, true
		}
	}
	return 0, false
}

// SetStatus updates a node's status in place and stages a persistence
// modify. It does not recompute rollups or propagate dependencies — that
// is internal/depengine's job, called right after this.
func (t *Tree) SetStatus(ref NodeRef, s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch ref.Kind {
	case KindFolderNode:
		if f, ok := t.Folders[ref.ID]; ok {
			f.Status = s
		}
	case KindTaskNode:
		if tn, ok := t.Tasks[ref.ID]; ok {
			tn.Status = s
		}
	case KindCommand:
		if c, ok := t.Commands[ref.ID]; ok {
			c.Status = s
		}
	}
	t.ToModify.Enqueue(ref.Kind, ref.ID, OpModify)
}

// ParentOf returns the parent folder ref of a given node, if any.
func (t *Tree) ParentOf(ref NodeRef) (NodeRef, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var parentID int
	switch ref.Kind {
	case KindFolderNode:
		f, ok := t.Folders[ref.ID]
		if !ok {
			return NodeRef{}, false
		}
		parentID = f.ParentID
	case KindTaskNode:
		tn, ok := t.Tasks[ref.ID]
		if !ok {
			return NodeRef{}, false
		}
		parentID = tn.ParentID
	default:
		return NodeRef{}, false
	}
	if parentID == RootParentID {
		return NodeRef{}, false
	}
	return NodeRef{Kind: KindFolderNode, ID: parentID}, true
}

// ChildStatuses returns the statuses of a folder's direct children, used
// by RecomputeRollup.
func (t *Tree) ChildStatuses(folderID int) []Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.Folders[folderID]
	if !ok {
		return nil
	}
	out := make([]Status, 0, len(f.Children))
	for _, c := range f.Children {
		switch c.Kind {
		case KindFolderNode:
			if child, ok := t.Folders[c.ID]; ok {
				out = append(out, child.Status)
			}
		case KindTaskNode:
			if child, ok := t.Tasks[c.ID]; ok {
				out = append(out, child.Status)
			}
		}
	}
	return out
}

// TaskCommandStatuses returns the statuses of a task's commands, used by
// RecomputeRollup for task-level rollup.
func (t *Tree) TaskCommandStatuses(taskID int) []Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tn, ok := t.Tasks[taskID]
	if !ok {
		return nil
	}
	out := make([]Status, 0, len(tn.Commands))
	for _, cid := range tn.Commands {
		if c, ok := t.Commands[cid]; ok {
			out = append(out, c.Status)
		}
	}
	return out
}

// RecomputeRollup recomputes ref's status from its children/commands and,
// if it changed, recurses to the parent. It returns true if ref's own
// status changed.
func (t *Tree) RecomputeRollup(ref NodeRef) bool {
	var statuses []Status
	switch ref.Kind {
	case KindFolderNode:
		statuses = t.ChildStatuses(ref.ID)
	case KindTaskNode:
		statuses = t.TaskCommandStatuses(ref.ID)
	default:
		return false
	}
	newStatus := Rollup(statuses)
	old, ok := t.StatusOf(ref)
	if !ok || old == newStatus {
		return false
	}
	t.SetStatus(ref, newStatus)
	if parent, ok := t.ParentOf(ref); ok {
		t.RecomputeRollup(parent)
	}
	return true
}
