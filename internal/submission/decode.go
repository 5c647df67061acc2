// Package submission implements the submission decoder (C2): turning a
// validated wire.Document into nodes grafted onto the live dispatch tree.
// Decode builds every new node in a local staging area first and only
// registers them on the tree once the whole submission is known to be
// constructible — a cycle, a dangling reference, or any other failure
// partway through must never leave the tree half-mutated.
package submission

import (
	"dispatchd/internal/apperrors"
	"dispatchd/internal/depcycle"
	"dispatchd/internal/deplower"
	"dispatchd/internal/model"
	"dispatchd/internal/wire"
)

// Result reports what Decode grafted onto the tree.
type Result struct {
	RootFolderID int
	TaskIDs      []int
	CommandIDs   []int
	PoolShareID  int
}

// Decode resolves doc against tree, grafting a new subtree under the tree
// root and registering a PoolShare for doc.PoolName. It re-runs
// hierarchical dependency lowering and the dependency cycle check
// defensively: a caller that posts a raw wire document without going
// through internal/graphbuilder cannot be trusted to have done either.
func Decode(doc *wire.Document, tree *model.Tree, user string) (*Result, error) {
	if err := wire.Validate(doc); err != nil {
		return nil, err
	}
	deplower.Lower(doc)
	if err := checkCycles(doc); err != nil {
		return nil, err
	}

	staged, err := stage(doc, tree)
	if err != nil {
		return nil, err
	}

	return commit(tree, doc, staged, user)
}

func checkCycles(doc *wire.Document) error {
	byIndex := make(map[int]*wire.NodeEntry, len(doc.Nodes))
	for i := range doc.Nodes {
		byIndex[doc.Nodes[i].Index] = &doc.Nodes[i]
	}
	edges := func(i int) []int {
		out := make([]int, len(byIndex[i].Dependencies))
		for j, d := range byIndex[i].Dependencies {
			out[j] = d.TargetIndex
		}
		return out
	}
	name := func(i int) string { return byIndex[i].Name }
	return depcycle.Detect(len(doc.Nodes), edges, name)
}

// staged is the local, not-yet-committed build of every node Decode will
// register, keyed by the wire document's own indices.
type staged struct {
	folderIDs map[int]int // doc index -> new tree folder ID, folder nodes only
	taskIDs   map[int]int // doc index -> new tree task ID, task nodes only
	folders   map[int]*model.FolderNode
	tasks     map[int]*model.TaskNode
	commands  []*model.Command
}

func stage(doc *wire.Document, tree *model.Tree) (*staged, error) {
	st := &staged{
		folderIDs: map[int]int{},
		taskIDs:   map[int]int{},
		folders:   map[int]*model.FolderNode{},
		tasks:     map[int]*model.TaskNode{},
	}

	// Pass 1: allocate an ID for every node so cross-references resolve
	// regardless of declaration order.
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		switch n.Type {
		case wire.NodeTypeFolder:
			st.folderIDs[n.Index] = tree.NewFolderID()
		case wire.NodeTypeTask:
			st.taskIDs[n.Index] = tree.NewTaskID()
		}
	}

	ref := func(idx int) model.NodeRef {
		if id, ok := st.folderIDs[idx]; ok {
			return model.NodeRef{Kind: model.KindFolderNode, ID: id}
		}
		return model.NodeRef{Kind: model.KindTaskNode, ID: st.taskIDs[idx]}
	}

	byIndex := make(map[int]*wire.NodeEntry, len(doc.Nodes))
	for i := range doc.Nodes {
		byIndex[doc.Nodes[i].Index] = &doc.Nodes[i]
	}
	parentOf := map[int]int{}
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		for _, c := range n.Children {
			parentOf[c] = n.Index
		}
	}
	// parentID resolves a node's ParentID within the submission. The
	// document root has no parent inside the submission itself — commit
	// fixes its ParentID to the live tree's grafting point afterward.
	parentID := func(idx int) int {
		p, ok := parentOf[idx]
		if !ok {
			return model.RootParentID
		}
		return st.folderIDs[p]
	}

	// Pass 2: build the real node objects now that every reference resolves.
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		deps := make([]model.Dependency, len(n.Dependencies))
		for j, d := range n.Dependencies {
			statusSet := make([]model.Status, len(d.StatusSet))
			for k, s := range d.StatusSet {
				statusSet[k] = model.Status(s)
			}
			deps[j] = model.Dependency{Target: ref(d.TargetIndex), StatusSet: statusSet}
		}

		switch n.Type {
		case wire.NodeTypeFolder:
			children := make([]model.NodeRef, len(n.Children))
			for j, c := range n.Children {
				children[j] = ref(c)
			}
			st.folders[n.Index] = &model.FolderNode{
				ID:           st.folderIDs[n.Index],
				ParentID:     parentID(n.Index),
				Name:         n.Name,
				Strategy:     defaultString(n.Strategy, "fifo"),
				Children:     children,
				Arguments:    model.NewArgScope(n.Arguments),
				Environment:  model.NewArgScope(n.Environment),
				Tags:         n.Tags,
				Timer:        n.Timer,
				Priority:     n.Priority,
				DispatchKey:  n.DispatchKey,
				MaxRN:        n.MaxRN,
				Dependencies: deps,
				Status:       model.StatusBlocked,
			}
		case wire.NodeTypeTask:
			initial := model.StatusReady
			if len(deps) > 0 {
				initial = model.StatusBlocked
			}
			cmdIDs := make([]int, len(n.Commands))
			for j, ce := range n.Commands {
				cmd := &model.Command{
					ID:         tree.NewCommandID(),
					TaskID:     st.taskIDs[n.Index],
					Name:       ce.Name,
					Runner:     defaultString(ce.Runner, "default"),
					Arguments:  ce.Arguments,
					Status:     initial,
					MaxAttempt: maxInt(n.MaxAttempt, 1),
				}
				cmdIDs[j] = cmd.ID
				st.commands = append(st.commands, cmd)
			}
			st.tasks[n.Index] = &model.TaskNode{
				ID:           st.taskIDs[n.Index],
				ParentID:     parentID(n.Index),
				Name:         n.Name,
				Commands:     cmdIDs,
				Status:       initial,
				Arguments:    model.NewArgScope(n.Arguments),
				Environment:  model.NewArgScope(n.Environment),
				Tags:         n.Tags,
				Timer:        n.Timer,
				Priority:     n.Priority,
				DispatchKey:  n.DispatchKey,
				MaxRN:        n.MaxRN,
				Runner:       defaultString(n.Runner, "default"),
				MaxAttempt:   maxInt(n.MaxAttempt, 1),
				MinNbCores:   maxInt(n.MinNbCores, 1),
				MaxNbCores:   n.MaxNbCores,
				RamUse:       n.RamUse,
				Requirements: n.Requirements,
				Licence:      n.Licence,
				Dependencies: deps,
			}
		}
	}

	return st, nil
}


func commit(tree *model.Tree, doc *wire.Document, st *staged, user string) (*Result, error) {
	rootRef := resolveRef(st, doc.Root)
	if rootRef.Kind != model.KindFolderNode {
		return nil, &apperrors.SubmissionError{Reason: "graph root must be a folder"}
	}
	if f, ok := st.folders[doc.Root]; ok {
		f.ParentID = tree.RootID
		if user != "" {
			if f.Tags == nil {
				f.Tags = map[string]string{}
			}
			f.Tags["user"] = user
		}
	}

	chainSubmissionScopes(tree, st.folders, st.tasks)

	for _, f := range st.folders {
		tree.RegisterFolder(f)
	}
	for _, tn := range st.tasks {
		tree.RegisterTask(tn)
	}
	for _, c := range st.commands {
		tree.RegisterCommand(c)
	}

	root := tree.Folders[tree.RootID]
	root.Children = append(root.Children, rootRef)

	poolShare := &model.PoolShare{
		ID:           tree.NewPoolShareID(),
		PoolName:     defaultString(doc.PoolName, "default"),
		FolderNodeID: rootRef.ID,
		MaxRN:        doc.MaxRN,
	}
	tree.RegisterPoolShare(poolShare)

	result := &Result{RootFolderID: rootRef.ID, PoolShareID: poolShare.ID}
	for idx := range st.taskIDs {
		taskID := st.taskIDs[idx]
		result.TaskIDs = append(result.TaskIDs, taskID)
		tree.RecomputeRollup(model.NodeRef{Kind: model.KindTaskNode, ID: taskID})
	}
	for _, c := range st.commands {
		result.CommandIDs = append(result.CommandIDs, c.ID)
	}
	return result, nil
}

// chainSubmissionScopes wires every staged folder/task's ArgScope onto its
// parent's scope before the nodes are registered, mirroring the
// WithParent chaining internal/persistence/postgres's chainScopes applies
// on restore. folders and tasks are keyed by the wire document's index;
// lookups resolve by tree ID so a submission's root folder can chain onto
// the live tree's existing grafting point, not just its own siblings.
func chainSubmissionScopes(tree *model.Tree, folders map[int]*model.FolderNode, tasks map[int]*model.TaskNode) {
	byID := make(map[int]*model.FolderNode, len(folders))
	for _, f := range folders {
		byID[f.ID] = f
	}
	lookupFolder := func(id int) *model.FolderNode {
		if f, ok := byID[id]; ok {
			return f
		}
		return tree.Folders[id]
	}

	visited := map[int]bool{}
	var chainFolder func(f *model.FolderNode)
	chainFolder = func(f *model.FolderNode) {
		if f == nil || visited[f.ID] {
			return
		}
		visited[f.ID] = true
		parent := lookupFolder(f.ParentID)
		if parent == nil {
			return
		}
		if staged, ok := byID[parent.ID]; ok {
			chainFolder(staged)
		}
		f.Arguments = f.Arguments.WithParent(parent.Arguments)
		f.Environment = f.Environment.WithParent(parent.Environment)
	}
	for _, f := range folders {
		chainFolder(f)
	}
	for _, t := range tasks {
		parent := lookupFolder(t.ParentID)
		if parent == nil {
			continue
		}
		t.Arguments = t.Arguments.WithParent(parent.Arguments)
		t.Environment = t.Environment.WithParent(parent.Environment)
	}
}

func resolveRef(st *staged, idx int) model.NodeRef {
	if id, ok := st.folderIDs[idx]; ok {
		return model.NodeRef{Kind: model.KindFolderNode, ID: id}
	}
	return model.NodeRef{Kind: model.KindTaskNode, ID: st.taskIDs[idx]}
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func maxInt(v, min int) int {
	if v < min {
		return min
	}
	return v
}
