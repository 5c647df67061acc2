package model

import "testing"

func TestNewTreeCreatesRootFolderAndStagesCreate(t *testing.T) {
	tree := NewTree()
	root, ok := tree.Folders[tree.RootID]
	if !ok {
		t.Fatalf("expected root folder %d to exist", tree.RootID)
	}
	if root.ParentID != RootParentID {
		t.Fatalf("expected root's parent to be RootParentID, got %d", root.ParentID)
	}
	entries := tree.ToCreate.Drain()
	if len(entries) != 1 || entries[0].ID != tree.RootID || entries[0].Kind != KindFolderNode {
		t.Fatalf("expected one staged create for the root folder, got %+v", entries)
	}
}

func TestRegisterTaskIndexesDependentsAndStagesCreate(t *testing.T) {
	tree := NewTree()
	tree.ToCreate.Drain()

	upstream := &TaskNode{ID: tree.NewTaskID(), ParentID: tree.RootID, Name: "comp"}
	tree.RegisterTask(upstream)

	downstream := &TaskNode{
		ID: tree.NewTaskID(), ParentID: tree.RootID, Name: "render",
		Dependencies: []Dependency{{Target: NodeRef{Kind: KindTaskNode, ID: upstream.ID}, StatusSet: []Status{StatusDone}}},
	}
	tree.RegisterTask(downstream)

	dependents := tree.Dependents(NodeRef{Kind: KindTaskNode, ID: upstream.ID})
	if len(dependents) != 1 || dependents[0].ID != downstream.ID {
		t.Fatalf("expected downstream task to be indexed as a dependent, got %+v", dependents)
	}

	entries := tree.ToCreate.Drain()
	if len(entries) != 2 {
		t.Fatalf("expected 2 staged creates, got %d", len(entries))
	}
}

func TestRecomputeRollupPropagatesToParent(t *testing.T) {
	tree := NewTree()
	folder := &FolderNode{ID: tree.NewFolderID(), ParentID: tree.RootID, Status: StatusBlocked}
	tree.RegisterFolder(folder)
	tree.Folders[tree.RootID].Children = append(tree.Folders[tree.RootID].Children, NodeRef{Kind: KindFolderNode, ID: folder.ID})

	task := &TaskNode{ID: tree.NewTaskID(), ParentID: folder.ID, Status: StatusReady}
	tree.RegisterTask(task)
	folder.Children = append(folder.Children, NodeRef{Kind: KindTaskNode, ID: task.ID})

	cmd := &Command{ID: tree.NewCommandID(), TaskID: task.ID, Status: StatusDone}
	tree.RegisterCommand(cmd)
	task.Commands = append(task.Commands, cmd.ID)

	changed := tree.RecomputeRollup(NodeRef{Kind: KindTaskNode, ID: task.ID})
	if !changed {
		t.Fatalf("expected task status to change on rollup")
	}
	if task.Status != StatusDone {
		t.Fatalf("expected task to roll up to DONE, got %s", task.Status)
	}
	if folder.Status != StatusDone {
		t.Fatalf("expected folder rollup to propagate to DONE, got %s", folder.Status)
	}
}

func TestRestoreTreeRebuildsDependentsWithoutStagingCreates(t *testing.T) {
	folders := map[int]*FolderNode{0: {ID: 0, ParentID: RootParentID}}
	tasks := map[int]*TaskNode{
		1: {ID: 1, ParentID: 0},
		2: {ID: 2, ParentID: 0, Dependencies: []Dependency{{Target: NodeRef{Kind: KindTaskNode, ID: 1}, StatusSet: []Status{StatusDone}}}},
	}
	tree := RestoreTree(0, folders, tasks, map[int]*Command{}, map[string]*RenderNode{}, map[string]*Pool{}, map[int]*PoolShare{})

	if tree.ToCreate.Len() != 0 {
		t.Fatalf("expected RestoreTree to stage nothing, got %d pending creates", tree.ToCreate.Len())
	}
	dependents := tree.Dependents(NodeRef{Kind: KindTaskNode, ID: 1})
	if len(dependents) != 1 || dependents[0].ID != 2 {
		t.Fatalf("expected restored dependency index to include task 2, got %+v", dependents)
	}
}

func TestSnapshotDeltaReflectsStatusChangeOnly(t *testing.T) {
	tree := NewTree()
	task := &TaskNode{ID: tree.NewTaskID(), ParentID: tree.RootID, Status: StatusReady}
	tree.RegisterTask(task)

	before := tree.Snapshot()
	tree.SetStatus(NodeRef{Kind: KindTaskNode, ID: task.ID}, StatusRunning)
	after := tree.Snapshot()

	delta := CalculateDelta(before, after)
	if delta.Empty() {
		t.Fatalf("expected a non-empty delta after a status change")
	}
	if len(delta.Modified) != 1 || delta.Modified[0].ID != task.ID {
		t.Fatalf("expected task %d to be the sole modification, got %+v", task.ID, delta.Modified)
	}
	if len(delta.Added) != 0 || len(delta.Removed) != 0 {
		t.Fatalf("expected no adds/removes, got %+v", delta)
	}
}
