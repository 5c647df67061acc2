package model

import "testing"

func TestRollupPrecedence(t *testing.T) {
	cases := []struct {
		name     string
		children []Status
		want     Status
	}{
		{"all done", []Status{StatusDone, StatusDone}, StatusDone},
		{"one blocked", []Status{StatusDone, StatusBlocked}, StatusBlocked},
		{"ready beats blocked", []Status{StatusBlocked, StatusReady}, StatusReady},
		{"running beats ready", []Status{StatusReady, StatusRunning}, StatusRunning},
		{"paused beats running", []Status{StatusRunning, StatusPaused}, StatusPaused},
		{"canceled beats paused", []Status{StatusPaused, StatusCanceled}, StatusCanceled},
		{"error beats everything", []Status{StatusError, StatusCanceled, StatusDone, StatusRunning}, StatusError},
		{"empty rolls up to done", nil, StatusDone},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Rollup(c.children); got != c.want {
				t.Fatalf("Rollup(%v) = %v, want %v", c.children, got, c.want)
			}
		})
	}
}

func TestArgScopeFallsBackToParent(t *testing.T) {
	parent := NewArgScope(map[string]string{"a": "1", "b": "2"})
	child := NewArgScope(map[string]string{"b": "override"}).WithParent(parent)

	if v, ok := child.Get("a"); !ok || v != "1" {
		t.Fatalf("expected fallback to parent for a, got %q ok=%v", v, ok)
	}
	if v, ok := child.Get("b"); !ok || v != "override" {
		t.Fatalf("expected child override for b, got %q ok=%v", v, ok)
	}
	if _, ok := child.Get("missing"); ok {
		t.Fatalf("expected missing key to fail lookup")
	}

	resolved := child.Resolved()
	if resolved["a"] != "1" || resolved["b"] != "override" {
		t.Fatalf("unexpected resolved scope: %v", resolved)
	}
}

func TestArgScopeNeverPropagatesUpward(t *testing.T) {
	parent := NewArgScope(map[string]string{"a": "1"})
	child := NewArgScope(map[string]string{"b": "2"}).WithParent(parent)
	child.Own()["b"] = "mutated"
	if _, ok := parent.Get("b"); ok {
		t.Fatalf("child key leaked into parent scope")
	}
}

func TestTreeRollupPropagatesToParent(t *testing.T) {
	tree := NewTree()

	folder := &FolderNode{ID: tree.NewFolderID(), ParentID: tree.RootID, Name: "shot", Status: StatusBlocked}
	tree.RegisterFolder(folder)
	root := tree.Folders[tree.RootID]
	root.Children = append(root.Children, NodeRef{Kind: KindFolderNode, ID: folder.ID})

	task := &TaskNode{ID: tree.NewTaskID(), ParentID: folder.ID, Name: "render", Status: StatusBlocked}
	tree.RegisterTask(task)
	folder.Children = append(folder.Children, NodeRef{Kind: KindTaskNode, ID: task.ID})

	cmd := &Command{ID: tree.NewCommandID(), TaskID: task.ID, Name: "render.0001", Status: StatusReady}
	tree.RegisterCommand(cmd)
	task.Commands = append(task.Commands, cmd.ID)

	tree.RecomputeRollup(NodeRef{Kind: KindTaskNode, ID: task.ID})

	if task.Status != StatusReady {
		t.Fatalf("expected task to roll up to READY, got %v", task.Status)
	}
	if folder.Status != StatusReady {
		t.Fatalf("expected folder to roll up to READY, got %v", folder.Status)
	}
}
