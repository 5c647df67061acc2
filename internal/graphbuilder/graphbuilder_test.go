package graphbuilder

import (
	"context"
	"errors"
	"testing"

	"dispatchd/internal/model"
	"dispatchd/internal/wire"
	"dispatchd/internal/workerclient"
)

func TestPrepareGraphRepresentationFrameRange(t *testing.T) {
	g := NewGraph("shot010_comp", "alice")
	_, err := g.AddNewTask("render", WithArguments(map[string]string{
		"start": "1", "end": "10", "packetSize": "3", "cmd": "render_frame",
	}))
	if err != nil {
		t.Fatalf("AddNewTask: %v", err)
	}

	doc, err := g.PrepareGraphRepresentation()
	if err != nil {
		t.Fatalf("PrepareGraphRepresentation: %v", err)
	}

	var task *wire.NodeEntry
	for i := range doc.Nodes {
		if doc.Nodes[i].Type == wire.NodeTypeTask {
			task = &doc.Nodes[i]
		}
	}
	if task == nil {
		t.Fatalf("expected a task node in the document")
	}
	if len(task.Commands) != 4 {
		t.Fatalf("expected 4 packets covering [1,10] in slices of 3, got %d", len(task.Commands))
	}
	if task.Commands[3].Arguments["start"] != "10" || task.Commands[3].Arguments["end"] != "10" {
		t.Fatalf("expected final packet to be the shorter remainder, got %v", task.Commands[3].Arguments)
	}
}

func TestHierarchicalDependencyLowering(t *testing.T) {
	g := NewGraph("comp_then_render", "alice")
	comp, _ := g.AddNewTask("comp", WithArguments(map[string]string{"cmd": "comp"}))
	renderGroup, _ := g.AddNewTaskGroup("render_group")
	leaf1, err := renderGroup.AddNewTask("render1", WithArguments(map[string]string{"cmd": "render"}))
	if err != nil {
		t.Fatalf("AddNewTask: %v", err)
	}
	leaf2, _ := renderGroup.AddNewTask("render2", WithArguments(map[string]string{"cmd": "render"}))
	renderGroup.DependsOn(comp)

	doc, err := g.PrepareGraphRepresentation()
	if err != nil {
		t.Fatalf("PrepareGraphRepresentation: %v", err)
	}

	for _, leaf := range []*Task{leaf1, leaf2} {
		found := false
		for i := range doc.Nodes {
			if doc.Nodes[i].Name != leaf.name {
				continue
			}
			for _, dep := range doc.Nodes[i].Dependencies {
				if doc.Nodes[dep.TargetIndex].Name == "comp" {
					found = true
				}
			}
		}
		if !found {
			t.Fatalf("expected leaf task %q to inherit the group's dependency on comp", leaf.name)
		}
	}
}

func TestDuplicateNodeGuard(t *testing.T) {
	g := NewGraph("dup", "alice")
	t1 := NewTask("t1")
	if err := g.Root.AddTask(t1); err != nil {
		t.Fatalf("first AddTask: %v", err)
	}
	if err := g.Root.AddTask(t1); !errors.Is(err, ErrDuplicateNode) {
		t.Fatalf("expected ErrDuplicateNode on reattachment, got %v", err)
	}
}

func TestDependencyCycleRejected(t *testing.T) {
	g := NewGraph("cyclic", "alice")
	a, _ := g.AddNewTask("a", WithArguments(map[string]string{"cmd": "x"}))
	b, _ := g.AddNewTask("b", WithArguments(map[string]string{"cmd": "x"}))
	a.DependsOn(b)
	b.DependsOn(a)

	_, err := g.PrepareGraphRepresentation()
	if err == nil {
		t.Fatalf("expected a dependency cycle error")
	}
}

func TestExecuteRunsReadyThenBlockedCommands(t *testing.T) {
	g := NewGraph("chain", "alice")
	a, _ := g.AddNewTask("a", WithArguments(map[string]string{"cmd": "ok"}))
	b, _ := g.AddNewTask("b", WithArguments(map[string]string{"cmd": "ok"}))
	b.DependsOn(a)

	dispatcher := workerclient.NewFakeDispatcher()
	status, err := g.Execute(context.Background(), dispatcher)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if status != model.StatusDone {
		t.Fatalf("expected overall DONE, got %v", status)
	}
	if len(dispatcher.Calls) != 2 {
		t.Fatalf("expected both commands dispatched, got %d calls", len(dispatcher.Calls))
	}
}

func TestExecutePropagatesCancellationOnFailedDependency(t *testing.T) {
	g := NewGraph("chain", "alice")
	a, _ := g.AddNewTask("a", WithArguments(map[string]string{"cmd": "boom"}))
	b, _ := g.AddNewTask("b", WithArguments(map[string]string{"cmd": "ok"}))
	b.DependsOn(a)

	dispatcher := workerclient.NewFakeDispatcher()
	dispatcher.Handlers["boom"] = func(map[string]string) (model.Status, string) {
		return model.StatusError, "kaboom"
	}

	status, err := g.Execute(context.Background(), dispatcher)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if status != model.StatusError {
		t.Fatalf("expected overall ERROR (rollup favors error), got %v", status)
	}
}
