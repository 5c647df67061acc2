package assignment

import (
	"context"
	"testing"
	"time"

	"dispatchd/internal/model"
	"dispatchd/internal/workerclient"
)

func readyTask(tree *model.Tree, name string) (*model.TaskNode, *model.Command) {
	task := &model.TaskNode{ID: tree.NewTaskID(), ParentID: tree.RootID, Name: name, Status: model.StatusReady, MaxAttempt: 1}
	cmd := &model.Command{ID: tree.NewCommandID(), TaskID: task.ID, Name: name + ".1", Status: model.StatusReady, MaxAttempt: 1}
	task.Commands = []int{cmd.ID}
	tree.RegisterTask(task)
	tree.RegisterCommand(cmd)
	root := tree.Folders[tree.RootID]
	root.Children = append(root.Children, model.NodeRef{Kind: model.KindTaskNode, ID: task.ID})
	return task, cmd
}

func upNode(tree *model.Tree, name string, cores int) *model.RenderNode {
	rn := &model.RenderNode{Name: name, Status: model.RenderNodeUp, Pools: []string{"default"}, Cores: cores, LastHeartbeat: time.Now()}
	tree.RenderNodes[name] = rn
	return rn
}

func TestTickDispatchesReadyCommandToEligibleNode(t *testing.T) {
	tree := model.NewTree()
	_, cmd := readyTask(tree, "a")
	upNode(tree, "rn1", 1)

	loop := NewLoop(Config{HeartbeatTimeout: time.Hour}, workerclient.NewFakeDispatcher(), nil, nil)
	n := loop.Tick(context.Background(), tree, time.Now())

	if n != 1 {
		t.Fatalf("expected 1 command dispatched, got %d", n)
	}
	if tree.Commands[cmd.ID].Status != model.StatusDone {
		t.Fatalf("expected command DONE after a fake dispatch with no registered handler, got %v", tree.Commands[cmd.ID].Status)
	}
	if tree.Commands[cmd.ID].RenderNode != "rn1" {
		t.Fatalf("expected command bound to rn1, got %q", tree.Commands[cmd.ID].RenderNode)
	}
}

func TestTickSkipsWhenNoEligibleNode(t *testing.T) {
	tree := model.NewTree()
	readyTask(tree, "a")
	// no render nodes registered

	loop := NewLoop(Config{HeartbeatTimeout: time.Hour}, workerclient.NewFakeDispatcher(), nil, nil)
	n := loop.Tick(context.Background(), tree, time.Now())

	if n != 0 {
		t.Fatalf("expected no dispatch with no eligible render nodes, got %d", n)
	}
}

func TestTickRespectsLicenceCapacity(t *testing.T) {
	tree := model.NewTree()
	task1, _ := readyTask(tree, "a")
	task2, _ := readyTask(tree, "b")
	task1.Licence = "nuke"
	task2.Licence = "nuke"
	upNode(tree, "rn1", 2)

	licences := NewLicenceTracker(map[string]int{"nuke": 1})
	loop := NewLoop(Config{HeartbeatTimeout: time.Hour}, workerclient.NewFakeDispatcher(), nil, licences)
	n := loop.Tick(context.Background(), tree, time.Now())

	if n != 1 {
		t.Fatalf("expected only 1 command dispatched under a 1-token licence pool, got %d", n)
	}
}

func TestTickRespectsPoolQuota(t *testing.T) {
	tree := model.NewTree()
	task1, _ := readyTask(tree, "a")
	_, _ = readyTask(tree, "b")
	upNode(tree, "rn1", 2)

	share := &model.PoolShare{ID: tree.NewPoolShareID(), PoolName: "default", FolderNodeID: tree.RootID, MaxRN: 1}
	tree.RegisterPoolShare(share)
	_ = task1

	dispatcher := workerclient.NewFakeDispatcher()
	// Force the dispatcher to report RUNNING instead of its default instant
	// DONE, so the first dispatched command is still occupying the pool's
	// quota when the second task is evaluated later in the same tick.
	dispatcher.Handlers[""] = func(map[string]string) (model.Status, string) { return model.StatusRunning, "" }

	loop := NewLoop(Config{HeartbeatTimeout: time.Hour}, dispatcher, nil, nil)
	n := loop.Tick(context.Background(), tree, time.Now())

	if n != 1 {
		t.Fatalf("expected pool quota to cap dispatch at 1, got %d", n)
	}
}
