package dispatchloop

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dispatchd/internal/apperrors"
	"dispatchd/internal/assignment"
	"dispatchd/internal/logging"
	"dispatchd/internal/metrics"
	"dispatchd/internal/model"
	"dispatchd/internal/wire"
	"dispatchd/internal/workerclient"
)

type fakeStore struct {
	flushes int
}

func (f *fakeStore) Flush(context.Context, *model.Tree) error   { f.flushes++; return nil }
func (*fakeStore) Restore(context.Context) (*model.Tree, error) { return model.NewTree(), nil }
func (*fakeStore) Close() error                                 { return nil }

func newTestLoop() (*Loop, *model.Tree) {
	tree := model.NewTree()
	tree.ToCreate.Drain()

	dispatcher := workerclient.NewFakeDispatcher()
	licences := assignment.NewLicenceTracker(map[string]int{})
	assignLoop := assignment.NewLoop(assignment.Config{HeartbeatTimeout: time.Minute}, dispatcher, nil, licences)

	reg := prometheus.NewRegistry()
	loop := New(tree, assignLoop, &fakeStore{}, metrics.New(reg), logging.Nop{}, Config{
		AssignTickInterval:  10 * time.Millisecond,
		PersistTickInterval: 10 * time.Millisecond,
		SweepInterval:       10 * time.Millisecond,
		CommandTimeout:      time.Hour,
	})
	return loop, tree
}

func sampleDoc() *wire.Document {
	return &wire.Document{
		SchemaVersion: wire.SupportedSchemaVersion,
		Name:          "shot",
		Root:          0,
		Nodes: []wire.NodeEntry{
			{Index: 0, Type: wire.NodeTypeFolder, Name: "root", Children: []int{1}},
			{Index: 1, Type: wire.NodeTypeTask, Name: "render", Commands: []wire.CommandEntry{{Name: "frame"}}},
		},
	}
}

func TestSubmitGraftsAndStagesCreates(t *testing.T) {
	loop, tree := newTestLoop()
	result, err := loop.Submit(sampleDoc(), "bob")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(result.TaskIDs) != 1 {
		t.Fatalf("expected one task, got %+v", result)
	}
	if len(tree.ToCreate.Drain()) == 0 {
		t.Fatalf("expected staged creates after submit")
	}
}

func TestSetStatusIsIdempotent(t *testing.T) {
	loop, tree := newTestLoop()
	task := &model.TaskNode{ID: tree.NewTaskID(), ParentID: tree.RootID, Status: model.StatusReady}
	tree.RegisterTask(task)
	tree.ToCreate.Drain()

	ref := model.NodeRef{Kind: model.KindTaskNode, ID: task.ID}
	if err := loop.SetStatus(context.Background(), ref, model.StatusPaused); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if len(tree.ToModify.Drain()) != 1 {
		t.Fatalf("expected exactly one modify from the first transition")
	}
	if err := loop.SetStatus(context.Background(), ref, model.StatusPaused); err != nil {
		t.Fatalf("SetStatus (repeat): %v", err)
	}
	if n := len(tree.ToModify.Drain()); n != 0 {
		t.Fatalf("expected no further writes for a repeated status, got %d", n)
	}
}

func TestSetStatusRejectsNonControlStatus(t *testing.T) {
	loop, _ := newTestLoop()
	err := loop.SetStatus(context.Background(), model.NodeRef{Kind: model.KindTaskNode, ID: 0}, model.StatusRunning)
	if err == nil {
		t.Fatalf("expected an error for a non-control status")
	}
}

func TestSetStatusUnknownRefReturnsNotFound(t *testing.T) {
	loop, _ := newTestLoop()
	err := loop.SetStatus(context.Background(), model.NodeRef{Kind: model.KindTaskNode, ID: 999}, model.StatusCanceled)
	if err != apperrors.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWorkerCallbackReleasesLicenceOnTerminalStatus(t *testing.T) {
	loop, tree := newTestLoop()
	task := &model.TaskNode{ID: tree.NewTaskID(), ParentID: tree.RootID, Status: model.StatusReady, Licence: "maya"}
	tree.RegisterTask(task)
	cmd := &model.Command{ID: tree.NewCommandID(), TaskID: task.ID, Status: model.StatusRunning, MaxAttempt: 1}
	tree.RegisterCommand(cmd)
	task.Commands = append(task.Commands, cmd.ID)
	tree.RenderNodes["rn1"] = &model.RenderNode{Name: "rn1", CurrentCommands: []int{cmd.ID}}

	loop.Assign.Licences.SetCapacity("maya", 1)
	loop.Assign.Licences.Acquire("maya")

	if err := loop.WorkerCallback("rn1", cmd.ID, model.StatusDone, ""); err != nil {
		t.Fatalf("WorkerCallback: %v", err)
	}
	if got := loop.Assign.Licences.InUse("maya"); got != 0 {
		t.Fatalf("expected licence released, got %d in use", got)
	}
	if len(tree.RenderNodes["rn1"].CurrentCommands) != 0 {
		t.Fatalf("expected command cleared from render node")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	loop, _ := newTestLoop()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
