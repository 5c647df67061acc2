package depengine

import (
	"testing"

	"dispatchd/internal/model"
)

// chain builds root -> taskA (no deps) -> taskB (depends on A DONE), each
// with a single command, and returns their refs.
func chain(t *testing.T) (*model.Tree, int, int, int, int) {
	t.Helper()
	tree := model.NewTree()

	taskA := &model.TaskNode{ID: tree.NewTaskID(), ParentID: tree.RootID, Name: "a", Status: model.StatusReady, MaxAttempt: 1}
	cmdA := &model.Command{ID: tree.NewCommandID(), TaskID: taskA.ID, Name: "a.1", Status: model.StatusReady, MaxAttempt: 1}
	taskA.Commands = []int{cmdA.ID}

	taskB := &model.TaskNode{
		ID: tree.NewTaskID(), ParentID: tree.RootID, Name: "b", Status: model.StatusBlocked, MaxAttempt: 1,
		Dependencies: []model.Dependency{{
			Target:    model.NodeRef{Kind: model.KindTaskNode, ID: taskA.ID},
			StatusSet: []model.Status{model.StatusDone},
		}},
	}
	cmdB := &model.Command{ID: tree.NewCommandID(), TaskID: taskB.ID, Name: "b.1", Status: model.StatusBlocked, MaxAttempt: 1}
	taskB.Commands = []int{cmdB.ID}

	tree.RegisterTask(taskA)
	tree.RegisterTask(taskB)
	tree.RegisterCommand(cmdA)
	tree.RegisterCommand(cmdB)

	root := tree.Folders[tree.RootID]
	root.Children = append(root.Children,
		model.NodeRef{Kind: model.KindTaskNode, ID: taskA.ID},
		model.NodeRef{Kind: model.KindTaskNode, ID: taskB.ID},
	)

	return tree, taskA.ID, cmdA.ID, taskB.ID, cmdB.ID
}

func TestRecordCommandResultPromotesDependentToReady(t *testing.T) {
	tree, taskA, cmdA, taskB, _ := chain(t)

	RecordCommandResult(tree, cmdA, model.StatusDone, "")

	if tree.Tasks[taskA].Status != model.StatusDone {
		t.Fatalf("expected task a DONE, got %v", tree.Tasks[taskA].Status)
	}
	if tree.Tasks[taskB].Status != model.StatusReady {
		t.Fatalf("expected task b promoted to READY, got %v", tree.Tasks[taskB].Status)
	}
}

func TestRecordCommandResultCancelsDependentOnFailure(t *testing.T) {
	tree, _, cmdA, taskB, cmdB := chain(t)

	RecordCommandResult(tree, cmdA, model.StatusError, "boom")

	if tree.Tasks[taskB].Status != model.StatusCanceled {
		t.Fatalf("expected task b CANCELED, got %v", tree.Tasks[taskB].Status)
	}
	if tree.Tasks[taskB].Tags["cancelReason"] == "" {
		t.Fatalf("expected a cancelReason tag citing the root cause")
	}
	if tree.Commands[cmdB].Status != model.StatusBlocked {
		t.Fatalf("command status should be untouched by cascading cancellation of its task")
	}
}

func TestRecordCommandResultRetriesWithinMaxAttempt(t *testing.T) {
	tree, taskA, cmdA, _, _ := chain(t)
	tree.Commands[cmdA].MaxAttempt = 3

	RecordCommandResult(tree, cmdA, model.StatusError, "transient")

	if tree.Commands[cmdA].Attempt != 1 {
		t.Fatalf("expected attempt incremented to 1, got %d", tree.Commands[cmdA].Attempt)
	}
	if tree.Commands[cmdA].Status != model.StatusReady {
		t.Fatalf("expected command back to READY for retry, got %v", tree.Commands[cmdA].Status)
	}
	if tree.Tasks[taskA].Status == model.StatusError {
		t.Fatalf("task should not roll up to ERROR while a retry is still available")
	}
}

func TestReadyRefsListsOnlyReadyTasks(t *testing.T) {
	tree, taskA, _, _, _ := chain(t)
	refs := ReadyRefs(tree)
	if len(refs) != 1 || refs[0].ID != taskA {
		t.Fatalf("expected only task a to be READY initially, got %v", refs)
	}
}
