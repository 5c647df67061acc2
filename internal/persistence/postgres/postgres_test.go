package postgres

import (
	"testing"

	"dispatchd/internal/model"
)

func TestDependencyRoundTripsThroughJSON(t *testing.T) {
	deps := []model.Dependency{
		{Target: model.NodeRef{Kind: model.KindTaskNode, ID: 3}, StatusSet: []model.Status{model.StatusDone}},
		{Target: model.NodeRef{Kind: model.KindFolderNode, ID: 1}, StatusSet: []model.Status{model.StatusDone, model.StatusCanceled}},
	}

	data, err := encodeDependencies(deps)
	if err != nil {
		t.Fatalf("encodeDependencies: %v", err)
	}
	got, err := decodeDependencies(data)
	if err != nil {
		t.Fatalf("decodeDependencies: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(got))
	}
	if got[0].Target != deps[0].Target || got[1].Target != deps[1].Target {
		t.Fatalf("targets did not round-trip: %+v", got)
	}
	if !got[1].Satisfied(model.StatusCanceled) {
		t.Fatalf("expected restored dependency to still accept StatusCanceled")
	}
}

func TestNodeRefsRoundTripThroughJSON(t *testing.T) {
	refs := []model.NodeRef{
		{Kind: model.KindTaskNode, ID: 5},
		{Kind: model.KindFolderNode, ID: 2},
	}
	data, err := encodeNodeRefs(refs)
	if err != nil {
		t.Fatalf("encodeNodeRefs: %v", err)
	}
	got, err := decodeNodeRefs(data)
	if err != nil {
		t.Fatalf("decodeNodeRefs: %v", err)
	}
	if len(got) != 2 || got[0] != refs[0] || got[1] != refs[1] {
		t.Fatalf("refs did not round-trip: %+v", got)
	}
}

func TestDecodeEmptyColumnDoesNotError(t *testing.T) {
	m, err := decodeStringMap(nil)
	if err != nil || m == nil {
		t.Fatalf("decodeStringMap(nil) = %v, %v; want empty map, nil error", m, err)
	}
	if _, err := decodeNodeRefs(nil); err != nil {
		t.Fatalf("decodeNodeRefs(nil) error = %v", err)
	}
}

func TestChainScopesResolvesThroughFolderAncestry(t *testing.T) {
	root := &model.FolderNode{ID: 0, ParentID: model.RootParentID, Arguments: model.NewArgScope(map[string]string{"shot": "010"}), Environment: model.NewArgScope(nil)}
	mid := &model.FolderNode{ID: 1, ParentID: 0, Arguments: model.NewArgScope(map[string]string{"plan": "A"}), Environment: model.NewArgScope(nil)}
	folders := map[int]*model.FolderNode{0: root, 1: mid}

	task := &model.TaskNode{ID: 10, ParentID: 1, Arguments: model.NewArgScope(map[string]string{"frame": "1"}), Environment: model.NewArgScope(nil)}
	tasks := map[int]*model.TaskNode{10: task}

	chainScopes(folders, tasks)

	resolved := task.Arguments.Resolved()
	if resolved["shot"] != "010" || resolved["plan"] != "A" || resolved["frame"] != "1" {
		t.Fatalf("expected resolved scope to merge the full ancestry, got %+v", resolved)
	}
}

func TestAppendUniqueDoesNotDuplicate(t *testing.T) {
	xs := appendUnique([]int{1, 2}, 2)
	if len(xs) != 2 {
		t.Fatalf("expected no duplicate, got %v", xs)
	}
	xs = appendUnique(xs, 3)
	if len(xs) != 3 || xs[2] != 3 {
		t.Fatalf("expected 3 appended, got %v", xs)
	}
}
