// Package depengine implements the dependency engine (C4): promoting BLOCKED
// nodes to READY once every Dependency is satisfied, and propagating a
// terminal ERROR or CANCELED down to everything that depends on it. The
// root-cause walk tracks the same kind of fact an invalidation engine
// would for cache invalidation — "why is this node in its current
// state" — applied here to dispatch instead.
package depengine

import (
	"fmt"
	"sort"

	"dispatchd/internal/model"
)

// RecordCommandResult applies a command's outcome to the tree: a failed
// command that still has attempts left is retried in place (attempt++,
// back to READY) rather than treated as a terminal failure; MaxAttempt
// bounds the total number of runs, so an ERROR on run MaxAttempt is
// terminal. Otherwise the
// command's status stands, the owning task and its ancestor folders are
// rolled up, and the dependency engine re-evaluates everything that
// declared a dependency on the affected nodes.
func RecordCommandResult(tree *model.Tree, commandID int, status model.Status, message string) {
	cmd, ok := tree.Commands[commandID]
	if !ok {
		return
	}

	if status == model.StatusError && cmd.Attempt+1 < cmd.MaxAttempt {
		cmd.Attempt++
		cmd.Message = message
		tree.SetStatus(model.NodeRef{Kind: model.KindCommand, ID: commandID}, model.StatusReady)
		return
	}

	cmd.Message = message
	tree.SetStatus(model.NodeRef{Kind: model.KindCommand, ID: commandID}, status)

	taskRef := model.NodeRef{Kind: model.KindTaskNode, ID: cmd.TaskID}
	tree.RecomputeRollup(taskRef)

	Propagate(tree, taskRef)
}

// Propagate re-evaluates every node that declared a Dependency on changed,
// transitively. A dependent whose dependencies are now all satisfied moves
// BLOCKED -> READY, and a task dependent's BLOCKED commands move to READY
// with it; a dependent with a blocking (ERROR/CANCELED, unaccepted) target
// moves to CANCELED, tagged with the root cause (its commands keep their
// status), and is itself propagated further so the cancellation cascades
// down the rest of the graph. The dependent's parent folders are rolled up
// after each change.
func Propagate(tree *model.Tree, changed model.NodeRef) {
	queue := []model.NodeRef{changed}
	seen := map[model.NodeRef]bool{}

	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]

		for _, dep := range tree.Dependents(ref) {
			if seen[dep] {
				continue
			}
			status, ok := tree.StatusOf(dep)
			if !ok || status != model.StatusBlocked {
				continue
			}

			next, rootCause := resolve(tree, dep)
			if next == model.StatusBlocked {
				continue
			}

			seen[dep] = true
			if next == model.StatusCanceled {
				setMessage(tree, dep, fmt.Sprintf("canceled: upstream dependency failed (%s)", rootCause))
			}
			tree.SetStatus(dep, next)
			if t, ok := tree.Tasks[dep.ID]; ok && dep.Kind == model.KindTaskNode && next == model.StatusReady {
				for _, cid := range t.Commands {
					if c, ok := tree.Commands[cid]; ok && c.Status == model.StatusBlocked {
						tree.SetStatus(model.NodeRef{Kind: model.KindCommand, ID: cid}, model.StatusReady)
					}
				}
			}
			if parent, ok := tree.ParentOf(dep); ok {
				tree.RecomputeRollup(parent)
			}
			queue = append(queue, dep)
		}
	}
}

// resolve decides what a BLOCKED node's new status should be given its
// dependencies' current targets, and the display name of the first
// blocking root cause it finds, if any.
func resolve(tree *model.Tree, ref model.NodeRef) (model.Status, string) {
	deps := dependenciesOf(tree, ref)
	if len(deps) == 0 {
		return model.StatusReady, ""
	}

	allSatisfied := true
	for _, d := range deps {
		targetStatus, ok := tree.StatusOf(d.Target)
		if !ok {
			allSatisfied = false
			continue
		}
		if d.Blocking(targetStatus) {
			return model.StatusCanceled, describe(tree, d.Target)
		}
		if !d.Satisfied(targetStatus) {
			allSatisfied = false
		}
	}

	if allSatisfied {
		return model.StatusReady, ""
	}
	return model.StatusBlocked, ""
}

func dependenciesOf(tree *model.Tree, ref model.NodeRef) []model.Dependency {
	switch ref.Kind {
	case model.KindFolderNode:
		if f, ok := tree.Folders[ref.ID]; ok {
			return f.Dependencies
		}
	case model.KindTaskNode:
		if t, ok := tree.Tasks[ref.ID]; ok {
			return t.Dependencies
		}
	}
	return nil
}

func describe(tree *model.Tree, ref model.NodeRef) string {
	switch ref.Kind {
	case model.KindFolderNode:
		if f, ok := tree.Folders[ref.ID]; ok {
			return f.Name
		}
	case model.KindTaskNode:
		if t, ok := tree.Tasks[ref.ID]; ok {
			return t.Name
		}
	}
	return "unknown"
}

func setMessage(tree *model.Tree, ref model.NodeRef, msg string) {
	switch ref.Kind {
	case model.KindFolderNode:
		if f, ok := tree.Folders[ref.ID]; ok {
			f.Tags = withTag(f.Tags, "cancelReason", msg)
		}
	case model.KindTaskNode:
		if t, ok := tree.Tasks[ref.ID]; ok {
			t.Tags = withTag(t.Tags, "cancelReason", msg)
		}
	}
}

func withTag(tags map[string]string, key, value string) map[string]string {
	if tags == nil {
		tags = map[string]string{}
	}
	tags[key] = value
	return tags
}

// ReadyRefs returns every currently READY task, sorted by ID only. Ordering
// by priority or dispatch key is not done here — that is
// internal/strategy's job. This just lists candidates for it to sort.
func ReadyRefs(tree *model.Tree) []model.NodeRef {
	var out []model.NodeRef
	for id, t := range tree.Tasks {
		if t.Status == model.StatusReady {
			out = append(out, model.NodeRef{Kind: model.KindTaskNode, ID: id})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
