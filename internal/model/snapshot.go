package model

import "sort"

// Snapshot is a deterministic, comparable view of the tree's node statuses,
// used to verify the restart invariant: dump state D, restart from the
// persistence store, dump again as D', and D' must equal D modulo
// timestamps. Same add/remove/modify diff shape as a graph-delta, but
// keyed by (kind,id) instead of node name.
type Snapshot struct {
	Entries map[NodeRef]Status
}

// Snapshot captures the current status of every folder, task and command.
func (t *Tree) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := make(map[NodeRef]Status, len(t.Folders)+len(t.Tasks)+len(t.Commands))
	for id, f := range t.Folders {
		entries[NodeRef{Kind: KindFolderNode, ID: id}] = f.Status
	}
	for id, tn := range t.Tasks {
		entries[NodeRef{Kind: KindTaskNode, ID: id}] = tn.Status
	}
	for id, c := range t.Commands {
		entries[NodeRef{Kind: KindCommand, ID: id}] = c.Status
	}
	return Snapshot{Entries: entries}
}

// Delta is the deterministic diff between two snapshots: nodes added,
// removed, or whose status changed.
type Delta struct {
	Added    []NodeRef
	Removed  []NodeRef
	Modified []NodeRef
}

// Empty reports whether the delta represents no observable difference.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// CalculateDelta diffs two snapshots, returning refs in deterministic
// (kind, then id) order so the result is stable across runs.
func CalculateDelta(oldSnap, newSnap Snapshot) Delta {
	var d Delta
	for ref := range newSnap.Entries {
		if _, ok := oldSnap.Entries[ref]; !ok {
			d.Added = append(d.Added, ref)
		}
	}
	for ref := range oldSnap.Entries {
		if _, ok := newSnap.Entries[ref]; !ok {
			d.Removed = append(d.Removed, ref)
		}
	}
	for ref, oldStatus := range oldSnap.Entries {
		if newStatus, ok := newSnap.Entries[ref]; ok && newStatus != oldStatus {
			d.Modified = append(d.Modified, ref)
		}
	}
	sortRefs(d.Added)
	sortRefs(d.Removed)
	sortRefs(d.Modified)
	return d
}

func sortRefs(refs []NodeRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].ID < refs[j].ID
	})
}
