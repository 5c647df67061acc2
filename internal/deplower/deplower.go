// Package deplower implements hierarchical dependency lowering: a folder
// node's outgoing dependency edge is copied down onto every descendant
// leaf task node, because only leaf tasks (and their commands) actually
// gate on a dependency at assignment time. Both the client-side graph
// builder (before submission, so a local Execute() sees the same
// semantics a server round-trip would produce) and the server-side
// submission decoder (which cannot trust a client did this correctly) run
// the identical algorithm from this package.
package deplower

import "dispatchd/internal/wire"

// Lower mutates doc in place, pushing every folder node's Dependencies
// down onto each of its descendant leaf task nodes. It is idempotent: a
// (targetIndex, statusSet) pair already present on a task is never
// duplicated, so running Lower twice on the same document is a no-op the
// second time. Lower assumes doc has already passed wire.Validate (valid
// indices, acyclic containment).
func Lower(doc *wire.Document) {
	byIndex := make(map[int]*wire.NodeEntry, len(doc.Nodes))
	for i := range doc.Nodes {
		byIndex[doc.Nodes[i].Index] = &doc.Nodes[i]
	}

	var pushDown func(n *wire.NodeEntry, inherited []wire.DependencyEntry)
	pushDown = func(n *wire.NodeEntry, inherited []wire.DependencyEntry) {
		combined := inherited
		if len(n.Dependencies) > 0 {
			combined = append(append([]wire.DependencyEntry{}, inherited...), n.Dependencies...)
		}
		switch n.Type {
		case wire.NodeTypeTask:
			for _, dep := range combined {
				addDependencyIfAbsent(n, dep)
			}
		case wire.NodeTypeFolder:
			for _, childIdx := range n.Children {
				pushDown(byIndex[childIdx], combined)
			}
		}
	}

	root := byIndex[doc.Root]
	pushDown(root, nil)
}

func addDependencyIfAbsent(n *wire.NodeEntry, dep wire.DependencyEntry) {
	for _, existing := range n.Dependencies {
		if existing.TargetIndex == dep.TargetIndex && sameStatusSet(existing.StatusSet, dep.StatusSet) {
			return
		}
	}
	n.Dependencies = append(n.Dependencies, dep)
}

func sameStatusSet(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		seen[v]--
	}
	for _, c := range seen {
		if c != 0 {
			return false
		}
	}
	return true
}
