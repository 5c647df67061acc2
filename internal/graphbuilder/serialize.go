package graphbuilder

import (
	"dispatchd/internal/depcycle"
	"dispatchd/internal/deplower"
	"dispatchd/internal/wire"
)

// PrepareGraphRepresentation expands/decomposes the whole graph, assigns
// stable indices, pushes hierarchical dependencies down onto leaf tasks,
// and builds the wire document ready for Submit or local Execute.
// Ground truth: puliclient.Graph.prepareGraphRepresentation.
func (g *Graph) PrepareGraphRepresentation() (*wire.Document, error) {
	if err := expandNode(g.Root); err != nil {
		return nil, err
	}

	var order []Node
	seen := map[Node]bool{}
	var walk func(n Node) error
	walk = func(n Node) error {
		if seen[n] {
			return ErrDuplicateNode
		}
		seen[n] = true
		order = append(order, n)
		if tg, ok := n.(*TaskGroup); ok {
			for _, c := range tg.children {
				if err := walk(c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(g.Root); err != nil {
		return nil, err
	}

	index := make(map[Node]int, len(order))
	for i, n := range order {
		index[n] = i
	}

	entries := make([]wire.NodeEntry, len(order))
	for i, n := range order {
		switch v := n.(type) {
		case *TaskGroup:
			entries[i] = buildFolderEntry(v, i, index)
		case *Task:
			entries[i] = buildTaskEntry(v, i, index)
		}
	}

	doc := &wire.Document{
		SchemaVersion: wire.SupportedSchemaVersion,
		Name:          g.Name,
		User:          g.User,
		PoolName:      g.PoolName,
		MaxRN:         g.MaxRN,
		Root:          index[g.Root],
		Nodes:         entries,
	}

	if err := wire.Validate(doc); err != nil {
		return nil, err
	}

	deplower.Lower(doc)

	if err := checkDependencyCycles(doc); err != nil {
		return nil, err
	}

	return doc, nil
}

func expandNode(n Node) error {
	tg, ok := n.(*TaskGroup)
	if !ok {
		return nil
	}
	if !tg.expanded {
		fn, ok := lookupExpander(tg.expander)
		if !ok {
			return ErrUnknownExpander
		}
		if err := fn(tg); err != nil {
			return err
		}
		tg.expanded = true
	}
	for _, c := range tg.children {
		switch v := c.(type) {
		case *Task:
			if !v.decomposed {
				fn, ok := lookupDecomposer(v.decomposer)
				if !ok {
					return ErrUnknownDecomposer
				}
				cmds, err := fn(v)
				if err != nil {
					return err
				}
				v.commands = cmds
				v.decomposed = true
			}
		case *TaskGroup:
			if err := expandNode(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildFolderEntry(tg *TaskGroup, idx int, index map[Node]int) wire.NodeEntry {
	children := make([]int, len(tg.children))
	for i, c := range tg.children {
		children[i] = index[c]
	}
	return wire.NodeEntry{
		Index:        idx,
		Type:         wire.NodeTypeFolder,
		Name:         tg.name,
		Strategy:     tg.strategy,
		Children:     children,
		Arguments:    tg.arguments,
		Environment:  tg.environment,
		Tags:         mirrorLegacyTags(tg.tags),
		Timer:        tg.timer,
		Priority:     tg.priority,
		DispatchKey:  tg.dispatchKey,
		MaxRN:        tg.maxRN,
		Dependencies: buildDependencyEntries(tg.dependencies, index),
	}
}

func buildTaskEntry(t *Task, idx int, index map[Node]int) wire.NodeEntry {
	cmds := make([]wire.CommandEntry, len(t.commands))
	for i, c := range t.commands {
		cmds[i] = wire.CommandEntry{Name: c.Name, Runner: c.Runner, Arguments: c.Arguments}
	}
	return wire.NodeEntry{
		Index:        idx,
		Type:         wire.NodeTypeTask,
		Name:         t.name,
		Commands:     cmds,
		Runner:       t.runner,
		Decomposer:   t.decomposer,
		MaxAttempt:   t.maxAttempt,
		MinNbCores:   t.minNbCores,
		MaxNbCores:   t.maxNbCores,
		RamUse:       t.ramUse,
		Requirements: t.requirements,
		Licence:      t.licence,
		Arguments:    t.arguments,
		Environment:  t.environment,
		Tags:         mirrorLegacyTags(t.tags),
		Timer:        t.timer,
		Priority:     t.priority,
		DispatchKey:  t.dispatchKey,
		MaxRN:        t.maxRN,
		Dependencies: buildDependencyEntries(t.dependencies, index),
	}
}

func buildDependencyEntries(deps []dependencyDecl, index map[Node]int) []wire.DependencyEntry {
	if len(deps) == 0 {
		return nil
	}
	out := make([]wire.DependencyEntry, len(deps))
	for i, d := range deps {
		statusSet := make([]int, len(d.statusSet))
		for j, s := range d.statusSet {
			statusSet[j] = int(s)
		}
		out[i] = wire.DependencyEntry{TargetIndex: index[d.target], StatusSet: statusSet}
	}
	return out
}

func checkDependencyCycles(doc *wire.Document) error {
	byIndex := make(map[int]*wire.NodeEntry, len(doc.Nodes))
	for i := range doc.Nodes {
		byIndex[doc.Nodes[i].Index] = &doc.Nodes[i]
	}
	edges := func(i int) []int {
		n := byIndex[i]
		out := make([]int, len(n.Dependencies))
		for j, d := range n.Dependencies {
			out[j] = d.TargetIndex
		}
		return out
	}
	name := func(i int) string { return byIndex[i].Name }
	return depcycle.Detect(len(doc.Nodes), edges, name)
}
