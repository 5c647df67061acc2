package wire

import (
	"sort"
	"strconv"
)

// knownStrategies is the closed set of ordering-strategy names the
// assignment loop understands. Anything else is a semantic error at
// submission time, not a silent fallback to FIFO.
var knownStrategies = map[string]bool{
	"":            true, // unset means FIFO by default
	"fifo":        true,
	"roundrobin":  true,
}

// Validate runs the structural and semantic phases against an already
// schema-checked document.
func Validate(doc *Document) error {
	byIndex, err := checkIndices(doc)
	if err != nil {
		return err
	}
	if err := checkRoot(doc, byIndex); err != nil {
		return err
	}
	if err := checkChildren(doc, byIndex); err != nil {
		return err
	}
	if err := checkDependencies(doc, byIndex); err != nil {
		return err
	}
	if err := checkTypes(doc); err != nil {
		return err
	}
	return nil
}

func checkIndices(doc *Document) (map[int]*NodeEntry, error) {
	byIndex := make(map[int]*NodeEntry, len(doc.Nodes))
	seen := make([]int, 0, len(doc.Nodes))
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if _, dup := byIndex[n.Index]; dup {
			return nil, &StructuralError{Kind: "duplicate_index", Msg: strconv.Itoa(n.Index)}
		}
		byIndex[n.Index] = n
		seen = append(seen, n.Index)
	}
	sort.Ints(seen)
	return byIndex, nil
}

func checkRoot(doc *Document, byIndex map[int]*NodeEntry) error {
	root, ok := byIndex[doc.Root]
	if !ok {
		return &StructuralError{Kind: "dangling_root", Msg: strconv.Itoa(doc.Root)}
	}
	if root.Type != NodeTypeFolder {
		return &SemanticError{Kind: "root_not_folder", Msg: root.Name}
	}
	return nil
}

func checkChildren(doc *Document, byIndex map[int]*NodeEntry) error {
	parentOf := map[int]int{}
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if n.Type != NodeTypeFolder {
			continue
		}
		for _, childIdx := range n.Children {
			if _, ok := byIndex[childIdx]; !ok {
				return &StructuralError{Kind: "dangling_child", Msg: strconv.Itoa(childIdx)}
			}
			if childIdx == n.Index {
				return &StructuralError{Kind: "self_referential_child", Msg: strconv.Itoa(childIdx)}
			}
			if existing, dup := parentOf[childIdx]; dup {
				return &StructuralError{Kind: "multiple_parents", Msg: strconv.Itoa(childIdx) + " claimed by " + strconv.Itoa(existing) + " and " + strconv.Itoa(n.Index)}
			}
			parentOf[childIdx] = n.Index
		}
	}

	// The containment graph rooted at doc.Root must be acyclic and reach
	// every node exactly once: a white/gray/black walk starting at root.
	const white, gray, black = 0, 1, 2
	colors := make(map[int]int, len(doc.Nodes))
	var visit func(idx int) error
	visit = func(idx int) error {
		colors[idx] = gray
		n := byIndex[idx]
		if n.Type == NodeTypeFolder {
			for _, c := range n.Children {
				switch colors[c] {
				case gray:
					return &StructuralError{Kind: "cyclic_containment", Msg: strconv.Itoa(c)}
				case white:
					if err := visit(c); err != nil {
						return err
					}
				}
			}
		}
		colors[idx] = black
		return nil
	}
	if err := visit(doc.Root); err != nil {
		return err
	}
	if len(colors) != len(doc.Nodes) {
		return &StructuralError{Kind: "unreachable_node", Msg: "graph has nodes not reachable from root"}
	}
	return nil
}

func checkDependencies(doc *Document, byIndex map[int]*NodeEntry) error {
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		for _, d := range n.Dependencies {
			if d.TargetIndex == n.Index {
				return &StructuralError{Kind: "self_dependency", Msg: strconv.Itoa(n.Index)}
			}
			if _, ok := byIndex[d.TargetIndex]; !ok {
				return &StructuralError{Kind: "dangling_dependency", Msg: strconv.Itoa(d.TargetIndex)}
			}
			for _, s := range d.StatusSet {
				if s < 0 || s > 6 {
					return &SemanticError{Kind: "invalid_status", Msg: strconv.Itoa(s)}
				}
			}
		}
	}
	return nil
}

func checkTypes(doc *Document) error {
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if n.Name == "" {
			return &SchemaError{Kind: "missing_field", Msg: "node " + strconv.Itoa(n.Index) + " has no name"}
		}
		switch n.Type {
		case NodeTypeFolder:
			if len(n.Commands) != 0 {
				return &SemanticError{Kind: "folder_has_commands", Msg: strconv.Itoa(n.Index)}
			}
			if !knownStrategies[n.Strategy] {
				return &SemanticError{Kind: "unknown_strategy", Msg: n.Strategy}
			}
		case NodeTypeTask:
			if len(n.Children) != 0 {
				return &SemanticError{Kind: "task_has_children", Msg: strconv.Itoa(n.Index)}
			}
			if len(n.Commands) == 0 {
				return &SemanticError{Kind: "task_without_commands", Msg: strconv.Itoa(n.Index)}
			}
		default:
			return &SchemaError{Kind: "unknown_node_type", Msg: string(n.Type)}
		}
	}
	return nil
}

