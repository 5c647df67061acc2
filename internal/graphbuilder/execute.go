package graphbuilder

import (
	"context"

	"dispatchd/internal/model"
	"dispatchd/internal/wire"
	"dispatchd/internal/workerclient"
)

// Execute runs the graph entirely in-process against dispatcher, without a
// server round-trip, mutex-free since it runs on one goroutine: ready
// tasks are dispatched command-by-command, then BLOCKED tasks are
// re-evaluated against their dependency targets' freshly rolled-up
// status, repeating until a full pass makes no further progress. The
// incremental cache-reuse overlay RunSerial also supported has no
// referent in this domain — a render command is never skipped because an
// artifact cache says it's already been produced — so it is not carried
// over; see DESIGN.md.
func (g *Graph) Execute(ctx context.Context, dispatcher workerclient.Dispatcher) (model.Status, error) {
	doc, err := g.PrepareGraphRepresentation()
	if err != nil {
		return model.StatusError, err
	}

	byIndex := make(map[int]*wire.NodeEntry, len(doc.Nodes))
	for i := range doc.Nodes {
		byIndex[doc.Nodes[i].Index] = &doc.Nodes[i]
	}

	status := make(map[int]model.Status, len(doc.Nodes))
	cmdStatus := make(map[int][]model.Status)
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if n.Type == wire.NodeTypeTask {
			cmdStatus[n.Index] = make([]model.Status, len(n.Commands))
			if len(n.Dependencies) == 0 {
				status[n.Index] = model.StatusReady
			} else {
				status[n.Index] = model.StatusBlocked
			}
		} else {
			status[n.Index] = model.StatusBlocked
		}
	}

	for {
		rollupFolders(doc, byIndex, status)

		progressed := false

		for i := range doc.Nodes {
			n := &doc.Nodes[i]
			if n.Type != wire.NodeTypeTask || status[n.Index] != model.StatusReady {
				continue
			}
			for c, cmd := range n.Commands {
				if cmdStatus[n.Index][c].Terminal() {
					continue
				}
				req := workerclient.DispatchRequest{
					Runner:      cmd.Runner,
					Arguments:   cmd.Arguments,
					Environment: n.Environment,
				}
				s, _, err := dispatcher.Run(ctx, "local", req)
				if err != nil {
					return model.StatusError, err
				}
				if s == model.StatusRunning {
					// fire-and-forget dispatchers (e.g. HTTPDispatcher) report
					// RUNNING immediately; a local Execute has nowhere to wait
					// for an async callback, so treat acceptance as DONE.
					s = model.StatusDone
				}
				cmdStatus[n.Index][c] = s
				progressed = true
			}
			status[n.Index] = model.Rollup(cmdStatus[n.Index])
		}

		rollupFolders(doc, byIndex, status)

		for i := range doc.Nodes {
			n := &doc.Nodes[i]
			if n.Type != wire.NodeTypeTask || status[n.Index] != model.StatusBlocked {
				continue
			}
			blocked := false
			canceled := false
			for _, dep := range n.Dependencies {
				target := status[dep.TargetIndex]
				if satisfies(dep.StatusSet, target) {
					continue
				}
				if target == model.StatusError || target == model.StatusCanceled {
					canceled = true
					break
				}
				blocked = true
			}
			switch {
			case canceled:
				status[n.Index] = model.StatusCanceled
				progressed = true
			case !blocked:
				status[n.Index] = model.StatusReady
				progressed = true
			}
		}

		if !progressed {
			break
		}
	}

	rollupFolders(doc, byIndex, status)
	return status[doc.Root], nil
}

func satisfies(statusSet []int, s model.Status) bool {
	for _, v := range statusSet {
		if model.Status(v) == s {
			return true
		}
	}
	return false
}

func rollupFolders(doc *wire.Document, byIndex map[int]*wire.NodeEntry, status map[int]model.Status) model.Status {
	var visit func(idx int) model.Status
	visit = func(idx int) model.Status {
		n := byIndex[idx]
		if n.Type != wire.NodeTypeFolder {
			return status[idx]
		}
		children := make([]model.Status, len(n.Children))
		for i, c := range n.Children {
			children[i] = visit(c)
		}
		s := model.Rollup(children)
		status[idx] = s
		return s
	}
	return visit(doc.Root)
}
