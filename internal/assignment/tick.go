package assignment

import (
	"context"
	"sort"
	"time"

	"dispatchd/internal/depengine"
	"dispatchd/internal/model"
	"dispatchd/internal/strategy"
	"dispatchd/internal/workerclient"
)

// Config bounds one assignment tick.
type Config struct {
	// HeartbeatTimeout is how stale a RenderNode's last heartbeat may be
	// before it is treated as unreachable (the RN_HEARTBEAT_TIMEOUT knob).
	HeartbeatTimeout time.Duration
	// KillGrace is how long a cooperative Cancel gets to take effect
	// before the dispatch loop's staleness sweep force-transitions the
	// command to CANCELED regardless.
	KillGrace time.Duration
	// CommandTimeout is the per-command timeout (seconds sent to the
	// worker) after which a RUNNING command with no update is forced to
	// ERROR by the staleness sweep. Zero means no timeout.
	CommandTimeout time.Duration
}

// Loop is the assignment loop (C5). One Tick call is one pass: it never
// blocks waiting on a worker — Dispatcher.Run is expected to return
// quickly, with the command's eventual terminal status arriving later
// through a worker callback processed by internal/depengine.
type Loop struct {
	Config     Config
	Dispatcher workerclient.Dispatcher
	Hooks      *HookEngine
	Licences   *LicenceTracker

	cursors map[int]strategy.Strategy // folder ID -> its strategy instance, stateful for roundrobin
}

// NewLoop builds an assignment loop. hooks and licences may be nil.
func NewLoop(cfg Config, dispatcher workerclient.Dispatcher, hooks *HookEngine, licences *LicenceTracker) *Loop {
	if licences == nil {
		licences = NewLicenceTracker(nil)
	}
	return &Loop{
		Config:     cfg,
		Dispatcher: dispatcher,
		Hooks:      hooks,
		Licences:   licences,
		cursors:    map[int]strategy.Strategy{},
	}
}

// Tick runs one assignment pass over tree and returns how many commands
// were dispatched.
func (l *Loop) Tick(ctx context.Context, tree *model.Tree, now time.Time) int {
	l.Hooks.BeforeTick(ctx)
	defer l.Hooks.AfterTick(ctx)

	grouped := l.groupByFolder(tree, now)

	dispatched := 0
	for folderID, candidates := range grouped {
		ordered := l.strategyFor(tree, folderID).Order(candidates)
		for _, c := range ordered {
			n := l.assignTask(ctx, tree, c.TaskID, now)
			dispatched += n
		}
	}
	return dispatched
}

// groupByFolder buckets every due READY task by its parent folder ID, the
// unit a Strategy orders over (siblings compete for the same quota).
func (l *Loop) groupByFolder(tree *model.Tree, now time.Time) map[int][]strategy.Candidate {
	grouped := map[int][]strategy.Candidate{}
	for _, ref := range depengine.ReadyRefs(tree) {
		task, ok := tree.Tasks[ref.ID]
		if !ok {
			continue
		}
		if task.Timer != nil && time.Unix(*task.Timer, 0).After(now) {
			continue
		}
		grouped[task.ParentID] = append(grouped[task.ParentID], strategy.Candidate{
			TaskID:      task.ID,
			Priority:    task.Priority,
			DispatchKey: task.DispatchKey,
		})
	}
	return grouped
}

func (l *Loop) strategyFor(tree *model.Tree, folderID int) strategy.Strategy {
	if s, ok := l.cursors[folderID]; ok {
		return s
	}
	name := "fifo"
	if f, ok := tree.Folders[folderID]; ok {
		name = f.Strategy
	}
	s := strategy.Lookup(name)
	l.cursors[folderID] = s
	return s
}

// assignTask attempts to dispatch every not-yet-terminal command of task,
// respecting the task's pool quota and licence requirement. It returns the
// number of commands actually dispatched this tick.
func (l *Loop) assignTask(ctx context.Context, tree *model.Tree, taskID int, now time.Time) int {
	task, ok := tree.Tasks[taskID]
	if !ok || task.Status != model.StatusReady {
		return 0
	}

	share := poolShareFor(tree, task.ParentID)
	poolName := "default"
	if share != nil {
		poolName = share.PoolName
	}
	if share != nil && share.MaxRN >= 0 && runningCountForShare(tree, share) >= share.MaxRN {
		return 0 // pool quota for this submission exhausted
	}

	l.Hooks.BeforeAssign(ctx, taskID)
	dispatched := 0
	for _, cmdID := range task.Commands {
		cmd, ok := tree.Commands[cmdID]
		if !ok || cmd.Status.Terminal() || cmd.Status == model.StatusRunning {
			continue
		}
		rn := pickRenderNode(tree, poolName, l.Config.HeartbeatTimeout, now, task)
		if rn == nil {
			break // no capacity left in the pool this tick
		}
		if !l.Licences.Acquire(task.Licence) {
			break
		}

		req := workerclient.DispatchRequest{
			CommandID:   cmd.ID,
			Runner:      cmd.Runner,
			Arguments:   flattenArguments(task, cmd),
			Environment: task.Environment.Resolved(),
			Timeout:     int(l.Config.CommandTimeout.Seconds()),
		}
		status, _, err := l.Dispatcher.Run(ctx, rn.Name, req)
		if err != nil {
			l.Licences.Release(task.Licence)
			continue
		}

		cmd.RenderNode = rn.Name
		cmd.LastUpdate = now
		rn.CurrentCommands = append(rn.CurrentCommands, cmd.ID)
		tree.SetStatus(model.NodeRef{Kind: model.KindCommand, ID: cmd.ID}, status)
		tree.RecomputeRollup(model.NodeRef{Kind: model.KindTaskNode, ID: taskID})
		dispatched++
	}
	l.Hooks.AfterAssign(ctx, taskID)
	return dispatched
}

// eligibleForTask reports whether rn meets task's core/ram bounds and its
// free-form requirements.
func eligibleForTask(rn *model.RenderNode, task *model.TaskNode) bool {
	if task.MinNbCores > 0 && rn.Cores < task.MinNbCores {
		return false
	}
	if task.MaxNbCores > 0 && rn.Cores > task.MaxNbCores {
		return false
	}
	if task.RamUse > 0 && rn.RAM < task.RamUse {
		return false
	}
	return rn.Satisfies(task.Requirements)
}

// flattenArguments folds task's inherited+own arguments together with the
// command's own arguments, the command overriding the task on a key clash —
// the same taskgroup-to-task-to-command precedence the environment scope
// chain already gives Resolved().
func flattenArguments(task *model.TaskNode, cmd *model.Command) map[string]string {
	out := task.Arguments.Resolved()
	for k, v := range cmd.Arguments {
		out[k] = v
	}
	return out
}

// poolShareFor climbs from folderID to the tree root looking for the
// nearest ancestor folder that owns a PoolShare, since a submission's pool
// quota is declared once on its root folder and applies to every task
// beneath it.
func poolShareFor(tree *model.Tree, folderID int) *model.PoolShare {
	for id := folderID; id != model.RootParentID; {
		for _, ps := range tree.PoolShares {
			if ps.FolderNodeID == id && !ps.Archived {
				return ps
			}
		}
		f, ok := tree.Folders[id]
		if !ok {
			break
		}
		id = f.ParentID
	}
	return nil
}

func runningCountForShare(tree *model.Tree, share *model.PoolShare) int {
	count := 0
	for _, c := range tree.Commands {
		if c.Status != model.StatusRunning {
			continue
		}
		task, ok := tree.Tasks[c.TaskID]
		if !ok {
			continue
		}
		if s := poolShareFor(tree, task.ParentID); s != nil && s.ID == share.ID {
			count++
		}
	}
	return count
}

// pickRenderNode returns the least-loaded eligible node in poolName that
// also satisfies task's requirements and core/ram bounds, or nil if none
// has a free slot. Cores is treated as the node's concurrent command
// capacity; a node with Cores == 0 gets exactly one slot.
func pickRenderNode(tree *model.Tree, poolName string, heartbeatTimeout time.Duration, now time.Time, task *model.TaskNode) *model.RenderNode {
	var candidates []*model.RenderNode
	for _, rn := range tree.RenderNodes {
		if !rn.Eligible(poolName, heartbeatTimeout, now) {
			continue
		}
		if !eligibleForTask(rn, task) {
			continue
		}
		capacity := rn.Cores
		if capacity == 0 {
			capacity = 1
		}
		if len(rn.CurrentCommands) >= capacity {
			continue
		}
		candidates = append(candidates, rn)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].CurrentCommands) != len(candidates[j].CurrentCommands) {
			return len(candidates[i].CurrentCommands) < len(candidates[j].CurrentCommands)
		}
		return candidates[i].Name < candidates[j].Name
	})
	return candidates[0]
}
