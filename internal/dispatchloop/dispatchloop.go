// Package dispatchloop is the single-writer goroutine (C5's outer shell)
// that every mutation to the dispatch tree funnels through: submissions,
// control operations, worker callbacks, and the three periodic ticks
// (assignment, persistence flush, staleness sweep). One mutex guards the mutable state
// machine, ticked by an external driver — a long-lived server loop driven
// by time.Ticker instead of a single serial pass to completion.
package dispatchloop

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dispatchd/internal/apperrors"
	"dispatchd/internal/assignment"
	"dispatchd/internal/depengine"
	"dispatchd/internal/logging"
	"dispatchd/internal/metrics"
	"dispatchd/internal/model"
	"dispatchd/internal/persistence"
	"dispatchd/internal/submission"
	"dispatchd/internal/wire"
)

// Config bounds the three periodic ticks.
type Config struct {
	AssignTickInterval  time.Duration
	PersistTickInterval time.Duration
	// SweepInterval is how often the staleness sweep runs: forcing
	// update-stale RUNNING commands to ERROR, reverting a heartbeat-missed
	// render node's RUNNING commands, and force-canceling a command whose
	// cooperative kill-grace window expired.
	SweepInterval time.Duration
	// CommandTimeout is how long a RUNNING command may go without a
	// dispatch or worker-callback refresh before the sweep forces it to
	// ERROR. Zero disables the timeout check.
	CommandTimeout time.Duration
}

// Loop owns the live Tree and serializes every mutation against it behind
// a single mutex, preserving single-goroutine discipline over the tree
// without requiring every caller to actually run on the same goroutine.
type Loop struct {
	mu sync.Mutex

	Tree     *model.Tree
	Assign   *assignment.Loop
	Store    persistence.Store
	Metrics  *metrics.Registry
	Log      logging.Logger
	Config   Config
}

// New builds a dispatch loop over an already-restored (or freshly created)
// tree.
func New(tree *model.Tree, assignLoop *assignment.Loop, store persistence.Store, reg *metrics.Registry, log logging.Logger, cfg Config) *Loop {
	if log == nil {
		log = logging.Nop{}
	}
	return &Loop{Tree: tree, Assign: assignLoop, Store: store, Metrics: reg, Log: log, Config: cfg}
}

// Run drives the assignment, persistence, and staleness-sweep tickers
// until ctx is canceled. The tickers run as independent errgroup members;
// none of them recovers a panic. Tick errors are logged and counted, never
// fatal to the server: every member returns nil once ctx is done, so Run
// returns nil.
func (l *Loop) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(l.Config.AssignTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				l.runAssignTick(ctx, now)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(l.Config.PersistTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				l.runPersistTick(ctx)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(l.Config.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				l.runSweepTick(ctx, now)
			}
		}
	})

	return g.Wait()
}

func (l *Loop) runAssignTick(ctx context.Context, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timer := startTimer(l.Metrics.AssignTickDuration)
	defer timer()

	dispatched := l.Assign.Tick(ctx, l.Tree, now)
	if dispatched > 0 {
		l.Metrics.CommandsDispatched.Add(float64(dispatched))
	}
}

func (l *Loop) runPersistTick(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timer := startTimer(l.Metrics.PersistTickDuration)
	defer timer()

	if err := l.Store.Flush(ctx, l.Tree); err != nil {
		l.Metrics.PersistTickErrors.Inc()
		l.Log.Printf("persist tick: %v", err)
	}
}

// runSweepTick forces update-stale RUNNING commands to ERROR, reverts a
// heartbeat-missed render node's RUNNING commands (subject to the
// command's own retry budget), and force-cancels any command whose
// cooperative kill-grace window has expired.
func (l *Loop) runSweepTick(ctx context.Context, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, rn := range l.Tree.RenderNodes {
		if rn.Status == model.RenderNodeUp && now.Sub(rn.LastHeartbeat) > l.Assign.Config.HeartbeatTimeout {
			rn.Status = model.RenderNodeDown
			l.revertCommandsOnOfflineNode(rn)
		}
	}

	for _, cmd := range l.Tree.Commands {
		if cmd.Status != model.StatusRunning {
			continue
		}
		if cmd.CancelDeadline != nil && !now.Before(*cmd.CancelDeadline) {
			l.applyCommandResult(cmd, cmd.RenderNode, model.StatusCanceled, "cancel grace period expired")
			continue
		}
		if l.Config.CommandTimeout > 0 && now.Sub(cmd.LastUpdate) > l.Config.CommandTimeout {
			l.applyCommandResult(cmd, cmd.RenderNode, model.StatusError, "command timed out: no update received")
		}
	}
}

// revertCommandsOnOfflineNode reverts every RUNNING command assigned to a
// render node that just missed its heartbeat. Reusing applyCommandResult
// with StatusError gives this the same Attempt-vs-MaxAttempt retry budget
// as an ordinary worker-reported failure: READY with Attempt++ if budget
// remains, terminal ERROR once it's exhausted.
func (l *Loop) revertCommandsOnOfflineNode(rn *model.RenderNode) {
	for _, cmdID := range append([]int(nil), rn.CurrentCommands...) {
		cmd, ok := l.Tree.Commands[cmdID]
		if !ok || cmd.Status != model.StatusRunning {
			continue
		}
		l.applyCommandResult(cmd, rn.Name, model.StatusError, "render node missed heartbeat")
	}
}

func startTimer(h interface{ Observe(float64) }) func() {
	start := time.Now()
	return func() { h.Observe(time.Since(start).Seconds()) }
}

// Submit decodes and grafts doc onto the tree under the single-writer lock.
func (l *Loop) Submit(doc *wire.Document, user string) (*submission.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return submission.Decode(doc, l.Tree, user)
}

// controlStatuses is the closed set of statuses a control operation may
// set directly; every other transition is the dependency engine's or the
// assignment loop's to make.
var controlStatuses = map[model.Status]bool{
	model.StatusCanceled: true,
	model.StatusPaused:   true,
	model.StatusReady:    true,
}

// SetStatus applies a user-requested CANCELED/PAUSED/READY transition to
// ref and propagates its consequences, idempotently: re-requesting a
// status the node is already in is a no-op, so a caller can always retry
// a cancellation without worrying about double side effects. A CANCELED
// transition cascades cooperatively into every command beneath ref: a
// RUNNING command is sent a Cancel signal and given a kill-grace deadline
// rather than being force-transitioned immediately.
func (l *Loop) SetStatus(ctx context.Context, ref model.NodeRef, status model.Status) error {
	if !controlStatuses[status] {
		return &apperrors.ValidationError{Kind: "control", Msg: "status must be CANCELED, PAUSED, or READY"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.Tree.StatusOf(ref)
	if !ok {
		return apperrors.ErrNotFound
	}
	if current == status {
		return nil
	}

	l.Tree.SetStatus(ref, status)
	if parent, ok := l.Tree.ParentOf(ref); ok {
		l.Tree.RecomputeRollup(parent)
	}
	if status == model.StatusCanceled {
		l.cancelSubtree(ctx, ref)
		depengine.Propagate(l.Tree, ref)
	}
	return nil
}

// cancelSubtree walks down from ref canceling every non-terminal command
// beneath it.
func (l *Loop) cancelSubtree(ctx context.Context, ref model.NodeRef) {
	switch ref.Kind {
	case model.KindFolderNode:
		f, ok := l.Tree.Folders[ref.ID]
		if !ok {
			return
		}
		for _, child := range f.Children {
			l.cancelSubtree(ctx, child)
		}
	case model.KindTaskNode:
		tn, ok := l.Tree.Tasks[ref.ID]
		if !ok {
			return
		}
		for _, cmdID := range tn.Commands {
			l.cancelCommand(ctx, cmdID)
		}
	}
}

// cancelCommand cooperatively cancels one command. A RUNNING command gets
// a Cancel signal to its worker plus a kill-grace deadline; the sweep
// force-transitions it to CANCELED if the worker never confirms. Anything
// else not already terminal is canceled in place immediately.
func (l *Loop) cancelCommand(ctx context.Context, cmdID int) {
	cmd, ok := l.Tree.Commands[cmdID]
	if !ok || cmd.Status.Terminal() {
		return
	}
	if cmd.Status == model.StatusRunning {
		deadline := time.Now().Add(l.Assign.Config.KillGrace)
		cmd.CancelDeadline = &deadline
		if cmd.RenderNode != "" {
			_ = l.Assign.Dispatcher.Cancel(ctx, cmd.RenderNode, cmdID)
		}
		return
	}
	l.applyCommandResult(cmd, cmd.RenderNode, model.StatusCanceled, "canceled")
}

// SetDispatchKey implements PATCH /nodes/{id}'s dispatchKey field.
func (l *Loop) SetDispatchKey(ref model.NodeRef, key float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch ref.Kind {
	case model.KindFolderNode:
		f, ok := l.Tree.Folders[ref.ID]
		if !ok {
			return apperrors.ErrNotFound
		}
		f.DispatchKey = key
	case model.KindTaskNode:
		tn, ok := l.Tree.Tasks[ref.ID]
		if !ok {
			return apperrors.ErrNotFound
		}
		tn.DispatchKey = key
	default:
		return apperrors.ErrNotFound
	}
	l.Tree.SetStatus(ref, mustStatus(l.Tree, ref)) // re-stage a persistence modify
	return nil
}

// SetMaxRN implements PATCH /nodes/{id}'s maxRN field. For a folder node
// this is interpreted as the pool-share quota for the submission rooted
// there.
func (l *Loop) SetMaxRN(ref model.NodeRef, maxRN int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch ref.Kind {
	case model.KindFolderNode:
		f, ok := l.Tree.Folders[ref.ID]
		if !ok {
			return apperrors.ErrNotFound
		}
		f.MaxRN = maxRN
		for _, ps := range l.Tree.PoolShares {
			if ps.FolderNodeID == ref.ID && !ps.Archived {
				ps.MaxRN = maxRN
			}
		}
	case model.KindTaskNode:
		tn, ok := l.Tree.Tasks[ref.ID]
		if !ok {
			return apperrors.ErrNotFound
		}
		tn.MaxRN = maxRN
	default:
		return apperrors.ErrNotFound
	}
	l.Tree.SetStatus(ref, mustStatus(l.Tree, ref))
	return nil
}

func mustStatus(tree *model.Tree, ref model.NodeRef) model.Status {
	s, _ := tree.StatusOf(ref)
	return s
}

// SetLicenceQuota implements POST /pools/{name}/licences/{token}.
func (l *Loop) SetLicenceQuota(name string, tokens int) error {
	if tokens < 0 {
		return &apperrors.ValidationError{Kind: "licence", Msg: "capacity must be non-negative"}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Assign.Licences.SetCapacity(name, tokens)
	return nil
}

// WorkerCallback applies a worker's reported terminal command status (and,
// for a still-RUNNING report, the heartbeat refresh that comes with it)
// under the single-writer lock, releasing the command's licence token in
// the same critical section that records the result so a crashed worker
// can never leave a token permanently stuck.
func (l *Loop) WorkerCallback(renderNode string, commandID int, status model.Status, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cmd, ok := l.Tree.Commands[commandID]
	if !ok {
		return apperrors.ErrNotFound
	}

	if rn, ok := l.Tree.RenderNodes[renderNode]; ok {
		rn.LastHeartbeat = time.Now()
	}

	l.applyCommandResult(cmd, renderNode, status, message)
	return nil
}

// applyCommandResult records a command's outcome — whether reported by a
// worker callback or forced by the staleness sweep — refreshing its
// LastUpdate, releasing its licence token and clearing it from
// renderNode's current-commands list once it reaches a terminal status.
func (l *Loop) applyCommandResult(cmd *model.Command, renderNode string, status model.Status, message string) {
	cmd.LastUpdate = time.Now()

	task := l.Tree.Tasks[cmd.TaskID]
	licence := ""
	if task != nil {
		licence = task.Licence
	}

	depengine.RecordCommandResult(l.Tree, cmd.ID, status, message)
	if status.Terminal() {
		if rn, ok := l.Tree.RenderNodes[renderNode]; ok {
			rn.CurrentCommands = removeInt(rn.CurrentCommands, cmd.ID)
		}
		l.Assign.Licences.Release(licence)
		l.Metrics.CommandsCompleted.WithLabelValues(status.String()).Inc()
		cmd.CancelDeadline = nil
	}
}

// Heartbeat refreshes a render node's liveness without reporting a command
// result, used by workers that poll in between command completions.
func (l *Loop) Heartbeat(renderNode string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rn, ok := l.Tree.RenderNodes[renderNode]
	if !ok {
		return apperrors.ErrNotFound
	}
	rn.LastHeartbeat = time.Now()
	return nil
}

func removeInt(xs []int, v int) []int {
	out := xs[:0]
	for _, x := range xs {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
