// Package postgres implements internal/persistence.Store against
// PostgreSQL via jackc/pgx/v5, grounded on the pack's pgxpool-backed
// stores (cklxx-elephant.ai's internal/infra/kernel.PostgresStore): a
// pooled connection, an idempotent EnsureSchema, and every write batched
// inside one transaction per call.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dispatchd/internal/apperrors"
	"dispatchd/internal/model"
)

// Store is the Postgres-backed implementation of persistence.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pool. Callers own the pool's lifecycle
// outside of Close, which only releases it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool against databaseURL and ensures the schema exists.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	s := New(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates every logical table if it does not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: ensure schema: %v", apperrors.ErrPersistence, err)
		}
	}
	return nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Flush drains tree's three operation queues in one transaction, grouping
// writes by entity class in create order, restricted to the classes the
// queue carries by integer ID (FolderNode, TaskNode,
// Command, PoolShare — Pools are owned by config/file backend, not
// submitted through the dispatch tree). RenderNodes are keyed by name, not
// an allocator ID, so they never flow through the int-keyed queue; a worker
// registering or sending a heartbeat upserts its row directly, and every
// flush re-syncs the full in-memory set so a tick never drifts from what a
// heartbeat handler wrote outside of it. Archives run in the reverse order.
// On any error the transaction rolls back and the drained entries are
// re-enqueued on the tree's queues, so they are retried on the next tick.
func (s *Store) Flush(ctx context.Context, tree *model.Tree) (err error) {
	creates := tree.ToCreate.Drain()
	modifies := tree.ToModify.Drain()
	archives := tree.ToArchive.Drain()

	if len(creates) == 0 && len(modifies) == 0 && len(archives) == 0 {
		return nil
	}
	defer func() {
		if err == nil {
			return
		}
		for _, e := range creates {
			tree.ToCreate.Enqueue(e.Kind, e.ID, e.Op)
		}
		for _, e := range modifies {
			tree.ToModify.Enqueue(e.Kind, e.ID, e.Op)
		}
		for _, e := range archives {
			tree.ToArchive.Enqueue(e.Kind, e.ID, e.Op)
		}
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", apperrors.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	createOrder := []model.EntityKind{model.KindFolderNode, model.KindTaskNode, model.KindCommand, model.KindPoolShare}
	archiveOrder := []model.EntityKind{model.KindPoolShare, model.KindCommand, model.KindTaskNode, model.KindFolderNode}

	if err := syncRenderNodes(ctx, tx, tree); err != nil {
		return err
	}
	for _, kind := range createOrder {
		if err := writeKind(ctx, tx, tree, kind, creates); err != nil {
			return err
		}
	}
	for _, kind := range createOrder {
		if err := writeKind(ctx, tx, tree, kind, modifies); err != nil {
			return err
		}
	}
	for _, kind := range archiveOrder {
		if err := archiveKind(ctx, tx, kind, archives); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", apperrors.ErrPersistence, err)
	}
	return nil
}

func writeKind(ctx context.Context, tx pgx.Tx, tree *model.Tree, kind model.EntityKind, entries []model.QueueEntry) error {
	for _, e := range entries {
		if e.Kind != kind {
			continue
		}
		var err error
		switch kind {
		case model.KindFolderNode:
			err = upsertFolderNode(ctx, tx, tree, e.ID)
		case model.KindTaskNode:
			err = upsertTaskNode(ctx, tx, tree, e.ID)
		case model.KindCommand:
			err = upsertCommand(ctx, tx, tree, e.ID)
		case model.KindPoolShare:
			err = upsertPoolShare(ctx, tx, tree, e.ID)
		}
		if err != nil {
			return fmt.Errorf("%w: write %s %d: %v", apperrors.ErrPersistence, kind, e.ID, err)
		}
	}
	return nil
}

func archiveKind(ctx context.Context, tx pgx.Tx, kind model.EntityKind, entries []model.QueueEntry) error {
	table, idCol := tableFor(kind)
	if table == "" {
		return nil
	}
	for _, e := range entries {
		if e.Kind != kind {
			continue
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("UPDATE %s SET archived = true WHERE %s = $1", table, idCol), e.ID)
		if err != nil {
			return fmt.Errorf("%w: archive %s %d: %v", apperrors.ErrPersistence, kind, e.ID, err)
		}
	}
	return nil
}

func tableFor(kind model.EntityKind) (table, idCol string) {
	switch kind {
	case model.KindFolderNode:
		return "folder_nodes", "id"
	case model.KindTaskNode:
		return "task_nodes", "id"
	case model.KindCommand:
		return "commands", "id"
	case model.KindPoolShare:
		return "pool_shares", "id"
	case model.KindRenderNode:
		return "render_nodes", "name"
	}
	return "", ""
}

// Restore implements the nine-step restart sequence: pools and render
// nodes, then folders, tasks, commands, pool shares, and finally the
// dependency/scope graphs that reference them.
func (s *Store) Restore(ctx context.Context) (*model.Tree, error) {
	pools, renderNodes, err := s.loadPoolsAndRenderNodes(ctx)
	if err != nil {
		return nil, err
	}

	folders, maxFolder, err := s.loadFolderNodes(ctx)
	if err != nil {
		return nil, err
	}
	tasks, maxTask, err := s.loadTaskNodes(ctx)
	if err != nil {
		return nil, err
	}

	poolShares, maxPoolShare, err := s.loadPoolShares(ctx)
	if err != nil {
		return nil, err
	}

	commands, maxCommand, err := s.loadCommands(ctx, renderNodes)
	if err != nil {
		return nil, err
	}
	for _, c := range commands {
		if t, ok := tasks[c.TaskID]; ok {
			t.Commands = append(t.Commands, c.ID)
		}
	}

	chainScopes(folders, tasks)

	rootID := 0
	for id, f := range folders {
		if f.ParentID == model.RootParentID {
			rootID = id
			break
		}
	}

	tree := model.RestoreTree(rootID, folders, tasks, commands, renderNodes, pools, poolShares)
	tree.RestoreAllocators(maxFolder, maxTask, maxCommand, maxPoolShare)
	return tree, nil
}

func (s *Store) loadPoolsAndRenderNodes(ctx context.Context) (map[string]*model.Pool, map[string]*model.RenderNode, error) {
	pools := map[string]*model.Pool{}
	rows, err := s.pool.Query(ctx, `SELECT name, render_nodes FROM pools`)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: load pools: %v", apperrors.ErrPersistence, err)
	}
	for rows.Next() {
		var name string
		var rnJSON []byte
		if err := rows.Scan(&name, &rnJSON); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("%w: scan pool: %v", apperrors.ErrPersistence, err)
		}
		names, err := decodeStrings(rnJSON)
		if err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("%w: decode pool render nodes: %v", apperrors.ErrPersistence, err)
		}
		pools[name] = &model.Pool{Name: name, RenderNodes: names}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: load pools: %v", apperrors.ErrPersistence, err)
	}

	renderNodes := map[string]*model.RenderNode{}
	rnRows, err := s.pool.Query(ctx, `SELECT name, host, port, pools, status, cores, ram, last_heartbeat, current_commands FROM render_nodes`)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: load render nodes: %v", apperrors.ErrPersistence, err)
	}
	defer rnRows.Close()
	for rnRows.Next() {
		var rn model.RenderNode
		var poolsJSON, cmdsJSON []byte
		var lastHeartbeat time.Time
		if err := rnRows.Scan(&rn.Name, &rn.Host, &rn.Port, &poolsJSON, &rn.Status, &rn.Cores, &rn.RAM, &lastHeartbeat, &cmdsJSON); err != nil {
			return nil, nil, fmt.Errorf("%w: scan render node: %v", apperrors.ErrPersistence, err)
		}
		rn.LastHeartbeat = lastHeartbeat
		if rn.Pools, err = decodeStrings(poolsJSON); err != nil {
			return nil, nil, fmt.Errorf("%w: decode render node pools: %v", apperrors.ErrPersistence, err)
		}
		if rn.CurrentCommands, err = decodeInts(cmdsJSON); err != nil {
			return nil, nil, fmt.Errorf("%w: decode render node commands: %v", apperrors.ErrPersistence, err)
		}
		renderNodes[rn.Name] = &rn
	}
	return pools, renderNodes, rnRows.Err()
}

func (s *Store) loadFolderNodes(ctx context.Context) (map[int]*model.FolderNode, int, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, parent_id, name, strategy, children, status, arguments, environment, tags, timer, priority, dispatch_key, max_rn, dependencies FROM folder_nodes WHERE NOT archived`)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: load folder nodes: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	out := map[int]*model.FolderNode{}
	maxID := -1
	for rows.Next() {
		f := &model.FolderNode{}
		var childrenJSON, argsJSON, envJSON, tagsJSON, depsJSON []byte
		if err := rows.Scan(&f.ID, &f.ParentID, &f.Name, &f.Strategy, &childrenJSON, &f.Status, &argsJSON, &envJSON, &tagsJSON, &f.Timer, &f.Priority, &f.DispatchKey, &f.MaxRN, &depsJSON); err != nil {
			return nil, 0, fmt.Errorf("%w: scan folder node: %v", apperrors.ErrPersistence, err)
		}
		children, err := decodeNodeRefs(childrenJSON)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: decode folder children: %v", apperrors.ErrPersistence, err)
		}
		f.Children = children
		ownArgs, err := decodeStringMap(argsJSON)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: decode folder arguments: %v", apperrors.ErrPersistence, err)
		}
		f.Arguments = model.NewArgScope(ownArgs)
		ownEnv, err := decodeStringMap(envJSON)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: decode folder environment: %v", apperrors.ErrPersistence, err)
		}
		f.Environment = model.NewArgScope(ownEnv)
		if f.Tags, err = decodeStringMap(tagsJSON); err != nil {
			return nil, 0, fmt.Errorf("%w: decode folder tags: %v", apperrors.ErrPersistence, err)
		}
		if f.Dependencies, err = decodeDependencies(depsJSON); err != nil {
			return nil, 0, fmt.Errorf("%w: decode folder dependencies: %v", apperrors.ErrPersistence, err)
		}
		out[f.ID] = f
		if f.ID > maxID {
			maxID = f.ID
		}
	}
	return out, maxID, rows.Err()
}

func (s *Store) loadTaskNodes(ctx context.Context) (map[int]*model.TaskNode, int, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, parent_id, name, status, arguments, environment, tags, timer, priority, dispatch_key, max_rn, runner, max_attempt, min_nb_cores, max_nb_cores, ram_use, requirements, licence, dependencies FROM task_nodes WHERE NOT archived`)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: load task nodes: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	out := map[int]*model.TaskNode{}
	maxID := -1
	for rows.Next() {
		t := &model.TaskNode{}
		var argsJSON, envJSON, tagsJSON, reqJSON, depsJSON []byte
		if err := rows.Scan(&t.ID, &t.ParentID, &t.Name, &t.Status, &argsJSON, &envJSON, &tagsJSON, &t.Timer, &t.Priority, &t.DispatchKey, &t.MaxRN, &t.Runner, &t.MaxAttempt, &t.MinNbCores, &t.MaxNbCores, &t.RamUse, &reqJSON, &t.Licence, &depsJSON); err != nil {
			return nil, 0, fmt.Errorf("%w: scan task node: %v", apperrors.ErrPersistence, err)
		}
		ownArgs, err := decodeStringMap(argsJSON)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: decode task arguments: %v", apperrors.ErrPersistence, err)
		}
		t.Arguments = model.NewArgScope(ownArgs)
		ownEnv, err := decodeStringMap(envJSON)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: decode task environment: %v", apperrors.ErrPersistence, err)
		}
		t.Environment = model.NewArgScope(ownEnv)
		if t.Tags, err = decodeStringMap(tagsJSON); err != nil {
			return nil, 0, fmt.Errorf("%w: decode task tags: %v", apperrors.ErrPersistence, err)
		}
		if t.Requirements, err = decodeStringMap(reqJSON); err != nil {
			return nil, 0, fmt.Errorf("%w: decode task requirements: %v", apperrors.ErrPersistence, err)
		}
		if t.Dependencies, err = decodeDependencies(depsJSON); err != nil {
			return nil, 0, fmt.Errorf("%w: decode task dependencies: %v", apperrors.ErrPersistence, err)
		}
		out[t.ID] = t
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	return out, maxID, rows.Err()
}

func (s *Store) loadPoolShares(ctx context.Context) (map[int]*model.PoolShare, int, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, pool_name, folder_node_id, max_rn, priority FROM pool_shares WHERE NOT archived`)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: load pool shares: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	out := map[int]*model.PoolShare{}
	maxID := -1
	for rows.Next() {
		p := &model.PoolShare{}
		if err := rows.Scan(&p.ID, &p.PoolName, &p.FolderNodeID, &p.MaxRN, &p.Priority); err != nil {
			return nil, 0, fmt.Errorf("%w: scan pool share: %v", apperrors.ErrPersistence, err)
		}
		out[p.ID] = p
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	return out, maxID, rows.Err()
}

func (s *Store) loadCommands(ctx context.Context, renderNodes map[string]*model.RenderNode) (map[int]*model.Command, int, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, task_id, name, runner, arguments, status, attempt, max_attempt, render_node, message, start_time, end_time, updated_at FROM commands WHERE NOT archived`)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: load commands: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	out := map[int]*model.Command{}
	maxID := -1
	for rows.Next() {
		c := &model.Command{}
		var argsJSON []byte
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Name, &c.Runner, &argsJSON, &c.Status, &c.Attempt, &c.MaxAttempt, &c.RenderNode, &c.Message, &c.StartTime, &c.EndTime, &c.LastUpdate); err != nil {
			return nil, 0, fmt.Errorf("%w: scan command: %v", apperrors.ErrPersistence, err)
		}
		args, err := decodeStringMap(argsJSON)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: decode command arguments: %v", apperrors.ErrPersistence, err)
		}
		c.Arguments = args

		if c.Status == model.StatusRunning || c.Status == model.StatusDone || c.Status == model.StatusError {
			if c.RenderNode == "" {
				return nil, 0, fmt.Errorf("%w: command %d in status %s has no render node on restore", apperrors.ErrPersistence, c.ID, c.Status)
			}
		}
		if rn, ok := renderNodes[c.RenderNode]; ok {
			rn.CurrentCommands = appendUnique(rn.CurrentCommands, c.ID)
		}

		out[c.ID] = c
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	return out, maxID, rows.Err()
}

// chainScopes rewires every restored folder/task's ArgScope onto its
// parent folder's scope, mirroring the WithParent chaining applied at
// submission time and extended here to the scope chain so Resolved() is
// correct immediately after restore, not just the raw own-map each row
// persisted.
func chainScopes(folders map[int]*model.FolderNode, tasks map[int]*model.TaskNode) {
	visited := map[int]bool{}
	var chainFolder func(id int)
	chainFolder = func(id int) {
		if visited[id] {
			return
		}
		visited[id] = true
		f, ok := folders[id]
		if !ok || f.ParentID == model.RootParentID {
			return
		}
		parent, ok := folders[f.ParentID]
		if !ok {
			return
		}
		chainFolder(f.ParentID)
		f.Arguments = f.Arguments.WithParent(parent.Arguments)
		f.Environment = f.Environment.WithParent(parent.Environment)
	}
	for id := range folders {
		chainFolder(id)
	}
	for _, t := range tasks {
		parent, ok := folders[t.ParentID]
		if !ok {
			continue
		}
		t.Arguments = t.Arguments.WithParent(parent.Arguments)
		t.Environment = t.Environment.WithParent(parent.Environment)
	}
}

func appendUnique(xs []int, v int) []int {
	for _, x := range xs {
		if x == v {
			return xs
		}
	}
	return append(xs, v)
}

func syncRenderNodes(ctx context.Context, tx pgx.Tx, tree *model.Tree) error {
	for _, rn := range tree.RenderNodes {
		poolsJSON, err := encodeStrings(rn.Pools)
		if err != nil {
			return fmt.Errorf("%w: encode render node pools: %v", apperrors.ErrPersistence, err)
		}
		cmdsJSON, err := encodeInts(rn.CurrentCommands)
		if err != nil {
			return fmt.Errorf("%w: encode render node commands: %v", apperrors.ErrPersistence, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO render_nodes (name, host, port, pools, status, cores, ram, last_heartbeat, current_commands)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (name) DO UPDATE SET
				host = EXCLUDED.host, port = EXCLUDED.port, pools = EXCLUDED.pools,
				status = EXCLUDED.status, cores = EXCLUDED.cores, ram = EXCLUDED.ram,
				last_heartbeat = EXCLUDED.last_heartbeat, current_commands = EXCLUDED.current_commands`,
			rn.Name, rn.Host, rn.Port, poolsJSON, rn.Status, rn.Cores, rn.RAM, rn.LastHeartbeat, cmdsJSON,
		)
		if err != nil {
			return fmt.Errorf("%w: sync render node %s: %v", apperrors.ErrPersistence, rn.Name, err)
		}
	}
	return nil
}

func upsertFolderNode(ctx context.Context, tx pgx.Tx, tree *model.Tree, id int) error {
	f, ok := tree.Folders[id]
	if !ok {
		return nil
	}
	childrenJSON, err := encodeNodeRefs(f.Children)
	if err != nil {
		return err
	}
	argsJSON, err := encodeStringMap(f.Arguments.Own())
	if err != nil {
		return err
	}
	envJSON, err := encodeStringMap(f.Environment.Own())
	if err != nil {
		return err
	}
	tagsJSON, err := encodeStringMap(f.Tags)
	if err != nil {
		return err
	}
	depsJSON, err := encodeDependencies(f.Dependencies)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO folder_nodes (id, parent_id, name, strategy, children, status, arguments, environment, tags, timer, priority, dispatch_key, max_rn, dependencies, archived, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
		ON CONFLICT (id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id, name = EXCLUDED.name, strategy = EXCLUDED.strategy,
			children = EXCLUDED.children, status = EXCLUDED.status, arguments = EXCLUDED.arguments,
			environment = EXCLUDED.environment, tags = EXCLUDED.tags, timer = EXCLUDED.timer,
			priority = EXCLUDED.priority, dispatch_key = EXCLUDED.dispatch_key, max_rn = EXCLUDED.max_rn,
			dependencies = EXCLUDED.dependencies, archived = EXCLUDED.archived, updated_at = now()`,
		f.ID, f.ParentID, f.Name, f.Strategy, childrenJSON, f.Status, argsJSON, envJSON, tagsJSON, f.Timer, f.Priority, f.DispatchKey, f.MaxRN, depsJSON, f.Archived,
	)
	return err
}

func upsertTaskNode(ctx context.Context, tx pgx.Tx, tree *model.Tree, id int) error {
	t, ok := tree.Tasks[id]
	if !ok {
		return nil
	}
	argsJSON, err := encodeStringMap(t.Arguments.Own())
	if err != nil {
		return err
	}
	envJSON, err := encodeStringMap(t.Environment.Own())
	if err != nil {
		return err
	}
	tagsJSON, err := encodeStringMap(t.Tags)
	if err != nil {
		return err
	}
	reqJSON, err := encodeStringMap(t.Requirements)
	if err != nil {
		return err
	}
	depsJSON, err := encodeDependencies(t.Dependencies)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO task_nodes (id, parent_id, name, commands, status, arguments, environment, tags, timer, priority, dispatch_key, max_rn, runner, max_attempt, min_nb_cores, max_nb_cores, ram_use, requirements, licence, dependencies, archived, updated_at)
		VALUES ($1, $2, $3, '[]', $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, now())
		ON CONFLICT (id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id, name = EXCLUDED.name, status = EXCLUDED.status,
			arguments = EXCLUDED.arguments, environment = EXCLUDED.environment, tags = EXCLUDED.tags,
			timer = EXCLUDED.timer, priority = EXCLUDED.priority, dispatch_key = EXCLUDED.dispatch_key,
			max_rn = EXCLUDED.max_rn, runner = EXCLUDED.runner, max_attempt = EXCLUDED.max_attempt,
			min_nb_cores = EXCLUDED.min_nb_cores, max_nb_cores = EXCLUDED.max_nb_cores, ram_use = EXCLUDED.ram_use,
			requirements = EXCLUDED.requirements, licence = EXCLUDED.licence, dependencies = EXCLUDED.dependencies,
			archived = EXCLUDED.archived, updated_at = now()`,
		t.ID, t.ParentID, t.Name, t.Status, argsJSON, envJSON, tagsJSON, t.Timer, t.Priority, t.DispatchKey, t.MaxRN, t.Runner, t.MaxAttempt, t.MinNbCores, t.MaxNbCores, t.RamUse, reqJSON, t.Licence, depsJSON, t.Archived,
	)
	return err
}

func upsertCommand(ctx context.Context, tx pgx.Tx, tree *model.Tree, id int) error {
	c, ok := tree.Commands[id]
	if !ok {
		return nil
	}
	argsJSON, err := encodeStringMap(c.Arguments)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO commands (id, task_id, name, runner, arguments, status, attempt, max_attempt, render_node, message, start_time, end_time, archived, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		ON CONFLICT (id) DO UPDATE SET
			task_id = EXCLUDED.task_id, name = EXCLUDED.name, runner = EXCLUDED.runner,
			arguments = EXCLUDED.arguments, status = EXCLUDED.status, attempt = EXCLUDED.attempt,
			max_attempt = EXCLUDED.max_attempt, render_node = EXCLUDED.render_node, message = EXCLUDED.message,
			start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, archived = EXCLUDED.archived,
			updated_at = now()`,
		c.ID, c.TaskID, c.Name, c.Runner, argsJSON, c.Status, c.Attempt, c.MaxAttempt, c.RenderNode, c.Message, c.StartTime, c.EndTime, c.Archived,
	)
	return err
}

func upsertPoolShare(ctx context.Context, tx pgx.Tx, tree *model.Tree, id int) error {
	p, ok := tree.PoolShares[id]
	if !ok {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO pool_shares (id, pool_name, folder_node_id, max_rn, priority, archived)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			pool_name = EXCLUDED.pool_name, folder_node_id = EXCLUDED.folder_node_id,
			max_rn = EXCLUDED.max_rn, priority = EXCLUDED.priority, archived = EXCLUDED.archived`,
		p.ID, p.PoolName, p.FolderNodeID, p.MaxRN, p.Priority, p.Archived,
	)
	return err
}
