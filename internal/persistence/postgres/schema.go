package postgres

// statements creates the logical tables backing the dispatch tree,
// compressed where the original design normalizes into separate
// Arguments/Dependencies/Rules tables: those live as jsonb columns on
// their owning row instead, since only the logical schema and
// transactional obligations are fixed, not the query language or its
// normal form. Every scheduling-relevant table still carries the
// archived boolean soft-delete needs.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS pools (
		name TEXT PRIMARY KEY,
		render_nodes JSONB NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS render_nodes (
		name TEXT PRIMARY KEY,
		host TEXT NOT NULL,
		port INTEGER NOT NULL,
		pools JSONB NOT NULL DEFAULT '[]',
		status INTEGER NOT NULL,
		cores INTEGER NOT NULL,
		ram INTEGER NOT NULL,
		last_heartbeat TIMESTAMPTZ NOT NULL,
		current_commands JSONB NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS folder_nodes (
		id INTEGER PRIMARY KEY,
		parent_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		strategy TEXT NOT NULL,
		children JSONB NOT NULL DEFAULT '[]',
		status INTEGER NOT NULL,
		arguments JSONB NOT NULL DEFAULT '{}',
		environment JSONB NOT NULL DEFAULT '{}',
		tags JSONB NOT NULL DEFAULT '{}',
		timer BIGINT,
		priority INTEGER NOT NULL,
		dispatch_key DOUBLE PRECISION NOT NULL,
		max_rn INTEGER NOT NULL,
		dependencies JSONB NOT NULL DEFAULT '[]',
		archived BOOLEAN NOT NULL DEFAULT false,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS task_nodes (
		id INTEGER PRIMARY KEY,
		parent_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		commands JSONB NOT NULL DEFAULT '[]',
		status INTEGER NOT NULL,
		arguments JSONB NOT NULL DEFAULT '{}',
		environment JSONB NOT NULL DEFAULT '{}',
		tags JSONB NOT NULL DEFAULT '{}',
		timer BIGINT,
		priority INTEGER NOT NULL,
		dispatch_key DOUBLE PRECISION NOT NULL,
		max_rn INTEGER NOT NULL,
		runner TEXT NOT NULL,
		max_attempt INTEGER NOT NULL,
		min_nb_cores INTEGER NOT NULL,
		max_nb_cores INTEGER NOT NULL,
		ram_use INTEGER NOT NULL,
		requirements JSONB NOT NULL DEFAULT '{}',
		licence TEXT NOT NULL DEFAULT '',
		dependencies JSONB NOT NULL DEFAULT '[]',
		archived BOOLEAN NOT NULL DEFAULT false,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		task_id INTEGER NOT NULL REFERENCES task_nodes(id),
		name TEXT NOT NULL,
		runner TEXT NOT NULL,
		arguments JSONB NOT NULL DEFAULT '{}',
		status INTEGER NOT NULL,
		attempt INTEGER NOT NULL,
		max_attempt INTEGER NOT NULL,
		render_node TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		start_time BIGINT,
		end_time BIGINT,
		archived BOOLEAN NOT NULL DEFAULT false,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pool_shares (
		id INTEGER PRIMARY KEY,
		pool_name TEXT NOT NULL,
		folder_node_id INTEGER NOT NULL,
		max_rn INTEGER NOT NULL,
		priority INTEGER NOT NULL,
		archived BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_nodes_parent ON task_nodes (parent_id) WHERE NOT archived`,
	`CREATE INDEX IF NOT EXISTS idx_commands_task ON commands (task_id) WHERE NOT archived`,
}
