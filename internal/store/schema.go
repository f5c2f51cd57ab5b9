package store

// schemaDDL holds every table and index, all CREATE IF NOT EXISTS so schema
// initialization is idempotent. Surrogate keys are AUTOINCREMENT BIGINTs.
// No ON DELETE CASCADE anywhere: dependent-row cleanup is application code.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		routing TEXT NOT NULL,
		assignees TEXT,
		dependencies TEXT,
		complexity INTEGER NOT NULL DEFAULT 5,
		risk INTEGER NOT NULL DEFAULT 5,
		created_at DATETIME NOT NULL,
		updated_at DATETIME,
		due_at DATETIME,
		metadata TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,

	`CREATE TABLE IF NOT EXISTS proposals (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		input_type TEXT,
		content TEXT,
		confidence REAL NOT NULL DEFAULT 0,
		tokens_in INTEGER NOT NULL DEFAULT 0,
		tokens_out INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		metadata TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_proposals_task ON proposals(task_id)`,

	`CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		considered TEXT,
		selected TEXT,
		winner_proposal_id TEXT,
		consensus_achieved INTEGER NOT NULL DEFAULT 0,
		agreement_rate REAL,
		rationale TEXT,
		decided_at DATETIME NOT NULL,
		metadata TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_task ON decisions(task_id)`,

	`CREATE TABLE IF NOT EXISTS conversation_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_task ON conversation_messages(task_id)`,

	`CREATE TABLE IF NOT EXISTS metrics_timeseries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		value REAL NOT NULL,
		recorded_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metrics_name ON metrics_timeseries(name)`,

	`CREATE TABLE IF NOT EXISTS context_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL REFERENCES tasks(id),
		decision_id TEXT REFERENCES decisions(id),
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_task ON context_snapshots(task_id)`,

	`CREATE TABLE IF NOT EXISTS file_state (
		file_id INTEGER PRIMARY KEY AUTOINCREMENT,
		rel_path TEXT NOT NULL UNIQUE,
		content_hash TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		mtime_ns INTEGER NOT NULL,
		language TEXT,
		kind TEXT,
		fingerprint TEXT,
		indexed_at DATETIME NOT NULL,
		is_deleted INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_file_state_rel_path ON file_state(rel_path)`,
	`CREATE INDEX IF NOT EXISTS idx_file_state_mtime_ns ON file_state(mtime_ns)`,

	`CREATE TABLE IF NOT EXISTS chunks (
		chunk_id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id INTEGER NOT NULL,
		ordinal INTEGER NOT NULL,
		kind TEXT NOT NULL,
		start_line INTEGER,
		end_line INTEGER,
		token_estimate INTEGER,
		content TEXT NOT NULL,
		summary TEXT,
		created_at DATETIME NOT NULL,
		UNIQUE(file_id, ordinal)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_file_ordinal ON chunks(file_id, ordinal)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_kind ON chunks(kind)`,

	`CREATE TABLE IF NOT EXISTS embeddings (
		embedding_id INTEGER PRIMARY KEY AUTOINCREMENT,
		chunk_id INTEGER NOT NULL,
		model TEXT NOT NULL,
		dimensions INTEGER NOT NULL,
		vector BLOB NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(chunk_id, model)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model)`,

	`CREATE TABLE IF NOT EXISTS links (
		link_id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_chunk_id INTEGER NOT NULL,
		target_file_id INTEGER NOT NULL,
		target_chunk_id INTEGER,
		type TEXT NOT NULL,
		label TEXT,
		score REAL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_chunk_id)`,

	`CREATE TABLE IF NOT EXISTS usage_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		agent_id TEXT,
		tokens_in INTEGER NOT NULL DEFAULT 0,
		tokens_out INTEGER NOT NULL DEFAULT 0,
		recorded_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_task ON usage_metrics(task_id)`,

	`CREATE TABLE IF NOT EXISTS bootstrap_progress (
		path TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		last_error TEXT,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bootstrap_status ON bootstrap_progress(status)`,

	`CREATE TABLE IF NOT EXISTS bootstrap_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		phase TEXT,
		message TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		payload TEXT,
		error TEXT,
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		finished_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at)`,

	`CREATE TABLE IF NOT EXISTS workflow_checkpoints (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		strategy TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_checkpoints_task ON workflow_checkpoints(task_id)`,

	`CREATE TABLE IF NOT EXISTS project_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
}
