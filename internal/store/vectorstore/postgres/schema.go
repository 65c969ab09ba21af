package postgres

// Schema is the base table definition, applied on every New call
// (idempotent — IF NOT EXISTS throughout).
const Schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	event_time TIMESTAMPTZ NOT NULL,
	rule_id INTEGER NOT NULL DEFAULT 0,
	rule_level INTEGER NOT NULL DEFAULT 0,
	rule_description TEXT NOT NULL DEFAULT '',
	agent_id TEXT NOT NULL DEFAULT '',
	agent_name TEXT NOT NULL DEFAULT '',
	agent_ip TEXT NOT NULL DEFAULT '',
	decoder TEXT NOT NULL DEFAULT '',
	full_log TEXT NOT NULL DEFAULT '',
	data JSONB,
	alert_vector BYTEA,
	ai_analysis JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_alerts_event_time ON alerts (event_time);
CREATE INDEX IF NOT EXISTS idx_alerts_unprocessed ON alerts (event_time) WHERE ai_analysis IS NULL;
CREATE INDEX IF NOT EXISTS idx_alerts_agent_name ON alerts (agent_name);
`

// MigrationFTS adds a generated tsvector column over the fields
// keyword_time_window searches (rule description and full_log; data is not
// indexed) and a GIN
// index over it, the same two-step add-column/add-index shape as the
// teacher's FTS migration.
const MigrationFTS = `
ALTER TABLE alerts ADD COLUMN IF NOT EXISTS search_vector tsvector
	GENERATED ALWAYS AS (
		to_tsvector('english', coalesce(rule_description, '') || ' ' || coalesce(full_log, ''))
	) STORED;

CREATE INDEX IF NOT EXISTS idx_alerts_search_vector ON alerts USING GIN (search_vector);
`

// MigrationPgvector adds the pgvector column and its approximate-nearest-
// neighbor index, applied only when the extension loaded successfully.
const MigrationPgvector = `
ALTER TABLE alerts ADD COLUMN IF NOT EXISTS alert_vector_vec vector(1536);
CREATE INDEX IF NOT EXISTS idx_alerts_vector_vec ON alerts
	USING hnsw (alert_vector_vec vector_cosine_ops);
`
