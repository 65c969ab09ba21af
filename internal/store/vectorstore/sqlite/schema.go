package sqlite

// Schema is the base table + FTS5 virtual table + sync triggers, applied on
// every open.
const Schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	event_time TEXT NOT NULL,
	rule_id INTEGER NOT NULL DEFAULT 0,
	rule_level INTEGER NOT NULL DEFAULT 0,
	rule_description TEXT NOT NULL DEFAULT '',
	agent_id TEXT NOT NULL DEFAULT '',
	agent_name TEXT NOT NULL DEFAULT '',
	agent_ip TEXT NOT NULL DEFAULT '',
	decoder TEXT NOT NULL DEFAULT '',
	full_log TEXT NOT NULL DEFAULT '',
	data TEXT,
	alert_vector BLOB,
	ai_analysis TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_alerts_event_time ON alerts (event_time);
CREATE INDEX IF NOT EXISTS idx_alerts_unprocessed ON alerts (event_time) WHERE ai_analysis IS NULL;

CREATE VIRTUAL TABLE IF NOT EXISTS alerts_fts USING fts5(
	rule_description, full_log, content='alerts', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS alerts_fts_insert AFTER INSERT ON alerts BEGIN
	INSERT INTO alerts_fts(rowid, rule_description, full_log) VALUES (new.rowid, new.rule_description, new.full_log);
END;

CREATE TRIGGER IF NOT EXISTS alerts_fts_delete AFTER DELETE ON alerts BEGIN
	INSERT INTO alerts_fts(alerts_fts, rowid, rule_description, full_log) VALUES ('delete', old.rowid, old.rule_description, old.full_log);
END;

CREATE TRIGGER IF NOT EXISTS alerts_fts_update AFTER UPDATE ON alerts BEGIN
	INSERT INTO alerts_fts(alerts_fts, rowid, rule_description, full_log) VALUES ('delete', old.rowid, old.rule_description, old.full_log);
	INSERT INTO alerts_fts(rowid, rule_description, full_log) VALUES (new.rowid, new.rule_description, new.full_log);
END;
`
