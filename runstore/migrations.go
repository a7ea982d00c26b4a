package runstore

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    paradigm TEXT DEFAULT '',
    status TEXT NOT NULL,
    principal TEXT DEFAULT '',
    started_at TEXT NOT NULL,
    ended_at TEXT DEFAULT '',
    duration_ms INTEGER DEFAULT 0,
    input_tokens INTEGER DEFAULT 0,
    output_tokens INTEGER DEFAULT 0,
    failed_stages TEXT DEFAULT '[]',
    markdown_path TEXT DEFAULT '',
    pdf_path TEXT DEFAULT '',
    issue_url TEXT DEFAULT '',
    error TEXT DEFAULT ''
);

CREATE INDEX IF NOT EXISTS runs_project ON runs (project_id, started_at);

CREATE TABLE IF NOT EXISTS events (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    node TEXT DEFAULT '',
    status TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    metadata TEXT DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS events_run ON events (run_id, seq);
`
