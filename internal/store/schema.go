package store

const Schema = `
CREATE TABLE IF NOT EXISTS series (
	id INTEGER PRIMARY KEY,
	url TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	source INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chapters (
	id INTEGER PRIMARY KEY,
	series_id INTEGER NOT NULL REFERENCES series(id) ON DELETE CASCADE,
	url TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	scanlator TEXT NOT NULL DEFAULT '',
	remote_id TEXT NOT NULL DEFAULT '',
	legacy_id INTEGER,
	source_order INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_chapters_series ON chapters(series_id);

CREATE TABLE IF NOT EXISTS queue (
	chapter_id INTEGER PRIMARY KEY,
	series_id INTEGER NOT NULL,
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_deletes (
	series_id INTEGER PRIMARY KEY,
	data BLOB NOT NULL
);
`
