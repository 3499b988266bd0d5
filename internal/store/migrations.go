package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "mood_states: current mood, one row per character",
		SQL: `
CREATE TABLE mood_states (
    character_id   TEXT PRIMARY KEY,
    p              REAL NOT NULL CHECK (p BETWEEN -1 AND 1),
    a              REAL NOT NULL CHECK (a BETWEEN -1 AND 1),
    d              REAL NOT NULL CHECK (d BETWEEN -1 AND 1),
    sample_count   INTEGER NOT NULL DEFAULT 1,
    updated_at     INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "mood_frames: append-only mood history",
		SQL: `
CREATE TABLE mood_frames (
    frame_id       TEXT PRIMARY KEY,
    character_id   TEXT NOT NULL,
    p              REAL NOT NULL CHECK (p BETWEEN -1 AND 1),
    a              REAL NOT NULL CHECK (a BETWEEN -1 AND 1),
    d              REAL NOT NULL CHECK (d BETWEEN -1 AND 1),
    created_at     INTEGER NOT NULL,
    seq            INTEGER NOT NULL
);

CREATE INDEX idx_frames_character ON mood_frames(character_id, created_at DESC, seq DESC);
`,
	},
	{
		Version:     3,
		Description: "object_defs + inventory: owned items and their PAD vectors",
		SQL: `
CREATE TABLE object_defs (
    object_id        TEXT PRIMARY KEY,
    name             TEXT NOT NULL DEFAULT '',
    p                REAL NOT NULL DEFAULT 0 CHECK (p BETWEEN -1 AND 1),
    a                REAL NOT NULL DEFAULT 0 CHECK (a BETWEEN -1 AND 1),
    d                REAL NOT NULL DEFAULT 0 CHECK (d BETWEEN -1 AND 1),
    linked_domain_id TEXT
);

CREATE TABLE inventory (
    id                 INTEGER PRIMARY KEY,
    character_id       TEXT NOT NULL,
    object_id          TEXT NOT NULL,
    acquired_at        INTEGER NOT NULL,
    acquisition_method TEXT NOT NULL DEFAULT '',
    interaction_count  INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY (object_id) REFERENCES object_defs(object_id)
);

CREATE INDEX idx_inventory_character ON inventory(character_id);
`,
	},
	{
		Version:     4,
		Description: "object_influences: derived affective bias per character",
		SQL: `
CREATE TABLE object_influences (
    character_id   TEXT PRIMARY KEY,
    p              REAL NOT NULL,
    a              REAL NOT NULL,
    d              REAL NOT NULL,
    total_weight   REAL NOT NULL,
    domain_weights TEXT NOT NULL DEFAULT '{}',
    computed_at    INTEGER NOT NULL
);
`,
	},
	{
		Version:     5,
		Description: "proximity_edges: undirected character graph",
		SQL: `
CREATE TABLE proximity_edges (
    character_a            TEXT NOT NULL,
    character_b            TEXT NOT NULL,
    psychological_distance REAL NOT NULL CHECK (psychological_distance BETWEEN 0 AND 1),
    emotional_resonance    REAL NOT NULL CHECK (emotional_resonance BETWEEN 0 AND 1),

    PRIMARY KEY (character_a, character_b)
);

CREATE INDEX idx_edges_b ON proximity_edges(character_b);
`,
	},
	{
		Version:     6,
		Description: "emotional_events: contagion audit trail",
		SQL: `
CREATE TABLE emotional_events (
    event_id         TEXT PRIMARY KEY,
    frame_id         TEXT NOT NULL,
    event_type       TEXT NOT NULL,
    target_character TEXT NOT NULL,
    influence_data   TEXT NOT NULL DEFAULT '{}',
    created_at       INTEGER NOT NULL,

    FOREIGN KEY (frame_id) REFERENCES mood_frames(frame_id)
);

CREATE INDEX idx_events_target ON emotional_events(target_character, created_at DESC);
`,
	},
	{
		Version:     7,
		Description: "settings: key-value configuration store",
		SQL: `
CREATE TABLE settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := db.Get(&count, "SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Beginx()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.Get(&version, "SELECT COALESCE(MAX(version), 0) FROM schema_versions")
	return version, err
}
