package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS runs (
	id            VARCHAR PRIMARY KEY,
	created_at    TIMESTAMP NOT NULL,
	model         VARCHAR NOT NULL,
	audio_path    VARCHAR NOT NULL,
	audio_mime    VARCHAR,
	participants  VARCHAR NOT NULL,
	report        VARCHAR NOT NULL,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens  INTEGER NOT NULL DEFAULT 0,
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	warnings      VARCHAR
)`, `
CREATE TABLE IF NOT EXISTS indicator_examples (
	run_id      VARCHAR NOT NULL,
	participant VARCHAR NOT NULL,
	indicator   VARCHAR NOT NULL,
	quote       VARCHAR NOT NULL,
	ts          VARCHAR,
	offset_sec  DOUBLE,
	explanation VARCHAR,
	context     VARCHAR
)`,
}

// openDuckDB opens the history database at path, or an in-memory one when
// path is empty, and makes sure the schema exists.
func openDuckDB(path string) (*sql.DB, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create history schema: %w", err)
		}
	}

	return db, nil
}
