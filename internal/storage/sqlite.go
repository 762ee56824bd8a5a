package storage

import (
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/collabgraph/internal/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS graph_runs (
	id TEXT PRIMARY KEY,
	stage TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	node_count INTEGER NOT NULL,
	link_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS graph_nodes (
	run_id TEXT NOT NULL,
	id TEXT NOT NULL,
	grp TEXT NOT NULL,
	val REAL NOT NULL,
	img TEXT,
	sources TEXT NOT NULL,
	PRIMARY KEY (run_id, id),
	FOREIGN KEY (run_id) REFERENCES graph_runs(id)
);

CREATE TABLE IF NOT EXISTS graph_links (
	run_id TEXT NOT NULL,
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	value REAL NOT NULL,
	shared_repos TEXT NOT NULL,
	interactions TEXT NOT NULL,
	PRIMARY KEY (run_id, source, target),
	FOREIGN KEY (run_id) REFERENCES graph_runs(id)
);

CREATE INDEX IF NOT EXISTS idx_graph_runs_stage ON graph_runs(stage, created_at);
`

// SQLiteStore keeps stage graphs in a local SQLite database.
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens path, creating the file and schema as needed. Use
// ":memory:" for a throwaway store.
func NewSQLiteStore(path string, logger *logrus.Entry) (*SQLiteStore, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.FileSystemErrorf(err, "create database directory for %s", path)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.StorageErrorf(err, "connect to sqlite %s", path)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.StorageError(err, "init sqlite schema")
	}
	return &SQLiteStore{sqlStore{db: db, logger: logger, where: path}}, nil
}
