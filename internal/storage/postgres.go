package storage

import (
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/collabgraph/internal/errors"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS graph_runs (
	id UUID PRIMARY KEY,
	stage TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	node_count INTEGER NOT NULL,
	link_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS graph_nodes (
	run_id UUID NOT NULL REFERENCES graph_runs(id) ON DELETE CASCADE,
	id TEXT NOT NULL,
	grp TEXT NOT NULL,
	val DOUBLE PRECISION NOT NULL,
	img TEXT,
	sources TEXT NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS graph_links (
	run_id UUID NOT NULL REFERENCES graph_runs(id) ON DELETE CASCADE,
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	shared_repos TEXT NOT NULL,
	interactions TEXT NOT NULL,
	PRIMARY KEY (run_id, source, target)
);

CREATE INDEX IF NOT EXISTS idx_graph_runs_stage ON graph_runs(stage, created_at);
`

// PostgresStore keeps stage graphs in PostgreSQL, for shared deployments.
type PostgresStore struct {
	sqlStore
}

func NewPostgresStore(dsn string, logger *logrus.Entry) (*PostgresStore, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, errors.StorageError(err, "connect to postgres")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, errors.StorageError(err, "init postgres schema")
	}
	return &PostgresStore{sqlStore{db: db, logger: logger, where: "postgres"}}, nil
}
