package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/models"
)

// Run is one saved graph.
type Run struct {
	ID        string `db:"id"`
	Stage     string `db:"stage"`
	CreatedAt int64  `db:"created_at"`
	NodeCount int    `db:"node_count"`
	LinkCount int    `db:"link_count"`
}

type nodeRow struct {
	RunID   string  `db:"run_id"`
	ID      string  `db:"id"`
	Group   string  `db:"grp"`
	Val     float64 `db:"val"`
	Img     string  `db:"img"`
	Sources string  `db:"sources"`
}

type linkRow struct {
	RunID        string  `db:"run_id"`
	Source       string  `db:"source"`
	Target       string  `db:"target"`
	Value        float64 `db:"value"`
	SharedRepos  string  `db:"shared_repos"`
	Interactions string  `db:"interactions"`
}

// sqlStore is the dialect-neutral half of the SQLite and Postgres stores.
// Queries are written with ? placeholders and rebound per driver. Set-valued
// fields are stored as JSON text.
type sqlStore struct {
	db     *sqlx.DB
	logger *logrus.Entry
	where  string
}

func (s *sqlStore) SaveGraph(ctx context.Context, stage Stage, g *models.Graph) error {
	run := Run{
		ID:        uuid.New().String(),
		Stage:     string(stage),
		CreatedAt: time.Now().UnixNano(),
		NodeCount: len(g.Nodes),
		LinkCount: len(g.Links),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.StorageError(err, "begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO graph_runs (id, stage, created_at, node_count, link_count)
		VALUES (:id, :stage, :created_at, :node_count, :link_count)`, run); err != nil {
		return errors.StorageError(err, "insert run")
	}

	nodeQuery := tx.Rebind(`INSERT INTO graph_nodes (run_id, id, grp, val, img, sources) VALUES (?, ?, ?, ?, ?, ?)`)
	for _, n := range g.Nodes {
		sources, err := json.Marshal(orEmpty(n.Sources))
		if err != nil {
			return errors.InternalErrorf("encode sources: %v", err)
		}
		if _, err := tx.ExecContext(ctx, nodeQuery, run.ID, n.ID, n.Group, n.Val, n.Img, string(sources)); err != nil {
			return errors.StorageErrorf(err, "insert node %s", n.ID)
		}
	}

	linkQuery := tx.Rebind(`INSERT INTO graph_links (run_id, source, target, value, shared_repos, interactions) VALUES (?, ?, ?, ?, ?, ?)`)
	for _, l := range g.Links {
		repos, err := json.Marshal(orEmpty(l.SharedRepos))
		if err != nil {
			return errors.InternalErrorf("encode shared repos: %v", err)
		}
		interactions := l.Interactions
		if interactions == nil {
			interactions = []models.Interaction{}
		}
		events, err := json.Marshal(interactions)
		if err != nil {
			return errors.InternalErrorf("encode interactions: %v", err)
		}
		if _, err := tx.ExecContext(ctx, linkQuery, run.ID, l.Source, l.Target, l.Value, string(repos), string(events)); err != nil {
			return errors.StorageErrorf(err, "insert link %s|%s", l.Source, l.Target)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError(err, "commit graph")
	}
	s.logger.WithFields(logrus.Fields{"stage": stage, "run": run.ID, "nodes": run.NodeCount, "links": run.LinkCount}).Info("saved graph")
	return nil
}

// LatestRun returns the most recent run of stage.
func (s *sqlStore) LatestRun(ctx context.Context, stage Stage) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, s.db.Rebind(`
		SELECT id, stage, created_at, node_count, link_count FROM graph_runs
		WHERE stage = ? ORDER BY created_at DESC LIMIT 1`), string(stage))
	if err == sql.ErrNoRows {
		return nil, notFound(stage, s.where)
	}
	if err != nil {
		return nil, errors.StorageErrorf(err, "query %s runs", stage)
	}
	return &run, nil
}

func (s *sqlStore) LoadGraph(ctx context.Context, stage Stage) (*models.Graph, error) {
	run, err := s.LatestRun(ctx, stage)
	if err != nil {
		return nil, err
	}

	var nodes []nodeRow
	if err := s.db.SelectContext(ctx, &nodes, s.db.Rebind(
		`SELECT run_id, id, grp, val, img, sources FROM graph_nodes WHERE run_id = ? ORDER BY id`), run.ID); err != nil {
		return nil, errors.StorageErrorf(err, "load nodes of run %s", run.ID)
	}
	var links []linkRow
	if err := s.db.SelectContext(ctx, &links, s.db.Rebind(
		`SELECT run_id, source, target, value, shared_repos, interactions FROM graph_links WHERE run_id = ? ORDER BY source, target`), run.ID); err != nil {
		return nil, errors.StorageErrorf(err, "load links of run %s", run.ID)
	}

	g := &models.Graph{
		Nodes: make([]models.Node, 0, len(nodes)),
		Links: make([]models.Link, 0, len(links)),
	}
	for _, r := range nodes {
		n := models.Node{ID: r.ID, Group: r.Group, Val: r.Val, Img: r.Img}
		if err := json.Unmarshal([]byte(r.Sources), &n.Sources); err != nil {
			return nil, errors.StorageErrorf(err, "decode sources of %s", r.ID)
		}
		g.Nodes = append(g.Nodes, n)
	}
	for _, r := range links {
		l := models.Link{Source: r.Source, Target: r.Target, Value: r.Value}
		if err := json.Unmarshal([]byte(r.SharedRepos), &l.SharedRepos); err != nil {
			return nil, errors.StorageErrorf(err, "decode shared repos of %s|%s", r.Source, r.Target)
		}
		if err := json.Unmarshal([]byte(r.Interactions), &l.Interactions); err != nil {
			return nil, errors.StorageErrorf(err, "decode interactions of %s|%s", r.Source, r.Target)
		}
		g.Links = append(g.Links, l)
	}
	g.Sort()
	return g, nil
}

// Prune deletes all but the newest keep runs of stage.
func (s *sqlStore) Prune(ctx context.Context, stage Stage, keep int) (int, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, s.db.Rebind(
		`SELECT id FROM graph_runs WHERE stage = ? ORDER BY created_at DESC`), string(stage)); err != nil {
		return 0, errors.StorageErrorf(err, "list %s runs", stage)
	}
	if len(ids) <= keep {
		return 0, nil
	}
	stale := ids[keep:]

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.StorageError(err, "begin transaction")
	}
	defer tx.Rollback()
	for _, table := range []string{"graph_links", "graph_nodes"} {
		query, args, err := sqlx.In(fmt.Sprintf("DELETE FROM %s WHERE run_id IN (?)", table), stale)
		if err != nil {
			return 0, errors.InternalErrorf("build prune query: %v", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return 0, errors.StorageErrorf(err, "prune %s", table)
		}
	}
	query, args, err := sqlx.In("DELETE FROM graph_runs WHERE id IN (?)", stale)
	if err != nil {
		return 0, errors.InternalErrorf("build prune query: %v", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return 0, errors.StorageError(err, "prune graph_runs")
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.StorageError(err, "commit prune")
	}
	return len(stale), nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
