package graphdb

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/errors"
)

// Neo4jBackend implements Backend on the Neo4j driver's ExecuteQuery API.
type Neo4jBackend struct {
	driver   neo4j.DriverWithContext
	database string
	batches  *BatchWriter
	log      *logrus.Entry
}

// NewNeo4jBackend connects and verifies connectivity before returning.
func NewNeo4jBackend(ctx context.Context, cfg config.Neo4jConfig, log *logrus.Entry) (*Neo4jBackend, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, errors.StorageErrorf(err, "failed to create Neo4j driver for %s", cfg.URI)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, errors.NetworkErrorf(err, "failed to connect to Neo4j at %s", cfg.URI)
	}

	n := &Neo4jBackend{driver: driver, database: cfg.Database, log: log}
	n.batches = newBatchWriter(n.write, BatchConfigFor(cfg.BatchSize), log)
	log.WithFields(logrus.Fields{"uri": cfg.URI, "database": cfg.Database}).Info("connected to Neo4j")
	return n, nil
}

func (n *Neo4jBackend) write(ctx context.Context, cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, n.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database),
		neo4j.ExecuteQueryWithWritersRouting())
	return err
}

func (n *Neo4jBackend) EnsureSchema(ctx context.Context) error {
	for _, label := range []string{LabelContributor, LabelOrganization} {
		cypher, err := BuildUniqueConstraint(label)
		if err != nil {
			return err
		}
		if err := n.write(ctx, cypher, nil); err != nil {
			return errors.StorageErrorf(err, "failed to create %s constraint", label)
		}
	}
	return nil
}

func (n *Neo4jBackend) CreateNodes(ctx context.Context, label string, nodes []GraphNode) error {
	if err := n.batches.WriteNodes(ctx, label, nodes); err != nil {
		return errors.StorageErrorf(err, "failed to write %s nodes", label)
	}
	return nil
}

func (n *Neo4jBackend) CreateEdges(ctx context.Context, edgeType EdgeType, edges []GraphEdge) error {
	if err := n.batches.WriteEdges(ctx, edgeType, edges); err != nil {
		return errors.StorageErrorf(err, "failed to write %s edges", edgeType.Label)
	}
	return nil
}

// Query routes to readers in a cluster.
func (n *Neo4jBackend) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	result, err := neo4j.ExecuteQuery(ctx, n.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	rows := make([]map[string]any, 0, len(result.Records))
	for _, rec := range result.Records {
		rows = append(rows, rec.AsMap())
	}
	return rows, nil
}

func (n *Neo4jBackend) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}
