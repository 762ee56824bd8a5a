package graphdb

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// queryRunner executes one write query.
type queryRunner func(ctx context.Context, cypher string, params map[string]any) error

// BatchWriter sends node and edge rows in UNWIND batches.
type BatchWriter struct {
	run    queryRunner
	config BatchConfig
	log    *logrus.Entry
}

func newBatchWriter(run queryRunner, config BatchConfig, log *logrus.Entry) *BatchWriter {
	return &BatchWriter{run: run, config: config, log: log}
}

// WriteNodes upserts nodes under label.
func (b *BatchWriter) WriteNodes(ctx context.Context, label string, nodes []GraphNode) error {
	if len(nodes) == 0 {
		return nil
	}
	cypher, err := BuildUnwindNodes(label)
	if err != nil {
		return err
	}
	rows := make([]map[string]any, len(nodes))
	for i, n := range nodes {
		rows[i] = map[string]any{"id": n.ID, "props": props(n.Properties)}
	}
	return b.write(ctx, label, cypher, rows, b.config.NodeBatchSize)
}

// WriteEdges upserts edges of one type.
func (b *BatchWriter) WriteEdges(ctx context.Context, edgeType EdgeType, edges []GraphEdge) error {
	if len(edges) == 0 {
		return nil
	}
	cypher, err := BuildUnwindEdges(edgeType)
	if err != nil {
		return err
	}
	rows := make([]map[string]any, len(edges))
	for i, e := range edges {
		rows[i] = map[string]any{"from": e.From, "to": e.To, "props": props(e.Properties)}
	}
	return b.write(ctx, edgeType.Label, cypher, rows, b.config.EdgeBatchSize)
}

func (b *BatchWriter) write(ctx context.Context, what, cypher string, rows []map[string]any, size int) error {
	for _, w := range chunks(len(rows), size) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.run(ctx, cypher, map[string]any{"rows": rows[w[0]:w[1]]}); err != nil {
			return fmt.Errorf("batch %s write failed (rows %d-%d): %w", what, w[0], w[1], err)
		}
		b.log.WithFields(logrus.Fields{"kind": what, "from": w[0], "to": w[1]}).Debug("wrote batch")
	}
	return nil
}

func props(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}
