// Package parquet exports graphs as Parquet tables using
// github.com/parquet-go/parquet-go.
package parquet

import (
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/models"
)

// File names written by WriteGraph.
const (
	NodesFile        = "nodes.parquet"
	LinksFile        = "links.parquet"
	InteractionsFile = "interactions.parquet"
)

// NodeRow is one contributor.
type NodeRow struct {
	ID         string    `parquet:"id,snappy"`
	Group      string    `parquet:"group,snappy,dict"`
	Weight     float64   `parquet:"weight,snappy"`
	Img        *string   `parquet:"img,optional,snappy"`
	Sources    []string  `parquet:"sources,list"`
	ExportedAt time.Time `parquet:"exported_at,snappy"`
}

// LinkRow is one collaboration edge.
type LinkRow struct {
	Source           string   `parquet:"source,snappy"`
	Target           string   `parquet:"target,snappy"`
	Value            float64  `parquet:"value,snappy"`
	SharedRepos      []string `parquet:"shared_repos,list"`
	InteractionCount int32    `parquet:"interaction_count,snappy"`
}

// InteractionRow is one directed event, keyed by the link it sits on.
type InteractionRow struct {
	LinkSource string `parquet:"link_source,snappy"`
	LinkTarget string `parquet:"link_target,snappy"`
	Actor      string `parquet:"actor,snappy"`
	Target     string `parquet:"target,snappy"`
	Type       string `parquet:"type,snappy,dict"`
	Repo       string `parquet:"repo,snappy,dict"`
}

// ExportStats counts the rows written per table.
type ExportStats struct {
	Nodes        int
	Links        int
	Interactions int
}

// Rows flattens g into table rows.
func Rows(g *models.Graph, exportedAt time.Time) ([]NodeRow, []LinkRow, []InteractionRow) {
	nodes := make([]NodeRow, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		row := NodeRow{
			ID:         n.ID,
			Group:      n.Group,
			Weight:     n.Val,
			Sources:    n.Sources,
			ExportedAt: exportedAt.UTC(),
		}
		if n.Img != "" {
			img := n.Img
			row.Img = &img
		}
		nodes = append(nodes, row)
	}

	links := make([]LinkRow, 0, len(g.Links))
	var interactions []InteractionRow
	for _, l := range g.Links {
		links = append(links, LinkRow{
			Source:           l.Source,
			Target:           l.Target,
			Value:            l.Value,
			SharedRepos:      l.SharedRepos,
			InteractionCount: int32(len(l.Interactions)),
		})
		for _, in := range l.Interactions {
			interactions = append(interactions, InteractionRow{
				LinkSource: l.Source,
				LinkTarget: l.Target,
				Actor:      in.Actor,
				Target:     in.Target,
				Type:       string(in.Type),
				Repo:       in.Repo,
			})
		}
	}
	return nodes, links, interactions
}

// WriteGraph writes the three tables of g into dir.
func WriteGraph(g *models.Graph, dir string, exportedAt time.Time) (ExportStats, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ExportStats{}, errors.FileSystemErrorf(err, "create export directory %s", dir)
	}
	nodes, links, interactions := Rows(g, exportedAt)
	if err := WriteRows(filepath.Join(dir, NodesFile), nodes); err != nil {
		return ExportStats{}, err
	}
	if err := WriteRows(filepath.Join(dir, LinksFile), links); err != nil {
		return ExportStats{}, err
	}
	if err := WriteRows(filepath.Join(dir, InteractionsFile), interactions); err != nil {
		return ExportStats{}, err
	}
	return ExportStats{Nodes: len(nodes), Links: len(links), Interactions: len(interactions)}, nil
}

// WriteRows writes rows to a Parquet file at path, schema inferred from T.
func WriteRows[T any](path string, rows []T) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.FileSystemErrorf(err, "create %s", path)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return errors.FileSystemErrorf(err, "write %s", path)
	}
	// the footer is written on close
	if err := writer.Close(); err != nil {
		return errors.FileSystemErrorf(err, "finalize %s", path)
	}
	return file.Close()
}

// ReadRows reads every row of a Parquet file written by WriteRows.
func ReadRows[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "read %s", path)
	}
	return rows, nil
}
