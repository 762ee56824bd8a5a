// Package storage hands graphs between pipeline stages. Each stage writes
// its output under a stage name and the next stage reads it back.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/collabgraph/internal/config"
	cgerrors "github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/models"
)

// ErrNotFound is wrapped by LoadGraph when a stage has no saved graph.
var ErrNotFound = errors.New("not found")

// Stage names a pipeline output.
type Stage string

const (
	StageAccumulated Stage = "accumulated"
	StageMerged      Stage = "merged"
	StageAnnotated   Stage = "annotated"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageAccumulated, StageMerged, StageAnnotated}

// ParseStage accepts a stage name.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", cgerrors.ValidationErrorf("unknown stage %q (want accumulated, merged or annotated)", s)
}

// GraphStore persists one graph per stage. Saving a stage replaces what the
// next LoadGraph of that stage returns.
type GraphStore interface {
	SaveGraph(ctx context.Context, stage Stage, g *models.Graph) error
	LoadGraph(ctx context.Context, stage Stage) (*models.Graph, error)
	Close() error
}

// Open returns the store selected by cfg.Type.
func Open(cfg config.StorageConfig, logger *logrus.Entry) (GraphStore, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	switch cfg.Type {
	case "", "json":
		return NewFileStore(cfg.Dir, logger)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath, logger)
	case "postgres":
		return NewPostgresStore(cfg.PostgresDSN, logger)
	default:
		return nil, cgerrors.ConfigErrorf("unsupported storage type %q", cfg.Type)
	}
}

func notFound(stage Stage, where string) error {
	return cgerrors.StorageErrorf(fmt.Errorf("%s graph: %w", stage, ErrNotFound), "no %s graph in %s", stage, where)
}
