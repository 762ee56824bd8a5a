package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/models"
)

// stageFiles are the document names the force-graph front end loads.
var stageFiles = map[Stage]string{
	StageAccumulated: "graph_interactions.json",
	StageMerged:      "graph_interactions_merged.json",
	StageAnnotated:   "graph_interactions_categorized.json",
}

// FileStore keeps each stage as a JSON document in one directory.
type FileStore struct {
	dir    string
	logger *logrus.Entry
}

func NewFileStore(dir string, logger *logrus.Entry) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.FileSystemErrorf(err, "create output directory %s", dir)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Path is where stage is written.
func (s *FileStore) Path(stage Stage) string {
	return filepath.Join(s.dir, stageFiles[stage])
}

func (s *FileStore) SaveGraph(ctx context.Context, stage Stage, g *models.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(stage)
	if err := WriteGraphFile(path, g); err != nil {
		return err
	}
	st := g.Stats()
	s.logger.WithFields(logrus.Fields{"stage": stage, "path": path, "nodes": st.Nodes, "links": st.Links}).Info("saved graph")
	return nil
}

func (s *FileStore) LoadGraph(ctx context.Context, stage Stage) (*models.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(stage)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, notFound(stage, path)
	}
	return ReadGraphFile(path)
}

func (s *FileStore) Close() error { return nil }

// WriteGraphFile writes g as indented JSON.
func WriteGraphFile(path string, g *models.Graph) error {
	return WriteJSONFile(path, g)
}

// WriteJSONFile writes v as indented JSON through a temp file and rename,
// so readers never observe a partial document.
func WriteJSONFile(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.InternalErrorf("encode %s: %v", filepath.Base(path), err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.FileSystemErrorf(err, "create directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.FileSystemErrorf(err, "create temp file in %s", dir)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		tmp.Close()
		return errors.FileSystemErrorf(err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.FileSystemErrorf(err, "write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.FileSystemErrorf(err, "replace %s", path)
	}
	return nil
}

// ReadGraphFile decodes a graph document. Link endpoints may be plain ids
// or objects carrying an id.
func ReadGraphFile(path string) (*models.Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "read %s", path)
	}
	var g models.Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, errors.InputErrorf(err, "invalid graph document %s", path)
	}
	return &g, nil
}
