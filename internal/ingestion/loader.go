// Package ingestion loads harvested organization documents and folds them
// into an accumulated contributor graph.
package ingestion

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/graph"
	"github.com/rohankatakam/collabgraph/internal/models"
)

// Loader reads every *.json document in a directory into one graph.
type Loader struct {
	opts    graph.Options
	workers int
	logger  *logrus.Entry
}

// LoadResult contains the accumulated graph and what it took to build it.
type LoadResult struct {
	Graph       *models.Graph
	Files       int
	FailedFiles []string
	Stats       graph.AccumulateStats
	Duration    time.Duration
}

func NewLoader(opts graph.Options, workers int, logger *logrus.Entry) *Loader {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Loader{opts: opts, workers: workers, logger: logger}
}

// document keeps repositories raw so one malformed entry does not reject
// the whole file.
type document struct {
	Organization string            `json:"organization"`
	Group        string            `json:"group"`
	Repositories []json.RawMessage `json:"repositories"`
}

// ListInputFiles returns the sorted *.json files directly under dir.
func ListInputFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "input directory %s not found", dir)
	}
	if !info.IsDir() {
		return nil, errors.FileSystemErrorf(nil, "input path %s is not a directory", dir)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to list %s", dir)
	}
	if len(files) == 0 {
		return nil, errors.FileSystemErrorf(nil, "no .json files in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

// LoadDir accumulates every document in dir. Files are decoded in parallel,
// each into its own accumulator, and reduced in sorted file order so the
// result does not depend on scheduling. A file that is not valid JSON is
// logged and skipped; the stage fails only when no file could be read.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*LoadResult, error) {
	start := time.Now()
	files, err := ListInputFiles(dir)
	if err != nil {
		return nil, err
	}
	l.logger.WithFields(logrus.Fields{"dir": dir, "files": len(files), "workers": l.workers}).Info("Starting graph accumulation")

	partials := make([]*graph.Accumulator, len(files))
	failed := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			acc := graph.NewAccumulator(l.opts, l.logger.WithField("file", filepath.Base(path)))
			if err := loadFile(path, acc); err != nil {
				failed[i] = err
				return nil
			}
			partials[i] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &LoadResult{Files: len(files)}
	total := graph.NewAccumulator(l.opts, l.logger)
	for i, acc := range partials {
		if failed[i] != nil {
			result.FailedFiles = append(result.FailedFiles, files[i])
			l.logger.WithError(failed[i]).WithField("file", files[i]).Error("skipping unreadable document")
			continue
		}
		total.Merge(acc)
	}
	if len(result.FailedFiles) == len(files) {
		return nil, errors.InputErrorf(nil, "none of the %d documents in %s could be read", len(files), dir)
	}

	result.Graph = total.Graph()
	result.Stats = total.Stats()
	result.Duration = time.Since(start)

	s := result.Graph.Stats()
	l.logger.WithFields(logrus.Fields{
		"duration":     result.Duration.String(),
		"repositories": result.Stats.Repositories,
		"skipped":      result.Stats.SkippedRepositories,
		"nodes":        s.Nodes,
		"links":        s.Links,
		"interactions": s.Interactions,
	}).Info("Graph accumulation completed")
	return result, nil
}

func loadFile(path string, acc *graph.Accumulator) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.FileSystemErrorf(err, "failed to read %s", path)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.InputErrorf(err, "invalid JSON in %s", path)
	}

	org := models.OrgNameOf(doc.Organization, doc.Group)
	for _, entry := range doc.Repositories {
		var repo models.Repository
		if err := json.Unmarshal(entry, &repo); err != nil {
			acc.SkipRepository(org, err.Error())
			continue
		}
		acc.AddRepository(org, repo)
	}
	return nil
}
