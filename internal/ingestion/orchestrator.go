package ingestion

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/graph"
	"github.com/rohankatakam/collabgraph/internal/identity"
	"github.com/rohankatakam/collabgraph/internal/models"
	"github.com/rohankatakam/collabgraph/internal/storage"
	"github.com/rohankatakam/collabgraph/internal/validation"
)

// Orchestrator runs the pipeline stages and hands graphs between them
// through a GraphStore.
type Orchestrator struct {
	store  storage.GraphStore
	logger *logrus.Entry
	config *config.Config
}

// NewOrchestrator creates a new pipeline orchestrator
func NewOrchestrator(store storage.GraphStore, logger *logrus.Entry, cfg *config.Config) *Orchestrator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{store: store, logger: logger, config: cfg}
}

// MergeResult reports the merge stage.
type MergeResult struct {
	Graph    *models.Graph
	Stats    graph.ReconcileStats
	Duration time.Duration
}

// AnnotateResult reports the annotate stage.
type AnnotateResult struct {
	Graph    *models.Graph
	Stats    graph.AnnotateStats
	Duration time.Duration
}

// RunResult reports a full build, merge and annotate pass.
type RunResult struct {
	Build    *LoadResult
	Merge    *MergeResult
	Annotate *AnnotateResult
	Duration time.Duration
}

// Build accumulates every document in the input directory and stores the
// result as the accumulated stage.
func (o *Orchestrator) Build(ctx context.Context) (*LoadResult, error) {
	loader := NewLoader(graph.OptionsFromConfig(o.config), o.config.Pipeline.Workers, o.logger)
	result, err := loader.LoadDir(ctx, o.config.Pipeline.InputDir)
	if err != nil {
		return nil, err
	}
	if err := o.save(ctx, storage.StageAccumulated, result.Graph); err != nil {
		return nil, err
	}
	o.logger.WithFields(logrus.Fields{
		"files":        result.Files,
		"failed_files": len(result.FailedFiles),
		"repositories": result.Stats.Repositories,
		"nodes":        len(result.Graph.Nodes),
		"links":        len(result.Graph.Links),
		"duration":     result.Duration.String(),
	}).Info("Build completed")
	return result, nil
}

// Merge folds aliases in the accumulated graph onto the roster and stores
// the merged stage.
func (o *Orchestrator) Merge(ctx context.Context) (*MergeResult, error) {
	start := time.Now()
	if o.config.Identity.RosterFile == "" {
		return nil, errors.ConfigError("identity.roster_file is required for merging aliases")
	}
	roster, err := identity.LoadRoster(o.config.Identity.RosterFile)
	if err != nil {
		return nil, err
	}
	for _, c := range roster.Conflicts {
		o.logger.WithFields(logrus.Fields{
			"alias":    c.Alias,
			"previous": c.Previous,
			"master":   c.Master,
			"line":     c.Line,
		}).Warn("roster alias claimed by two masters, later line wins")
	}
	in, err := o.store.LoadGraph(ctx, storage.StageAccumulated)
	if err != nil {
		return nil, err
	}

	out, stats := graph.Reconcile(in, roster, o.logger)
	if err := o.save(ctx, storage.StageMerged, out); err != nil {
		return nil, err
	}
	result := &MergeResult{Graph: out, Stats: stats, Duration: time.Since(start)}
	o.logger.WithFields(logrus.Fields{
		"nodes_in":       stats.NodesIn,
		"nodes_out":      stats.NodesOut,
		"merged_aliases": stats.MergedAliases,
		"links_out":      stats.LinksOut,
		"duration":       result.Duration.String(),
	}).Info("Merge completed")
	return result, nil
}

// Annotate categorizes the merged graph, adds manual people and links, and
// stores the annotated stage.
func (o *Orchestrator) Annotate(ctx context.Context) (*AnnotateResult, error) {
	start := time.Now()
	cfg := graph.DefaultAnnotationConfig()
	if path := o.config.Annotation.File; path != "" {
		var err error
		if cfg, err = graph.LoadAnnotationConfig(path); err != nil {
			return nil, err
		}
	} else {
		o.logger.Warn("no annotation.file configured, every node gets the default category")
	}
	in, err := o.store.LoadGraph(ctx, storage.StageMerged)
	if err != nil {
		return nil, err
	}

	annotator := graph.NewAnnotator(cfg, graph.WeightsFromConfig(o.config.Weights), o.logger)
	out, stats := annotator.Annotate(in)
	if err := o.save(ctx, storage.StageAnnotated, out); err != nil {
		return nil, err
	}
	result := &AnnotateResult{Graph: out, Stats: stats, Duration: time.Since(start)}
	o.logger.WithFields(logrus.Fields{
		"injected":     stats.InjectedNodes,
		"groups":       len(stats.GroupSizes),
		"clique_links": stats.CliqueLinks,
		"rule_links":   stats.RuleLinks,
		"duration":     result.Duration.String(),
	}).Info("Annotate completed")
	return result, nil
}

// save refuses to store a graph that breaks the document rules, so a later
// stage never starts from a corrupt input.
func (o *Orchestrator) save(ctx context.Context, stage storage.Stage, g *models.Graph) error {
	if violations := validation.CheckGraph(g); len(violations) > 0 {
		for _, v := range violations {
			o.logger.WithField("stage", stage).Error(v.String())
		}
		return errors.InternalErrorf("%s graph has %d structural violations, first: %s",
			stage, len(violations), violations[0])
	}
	return o.store.SaveGraph(ctx, stage, g)
}

// Run executes build, merge and annotate in order, stopping at the first
// failing stage.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{}
	var err error
	if result.Build, err = o.Build(ctx); err != nil {
		return result, err
	}
	if result.Merge, err = o.Merge(ctx); err != nil {
		return result, err
	}
	if result.Annotate, err = o.Annotate(ctx); err != nil {
		return result, err
	}
	result.Duration = time.Since(start)
	return result, nil
}
