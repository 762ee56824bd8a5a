package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/ingestion"
	"github.com/rohankatakam/collabgraph/internal/logging"
	"github.com/rohankatakam/collabgraph/internal/models"
	"github.com/rohankatakam/collabgraph/internal/output"
	"github.com/rohankatakam/collabgraph/internal/storage"
)

var (
	inputDir string
	workers  int
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Accumulate harvested documents into a collaboration graph",
	Long: `Reads every *.json organization document in the input directory and
builds the accumulated graph: one node per contributor, one weighted link per
pair of people who shared a repository or interacted directly.

Examples:
  collabgraph build
  collabgraph build --input data/ --workers 8`,
	RunE: runBuild,
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Fold aliases onto the roster and drop everyone not on it",
	RunE:  runMerge,
}

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Assign groups, add manual people and team links",
	RunE:  runAnnotate,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run build, merge and annotate",
	RunE:  runAll,
}

func init() {
	for _, cmd := range []*cobra.Command{buildCmd, runCmd} {
		cmd.Flags().StringVarP(&inputDir, "input", "i", "", "directory of organization documents (default: pipeline.input_dir)")
		cmd.Flags().IntVarP(&workers, "workers", "w", 0, "documents parsed in parallel (default: pipeline.workers)")
	}
}

func applyPipelineFlags() {
	if inputDir != "" {
		cfg.Pipeline.InputDir = inputDir
	}
	if workers > 0 {
		cfg.Pipeline.Workers = workers
	}
}

func newOrchestrator() (*ingestion.Orchestrator, storage.GraphStore, error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	return ingestion.NewOrchestrator(store, logging.Component("pipeline"), cfg), store, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	applyPipelineFlags()
	if err := checkConfig(config.ValidationContextBuild); err != nil {
		return err
	}
	o, store, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := o.Build(cmd.Context())
	if err != nil {
		return err
	}
	for _, f := range result.FailedFiles {
		fmt.Fprintf(os.Stderr, "skipped unreadable document %s\n", f)
	}
	return summarize(string(storage.StageAccumulated), result.Graph)
}

func runMerge(cmd *cobra.Command, args []string) error {
	if err := checkConfig(config.ValidationContextMerge); err != nil {
		return err
	}
	o, store, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := o.Merge(cmd.Context())
	if err != nil {
		return err
	}
	return summarize(string(storage.StageMerged), result.Graph)
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	if err := checkConfig(config.ValidationContextAnnotate); err != nil {
		return err
	}
	o, store, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := o.Annotate(cmd.Context())
	if err != nil {
		return err
	}
	return summarize(string(storage.StageAnnotated), result.Graph)
}

func runAll(cmd *cobra.Command, args []string) error {
	applyPipelineFlags()
	if err := checkConfig(config.ValidationContextBuild, config.ValidationContextMerge); err != nil {
		return err
	}
	o, store, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := o.Run(cmd.Context())
	if err != nil {
		return err
	}
	logger.WithField("duration", result.Duration.String()).Info("Pipeline completed")
	return summarize(string(storage.StageAnnotated), result.Annotate.Graph)
}

// summarize prints the one-line stage summary to stdout.
func summarize(stage string, g *models.Graph) error {
	fmt.Printf("%s: ", stage)
	return output.NewFormatter(output.VerbosityQuiet, false).Format(output.BuildReport(stage, g, 0), os.Stdout)
}
