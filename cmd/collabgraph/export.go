package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/graphdb"
	"github.com/rohankatakam/collabgraph/internal/logging"
	"github.com/rohankatakam/collabgraph/internal/models"
	"github.com/rohankatakam/collabgraph/internal/parquet"
	"github.com/rohankatakam/collabgraph/internal/storage"
	"github.com/rohankatakam/collabgraph/internal/validation"
)

var (
	exportFormat string
	exportStage  string
	exportFile   string
	exportDir    string
	exportVerify bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored graph to Neo4j or Parquet",
	Long: `Exports a stage to a Neo4j database (contributors, organizations,
collaboration links and one relationship per interaction type) or to Parquet
tables of nodes, links and interactions.

Examples:
  collabgraph export --format neo4j
  collabgraph export --format neo4j --verify
  collabgraph export --format parquet --out export/ --stage merged`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "neo4j", "neo4j or parquet")
	exportCmd.Flags().StringVarP(&exportStage, "stage", "s", string(storage.StageAnnotated), "accumulated, merged or annotated")
	exportCmd.Flags().StringVar(&exportFile, "file", "", "read a graph document instead of the store")
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "export", "parquet output directory")
	exportCmd.Flags().BoolVar(&exportVerify, "verify", false, "count what landed in Neo4j after exporting")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "neo4j" && exportFormat != "parquet" {
		return errors.ValidationErrorf("unknown format %q, want neo4j or parquet", exportFormat)
	}
	if exportFormat == "neo4j" {
		if err := checkConfig(config.ValidationContextNeo4j); err != nil {
			return err
		}
	}

	label, g, err := loadStageGraph(cmd, exportStage, exportFile)
	if err != nil {
		return err
	}

	switch exportFormat {
	case "parquet":
		stats, err := parquet.WriteGraph(g, exportDir, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("%s: wrote %d nodes, %d links, %d interactions to %s\n",
			label, stats.Nodes, stats.Links, stats.Interactions, exportDir)
	case "neo4j":
		ctx := cmd.Context()
		log := logging.Component("neo4j")
		backend, err := graphdb.NewNeo4jBackend(ctx, cfg.Neo4j, log)
		if err != nil {
			return err
		}
		defer backend.Close(ctx)

		stats, err := graphdb.Export(ctx, backend, g, log)
		if err != nil {
			return err
		}
		fmt.Printf("%s: exported %d contributors, %d organizations, %d links, %d interaction edges\n",
			label, stats.Contributors, stats.Organizations, stats.Links, stats.Interactions)

		if exportVerify {
			return verifyExport(cmd, backend, g)
		}
	}
	return nil
}

func verifyExport(cmd *cobra.Command, backend graphdb.Backend, g *models.Graph) error {
	results, err := validation.NewConsistencyValidator(backend, logging.Component("validation")).
		ValidateExport(cmd.Context(), g)
	if err != nil {
		return err
	}
	for _, r := range results {
		status := "ok"
		if !r.PassedThreshold {
			status = "MISSING"
		}
		fmt.Printf("  %-20s expected %6d  found %6d  %6.1f%%  %s\n",
			r.EntityType, r.ExpectedCount, r.Neo4jCount, r.CoveragePercent, status)
	}
	if !validation.AllPassed(results) {
		return errors.StorageError(nil, "export verification failed: some rows did not reach Neo4j")
	}
	return nil
}
