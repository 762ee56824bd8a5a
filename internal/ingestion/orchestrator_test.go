package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/graph"
	"github.com/rohankatakam/collabgraph/internal/logging"
	"github.com/rohankatakam/collabgraph/internal/models"
	"github.com/rohankatakam/collabgraph/internal/storage"
)

func testOrchestrator(t *testing.T) (*Orchestrator, storage.GraphStore, *config.Config) {
	t.Helper()
	log := logrus.NewEntry(logging.Discard())
	work := t.TempDir()

	cfg := config.Default()
	cfg.Pipeline.InputDir = writeDocs(t, map[string]string{"github_acme.json": acmeDoc, "gitlab_initech.json": gitlabDoc})
	cfg.Identity.RosterFile = filepath.Join(work, "roster.txt")
	cfg.Annotation.File = filepath.Join(work, "annotations.yaml")
	require.NoError(t, os.WriteFile(cfg.Identity.RosterFile, []byte("alice\nbob\n"), 0o644))
	require.NoError(t, os.WriteFile(cfg.Annotation.File, []byte(`
categories:
  alice: Dados
manual_nodes:
  - id: zoe
    group: Product
`), 0o644))

	store, err := storage.NewFileStore(filepath.Join(work, "out"), log)
	require.NoError(t, err)
	return NewOrchestrator(store, log, cfg), store, cfg
}

func findNode(t *testing.T, g *models.Graph, id string) models.Node {
	t.Helper()
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("node %q not found", id)
	return models.Node{}
}

func TestOrchestrator_Run(t *testing.T) {
	o, store, _ := testOrchestrator(t)
	ctx := context.Background()

	result, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Build.Files)
	assert.Equal(t, 2, result.Merge.Stats.NodesOut)
	assert.Equal(t, 1, result.Annotate.Stats.InjectedNodes)

	for _, st := range storage.Stages {
		_, err := store.LoadGraph(ctx, st)
		require.NoError(t, err, "stage %s stored", st)
	}

	annotated, err := store.LoadGraph(ctx, storage.StageAnnotated)
	require.NoError(t, err)
	assert.Len(t, annotated.Nodes, 3)
	assert.Equal(t, "Data", findNode(t, annotated, "alice").Group)
	assert.Equal(t, graph.DefaultCategory, findNode(t, annotated, "bob").Group)
	assert.Equal(t, "Product", findNode(t, annotated, "zoe").Group)

	require.NotEmpty(t, annotated.Links)
	assert.Equal(t, models.Key("alice", "bob"), annotated.Links[0].Key())
}

func TestOrchestrator_StagesInOrder(t *testing.T) {
	o, _, _ := testOrchestrator(t)
	ctx := context.Background()

	_, err := o.Merge(ctx)
	require.Error(t, err, "merge needs an accumulated graph")
	assert.True(t, errors.IsType(err, errors.ErrorTypeStorage))

	_, err = o.Build(ctx)
	require.NoError(t, err)
	_, err = o.Merge(ctx)
	require.NoError(t, err)
	_, err = o.Annotate(ctx)
	require.NoError(t, err)
}

func TestOrchestrator_MergeNeedsRoster(t *testing.T) {
	o, _, cfg := testOrchestrator(t)
	cfg.Identity.RosterFile = ""

	_, err := o.Build(context.Background())
	require.NoError(t, err)
	_, err = o.Merge(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestOrchestrator_AnnotateWithoutFile(t *testing.T) {
	o, _, cfg := testOrchestrator(t)
	cfg.Annotation.File = ""

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	for _, n := range result.Annotate.Graph.Nodes {
		assert.Equal(t, graph.DefaultCategory, n.Group)
	}
}

func TestOrchestrator_RejectsBrokenGraph(t *testing.T) {
	o, store, _ := testOrchestrator(t)
	broken := &models.Graph{
		Nodes: []models.Node{{ID: "alice", Val: 1}},
		Links: []models.Link{{Source: "alice", Target: "ghost", Value: 1}},
	}

	err := o.save(context.Background(), storage.StageMerged, broken)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))

	_, err = store.LoadGraph(context.Background(), storage.StageMerged)
	assert.Error(t, err, "nothing is written")
}

func TestOrchestrator_MergeWarnsOnRosterConflicts(t *testing.T) {
	o, _, cfg := testOrchestrator(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(cfg.Identity.RosterFile, []byte("alice,shared\nbob,shared\n"), 0o644))

	logger, hook := logtest.NewNullLogger()
	o.logger = logrus.NewEntry(logger)

	_, err := o.Build(ctx)
	require.NoError(t, err)
	_, err = o.Merge(ctx)
	require.NoError(t, err)

	var warned []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["alias"] == "shared" {
			warned = append(warned, e)
		}
	}
	require.Len(t, warned, 1)
	assert.Equal(t, "alice", warned[0].Data["previous"])
	assert.Equal(t, "bob", warned[0].Data["master"])
	assert.Equal(t, 2, warned[0].Data["line"])
}
