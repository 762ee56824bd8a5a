package validation

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/collabgraph/internal/graphdb"
	"github.com/rohankatakam/collabgraph/internal/logging"
	"github.com/rohankatakam/collabgraph/internal/models"
)

func sampleGraph() *models.Graph {
	return &models.Graph{
		Nodes: []models.Node{
			{ID: "alice", Group: "Data", Val: 2.2, Sources: []string{"acme", "initech"}},
			{ID: "bob", Group: "Data", Val: 1.2, Sources: []string{"acme"}},
		},
		Links: []models.Link{
			{Source: "alice", Target: "bob", Value: 2.5, SharedRepos: []string{"api"},
				Interactions: []models.Interaction{{Actor: "bob", Target: "alice", Type: models.InteractionMergedPR, Repo: "api"}}},
		},
	}
}

func TestCheckGraph(t *testing.T) {
	assert.Empty(t, CheckGraph(sampleGraph()))
	assert.Empty(t, CheckGraph(&models.Graph{}))

	bad := &models.Graph{
		Nodes: []models.Node{{ID: "a", Val: 1}, {ID: "a", Val: 1}, {ID: "b", Val: -1}},
		Links: []models.Link{
			{Source: "a", Target: "a", Value: 1},
			{Source: "b", Target: "a", Value: 1},
			{Source: "a", Target: "b", Value: 1},
			{Source: "a", Target: "ghost", Value: -2},
		},
	}
	kinds := map[string]int{}
	for _, v := range CheckGraph(bad) {
		kinds[v.Kind]++
	}
	assert.Equal(t, map[string]int{
		KindDuplicateNode: 1,
		KindSelfLoop:      1,
		KindNonCanonical:  1,
		KindDuplicateLink: 1,
		KindDangling:      1,
		KindNegative:      2,
	}, kinds)
}

type countingBackend struct {
	counts map[string]int64
	err    error
}

func (c *countingBackend) EnsureSchema(ctx context.Context) error { return nil }
func (c *countingBackend) CreateNodes(ctx context.Context, label string, nodes []graphdb.GraphNode) error {
	return nil
}
func (c *countingBackend) CreateEdges(ctx context.Context, edgeType graphdb.EdgeType, edges []graphdb.GraphEdge) error {
	return nil
}
func (c *countingBackend) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	if c.err != nil {
		return nil, c.err
	}
	return []map[string]any{{"count": c.counts[cypher]}}, nil
}
func (c *countingBackend) Close(ctx context.Context) error { return nil }

func countQuery(t *testing.T, label string) string {
	t.Helper()
	var q string
	var err error
	switch label {
	case graphdb.LabelContributor, graphdb.LabelOrganization:
		q, err = graphdb.BuildCountNodes(label)
	case graphdb.EdgeMemberOf.Label:
		q, err = graphdb.BuildCountEdges(graphdb.EdgeMemberOf)
	case graphdb.EdgeCollaboratesWith.Label:
		q, err = graphdb.BuildCountEdges(graphdb.EdgeCollaboratesWith)
	default:
		q, err = graphdb.BuildCountEdges(graphdb.InteractionEdge(label))
	}
	require.NoError(t, err)
	return q
}

func TestValidateExport(t *testing.T) {
	backend := &countingBackend{counts: map[string]int64{
		countQuery(t, graphdb.LabelContributor):          5,
		countQuery(t, graphdb.LabelOrganization):         2,
		countQuery(t, "MEMBER_OF"):                       3,
		countQuery(t, "COLLABORATES_WITH"):               0,
		countQuery(t, string(models.InteractionMergedPR)): 1,
	}}
	v := NewConsistencyValidator(backend, logrus.NewEntry(logging.Discard()))

	results, err := v.ValidateExport(context.Background(), sampleGraph())
	require.NoError(t, err)
	require.Len(t, results, 5)

	byEntity := map[string]ValidationResult{}
	for _, r := range results {
		byEntity[r.EntityType] = r
	}
	assert.True(t, byEntity["Contributor"].PassedThreshold, "leftover rows from earlier exports are fine")
	assert.Equal(t, int64(2), byEntity["Contributor"].ExpectedCount)
	assert.True(t, byEntity["MERGED_PR"].PassedThreshold)
	assert.False(t, byEntity["COLLABORATES_WITH"].PassedThreshold)
	assert.Zero(t, byEntity["COLLABORATES_WITH"].CoveragePercent)
	assert.False(t, AllPassed(results))
}

func TestValidateExport_QueryError(t *testing.T) {
	v := NewConsistencyValidator(&countingBackend{err: fmt.Errorf("connection refused")}, nil)
	_, err := v.ValidateExport(context.Background(), sampleGraph())
	assert.Error(t, err)
}
