package graph

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/collabgraph/internal/identity"
	"github.com/rohankatakam/collabgraph/internal/models"
)

func testRoster(t *testing.T) *identity.AliasMap {
	t.Helper()
	m, err := identity.ParseRoster(strings.NewReader(`
maria,maria-dev,Maria.Silva
joao,jsouza
pedro
`))
	require.NoError(t, err)
	return m
}

func TestReconcile_FoldsAliases(t *testing.T) {
	in := &models.Graph{
		Nodes: []models.Node{
			{ID: "maria-dev", Group: "user", Val: 1.4, Sources: []string{"acme"}},
			{ID: "maria.silva", Group: "user", Val: 1.2, Sources: []string{"initech"}},
			{ID: "jsouza", Group: "user", Val: 1.2, Sources: []string{"acme"}},
			{ID: "outsider", Group: "user", Val: 3, Sources: []string{"acme"}},
		},
		Links: []models.Link{
			{Source: "jsouza", Target: "maria-dev", Value: 2.5, SharedRepos: []string{"api"},
				Interactions: []models.Interaction{{Actor: "jsouza", Target: "maria-dev", Type: models.InteractionMergedPR, Repo: "api"}}},
			{Source: "jsouza", Target: "maria.silva", Value: 0.5, SharedRepos: []string{"web"},
				Interactions: []models.Interaction{{Actor: "maria.silva", Target: "jsouza", Type: models.InteractionClosedIssue, Repo: "web"}}},
			{Source: "maria-dev", Target: "maria.silva", Value: 0.5, SharedRepos: []string{"web"}},
			{Source: "maria-dev", Target: "outsider", Value: 4, SharedRepos: []string{"api"}},
		},
	}

	out, stats := Reconcile(in, testRoster(t), quietLog())

	require.Len(t, out.Nodes, 2)
	maria := findNode(t, out, "maria")
	assert.Equal(t, 2.6, maria.Val, "merged weight is the sum of the aliases")
	assert.Equal(t, []string{"acme", "initech"}, maria.Sources)
	assert.Equal(t, 1.2, findNode(t, out, "joao").Val)

	require.Len(t, out.Links, 1)
	l := out.Links[0]
	assert.Equal(t, "joao", l.Source)
	assert.Equal(t, "maria", l.Target)
	assert.Equal(t, 3.0, l.Value)
	assert.Equal(t, []string{"api", "web"}, l.SharedRepos)
	require.Len(t, l.Interactions, 2)
	assert.Equal(t, "jsouza", l.Interactions[0].Actor, "interactions keep raw handles")
	assert.Equal(t, "maria.silva", l.Interactions[1].Actor)

	assert.Equal(t, ReconcileStats{
		NodesIn: 4, NodesOut: 2, DroppedNodes: 1, MergedAliases: 1,
		LinksIn: 4, LinksOut: 1, DroppedLinks: 1, SelfLinks: 1, UnseenMasters: 1,
	}, stats)
}

func TestReconcile_Invariants(t *testing.T) {
	acc := newTestAccumulator(t)
	for _, r := range scenarioRepos() {
		acc.AddRepository("acme", r)
	}
	in := acc.Graph()

	roster := identity.NewAliasMap()
	roster.Add("team-a", "alice", "bob", "carol")
	roster.Add("dave")
	roster.Add("erin")

	out, _ := Reconcile(in, roster, quietLog())

	var sumIn float64
	for _, id := range []string{"alice", "bob", "carol"} {
		sumIn += findNode(t, in, id).Val
	}
	assert.InDelta(t, sumIn, findNode(t, out, "team-a").Val, 1e-9)

	allowed := map[string]bool{"team-a": true, "dave": true, "erin": true}
	for _, n := range out.Nodes {
		assert.True(t, allowed[n.ID], n.ID)
	}
	seen := map[string]bool{}
	for _, l := range out.Links {
		assert.NotEqual(t, l.Source, l.Target)
		assert.Less(t, l.Source, l.Target)
		assert.True(t, allowed[l.Source] && allowed[l.Target])
		assert.False(t, seen[l.Key()], "duplicate pair %s", l.Key())
		seen[l.Key()] = true
	}
}

func TestReconcile_MissingValAndRendererLinks(t *testing.T) {
	raw := `{
  "nodes": [{"id": "Pedro"}, {"id": "joao", "val": 2}],
  "links": [{"source": {"id": "joao", "x": 1}, "target": {"id": "pedro"}, "value": 1.5, "shared_repos": ["x"]}]
}`
	var in models.Graph
	require.NoError(t, json.Unmarshal([]byte(raw), &in))

	out, _ := Reconcile(&in, testRoster(t), quietLog())

	assert.Equal(t, 1.0, findNode(t, out, "pedro").Val)
	assert.Equal(t, 2.0, findNode(t, out, "joao").Val)
	require.Len(t, out.Links, 1)
	assert.Equal(t, models.Key("joao", "pedro"), out.Links[0].Key())
	assert.Equal(t, []models.Interaction{}, out.Links[0].Interactions)
}

func TestReconcile_EmptyRoster(t *testing.T) {
	in := &models.Graph{
		Nodes: []models.Node{{ID: "a", Val: 1}, {ID: "b", Val: 1}},
		Links: []models.Link{{Source: "a", Target: "b", Value: 1}},
	}
	out, stats := Reconcile(in, identity.NewAliasMap(), quietLog())
	assert.Empty(t, out.Nodes)
	assert.Empty(t, out.Links)
	assert.Equal(t, 2, stats.DroppedNodes)
}
