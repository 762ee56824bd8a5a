package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/collabgraph/internal/models"
)

func sampleGraph() *models.Graph {
	return &models.Graph{
		Nodes: []models.Node{
			{ID: "alice", Group: "Data", Val: 3.4, Sources: []string{"acme", "initech"}},
			{ID: "bob", Group: "Data", Val: 1.2, Sources: []string{"acme"}},
			{ID: "carol", Group: "Product", Val: 3.4, Sources: []string{"acme"}},
		},
		Links: []models.Link{
			{Source: "alice", Target: "bob", Value: 2.5, SharedRepos: []string{"api"},
				Interactions: []models.Interaction{{Actor: "bob", Target: "alice", Type: models.InteractionMergedPR, Repo: "api"}}},
			{Source: "alice", Target: "carol", Value: 4.5, SharedRepos: []string{"api", "web"},
				Interactions: []models.Interaction{
					{Actor: "carol", Target: "alice", Type: models.InteractionReviewedPR, Repo: "api"},
					{Actor: "alice", Target: "carol", Type: models.InteractionReviewedPR, Repo: "web"},
				}},
			{Source: "bob", Target: "carol", Value: 0.5, SharedRepos: []string{"api"}},
		},
	}
}

func TestBuildReport(t *testing.T) {
	r := BuildReport("merged", sampleGraph(), 2)

	assert.Equal(t, 3, r.Nodes)
	assert.Equal(t, 3, r.Links)
	assert.InDelta(t, 1.0, r.Density, 1e-9)
	assert.InDelta(t, 7.5, r.TotalWeight, 1e-9)
	assert.Equal(t, map[string]int{"Data": 2, "Product": 1}, r.Groups)
	assert.Equal(t, map[string]int{"MERGED_PR": 1, "REVIEWED_PR": 2}, r.Interactions)

	require.Len(t, r.Contributors, 2)
	assert.Equal(t, "alice", r.Contributors[0].ID, "weight ties break by id")
	assert.Equal(t, "carol", r.Contributors[1].ID)
	assert.Equal(t, 2, r.Contributors[0].Degree)
	assert.Equal(t, 2, r.Contributors[0].Sources)

	require.Len(t, r.Strongest, 2)
	assert.Equal(t, LinkRow{Source: "alice", Target: "carol", Value: 4.5, SharedRepos: 2, Interactions: 2}, r.Strongest[0])
}

func TestBuildReport_Empty(t *testing.T) {
	r := BuildReport("", &models.Graph{}, 10)
	assert.Zero(t, r.Nodes)
	assert.Zero(t, r.Density)
	assert.Empty(t, r.Contributors)
}

func TestFormatters(t *testing.T) {
	r := BuildReport("annotated", sampleGraph(), 10)

	tests := []struct {
		name     string
		level    VerbosityLevel
		contains []string
	}{
		{
			name:     "quiet",
			level:    VerbosityQuiet,
			contains: []string{"3 nodes, 3 links, 2 groups\n"},
		},
		{
			name:  "standard",
			level: VerbosityStandard,
			contains: []string{
				"Collaboration graph (annotated)",
				"Groups: Data=2, Product=1",
				"Interactions: REVIEWED_PR=2, MERGED_PR=1",
				"Top contributors",
				"Strongest links",
				"4.5",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewFormatter(tt.level, false).Format(r, &buf))
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
			assert.NotContains(t, buf.String(), "\x1b[", "no escape codes without color")
		})
	}
}

func TestStandardFormatter_Ranking(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&StandardFormatter{}).Format(BuildReport("", sampleGraph(), 10), &buf))
	out := buf.String()
	assert.Less(t, strings.Index(out, "alice"), strings.Index(out, "bob"))
	assert.Less(t, strings.Index(out, "carol"), strings.Index(out, "bob"))
}

func TestStandardFormatter_Color(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&StandardFormatter{Color: true}).Format(BuildReport("", sampleGraph(), 10), &buf))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(VerbosityJSON, true).Format(BuildReport("merged", sampleGraph(), 1), &buf))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "merged", decoded.Stage)
	require.Len(t, decoded.Contributors, 1)
	assert.Equal(t, "alice", decoded.Contributors[0].ID)
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestGetDefaultVerbosity(t *testing.T) {
	t.Setenv("COLLABGRAPH_OUTPUT", "json")
	assert.Equal(t, VerbosityJSON, GetDefaultVerbosity())
	t.Setenv("COLLABGRAPH_OUTPUT", "")
	assert.Equal(t, VerbosityStandard, GetDefaultVerbosity())
}
