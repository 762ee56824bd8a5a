package ingestion

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/graph"
	"github.com/rohankatakam/collabgraph/internal/logging"
)

func testLoader(workers int) *Loader {
	return NewLoader(graph.DefaultOptions(), workers, logrus.NewEntry(logging.Discard()))
}

func writeDocs(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

const acmeDoc = `{
  "organization": "acme",
  "platform": "github",
  "repositories": [
    {"name": "R", "contributors": ["alice", "bob"],
     "pull_requests": [{"number": 1, "author": "alice", "merged_by": "bob", "reviewers": ["carol"]}]},
    "not an object",
    {"contributors": ["nobody"]}
  ]
}`

const gitlabDoc = `{
  "group": "initech/platform",
  "platform": "gitlab",
  "repositories": [
    {"name": "svc", "contributors": ["email::alice@initech.com", "dave"],
     "merge_requests": [{"number": "7", "author": "dave", "merged_by": "alice"}],
     "issues": [{"author": "dave", "closed_by": "renovate"}]}
  ]
}`

func TestLoadDir(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"github_acme.json":    acmeDoc,
		"gitlab_initech.json": gitlabDoc,
		"broken.json":         `{"organization": `,
		"notes.txt":           "ignored",
	})

	res, err := testLoader(2).LoadDir(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Files)
	assert.Equal(t, []string{filepath.Join(dir, "broken.json")}, res.FailedFiles)
	assert.Equal(t, 2, res.Stats.Repositories)
	assert.Equal(t, 2, res.Stats.SkippedRepositories)

	ids := make([]string, 0, len(res.Graph.Nodes))
	for _, n := range res.Graph.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, ids)
	assert.Equal(t, []string{"acme", "initech/platform"}, res.Graph.Nodes[0].Sources)
	assert.Equal(t, 1.4, res.Graph.Nodes[0].Val)
}

func TestLoadDir_DeterministicAcrossWorkers(t *testing.T) {
	docs := map[string]string{}
	for _, org := range []string{"a", "b", "c", "d", "e"} {
		docs["github_"+org+".json"] = `{"organization": "` + org + `", "repositories": [
			{"name": "shared", "contributors": ["alice", "bob"],
			 "pull_requests": [{"author": "alice", "merged_by": "bob"}, {"author": "bob", "merged_by": "alice"}]}]}`
	}
	dir := writeDocs(t, docs)

	var outputs []string
	for _, workers := range []int{1, 3, 8} {
		res, err := testLoader(workers).LoadDir(context.Background(), dir)
		require.NoError(t, err)
		raw, err := json.Marshal(res.Graph)
		require.NoError(t, err)
		outputs = append(outputs, string(raw))
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[0], outputs[2])
}

func TestLoadDir_Errors(t *testing.T) {
	_, err := testLoader(1).LoadDir(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeFileSystem))

	_, err = testLoader(1).LoadDir(context.Background(), t.TempDir())
	assert.True(t, errors.IsType(err, errors.ErrorTypeFileSystem))

	dir := writeDocs(t, map[string]string{"x.json": "[", "y.json": "nope"})
	_, err = testLoader(1).LoadDir(context.Background(), dir)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInput))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir = writeDocs(t, map[string]string{"a.json": acmeDoc})
	_, err = testLoader(1).LoadDir(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}
