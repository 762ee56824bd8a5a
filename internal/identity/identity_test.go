package identity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/collabgraph/internal/errors"
)

var defaultBots = []string{
	"sonarqubecloud", "github-actions", "dependabot", "renovate",
	"dependabot[bot]", "gitlab-bot", "actions-user",
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(defaultBots)

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"alice", "alice", true},
		{"  alice  ", "alice", true},
		{"email::jdoe@example.com", "jdoe", true},
		{"jdoe@example.com", "jdoe", true},
		{"email:: spaced @example.com", "spaced", true},
		{"RochaCarla", "RochaCarla", true},
		{"", "", false},
		{"   ", "", false},
		{"email::@example.com", "", false},
		{"dependabot[bot]", "", false},
		{"Dependabot", "", false},
		{"GITHUB-ACTIONS", "", false},
		{"renovate", "", false},
		{"my-ci-bot", "", false},
		{"RoBoT", "", false},
		{"bottinolucas", "", false},
		{"renovate-approve", "", false},
		{"Github-Actions-Deploy", "", false},
		{"sonarqubecloud-eu", "", false},
		{"ci-actions-user", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := n.Normalize(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := NewNormalizer(defaultBots)
	for _, in := range []string{"alice", "email::jdoe@example.com", " Bob ", "x@y@z", "José"} {
		once, ok := n.Normalize(in)
		require.True(t, ok, in)
		twice, ok := n.Normalize(once)
		require.True(t, ok)
		assert.Equal(t, once, twice)
	}
}

func TestNormalize_CustomBots(t *testing.T) {
	n := NewNormalizer([]string{" CI-Runner "})
	_, ok := n.Normalize("ci-runner")
	assert.False(t, ok)
	_, ok = n.Normalize("eu-CI-Runner-2")
	assert.False(t, ok, "configured names match anywhere in the handle")
	got, ok := n.Normalize("renovate")
	assert.True(t, ok, "only configured bots are rejected by name")
	assert.Equal(t, "renovate", got)
}

func TestMatchKey(t *testing.T) {
	assert.Equal(t, "rochacarla", MatchKey(" @RochaCarla "))
	assert.Equal(t, "rocha.carla", MatchKey("rocha.carla"))
}

func TestParseRoster(t *testing.T) {
	roster := `
RochaCarla,rocha.carla
ednunes,Edu_25
,leonardogm
CorreiaJV,CorreiaJV,

MauricioMachadoFF
 , ,
`
	m, err := ParseRoster(strings.NewReader(roster))
	require.NoError(t, err)

	tests := []struct {
		alias  string
		master string
		ok     bool
	}{
		{"RochaCarla", "RochaCarla", true},
		{"rochacarla", "RochaCarla", true},
		{"rocha.carla", "RochaCarla", true},
		{"@Rocha.Carla", "RochaCarla", true},
		{"edu_25", "ednunes", true},
		{"leonardogm", "leonardogm", true},
		{"correiajv", "CorreiaJV", true},
		{"MauricioMachadoFF", "MauricioMachadoFF", true},
		{"stranger", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			got, ok := m.Resolve(tt.alias)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.master, got)
		})
	}

	assert.Equal(t, []string{"CorreiaJV", "MauricioMachadoFF", "RochaCarla", "ednunes", "leonardogm"}, m.Masters())
	assert.Empty(t, m.Conflicts)
}

func TestParseRoster_Conflict(t *testing.T) {
	m, err := ParseRoster(strings.NewReader("alice,shared\nbob,shared\n"))
	require.NoError(t, err)

	got, ok := m.Resolve("shared")
	require.True(t, ok)
	assert.Equal(t, "bob", got)
	require.Len(t, m.Conflicts, 1)
	assert.Equal(t, AliasConflict{Alias: "shared", Previous: "alice", Master: "bob", Line: 2}, m.Conflicts[0])
}

func TestLoadRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.csv")
	require.NoError(t, os.WriteFile(path, []byte("alice,a1\n"), 0644))

	m, err := LoadRoster(path)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	_, err = LoadRoster(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}
