package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/logging"
	"github.com/rohankatakam/collabgraph/internal/models"
)

func quietLog() *logrus.Entry {
	return logrus.NewEntry(logging.Discard())
}

func TestThrottle_RetriesTransientErrors(t *testing.T) {
	th := NewThrottle(0, 3, quietLog()).WithInitialInterval(time.Millisecond)
	calls := 0
	err := th.Do(context.Background(), "list", func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("502 bad gateway")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestThrottle_GivesUp(t *testing.T) {
	th := NewThrottle(0, 2, quietLog()).WithInitialInterval(time.Millisecond)
	calls := 0
	err := th.Do(context.Background(), "list", func() error {
		calls++
		return fmt.Errorf("still failing")
	})
	assert.EqualError(t, err, "still failing")
	assert.Equal(t, 3, calls, "first attempt plus two retries")
}

func TestThrottle_PermanentStopsImmediately(t *testing.T) {
	th := NewThrottle(0, 5, quietLog()).WithInitialInterval(time.Millisecond)
	calls := 0
	err := th.Do(context.Background(), "get", func() error {
		calls++
		return Permanent(fmt.Errorf("404 not found"))
	})
	assert.EqualError(t, err, "404 not found")
	assert.Equal(t, 1, calls)
}

func TestThrottle_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	th := NewThrottle(1, 5, quietLog())
	err := th.Do(ctx, "get", func() error { return nil })
	assert.Error(t, err)
}

func TestDocumentPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "github_acme.json"), DocumentPath("data", models.PlatformGitHub, "acme"))
	assert.Equal(t, filepath.Join("data", "gitlab_acme_platform.json"), DocumentPath("data", models.PlatformGitLab, "acme/platform"))
}

type fakeSource struct {
	failing map[string]bool
}

func (f fakeSource) Platform() models.Platform { return models.PlatformGitHub }

func (f fakeSource) FetchOrganization(ctx context.Context, name string) (*models.OrgDocument, error) {
	if f.failing[name] {
		return nil, fmt.Errorf("boom")
	}
	return &models.OrgDocument{
		Organization: name,
		Platform:     models.PlatformGitHub,
		Repositories: []models.Repository{{Name: "api", Contributors: []string{"alice"}}},
	}, nil
}

func TestRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	res, err := Run(context.Background(), fakeSource{failing: map[string]bool{"broken": true}}, []string{"acme", "broken"}, dir, quietLog())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "github_acme.json")}, res.Paths)
	assert.Equal(t, []string{"acme"}, res.Fetched)
	assert.Contains(t, res.Failed, "broken")

	raw, err := os.ReadFile(res.Paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"organization": "acme"`)

	_, err = Run(context.Background(), fakeSource{failing: map[string]bool{"broken": true}}, []string{"broken"}, dir, quietLog())
	assert.True(t, errors.IsType(err, errors.ErrorTypeExternal))
}
