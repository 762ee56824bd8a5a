package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/collabgraph/internal/cache"
	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/logging"
	"github.com/rohankatakam/collabgraph/internal/models"
)

type fakeGitHub struct {
	mu    sync.Mutex
	hits  map[string]int
	fail  map[string]int // path -> number of 502s before succeeding
	mux   *http.ServeMux
}

func newFakeGitHub() *fakeGitHub {
	f := &fakeGitHub{hits: map[string]int{}, fail: map[string]int{}, mux: http.NewServeMux()}
	routes := map[string]string{
		"/orgs/acme/members":                `[{"login": "alice"}, {"login": "bob"}]`,
		"/orgs/acme/repos":                  `[{"name": "api", "full_name": "acme/api"}, {"name": "old", "archived": true}, {"name": "gone"}]`,
		"/repos/acme/api/languages":         `{"Shell": 10, "Go": 1000}`,
		"/repos/acme/api/commits":           `[{"author": {"login": "alice"}, "commit": {"author": {"email": "alice@acme.io"}}}, {"author": null, "commit": {"author": {"email": "carol@example.com"}}}]`,
		"/repos/acme/api/issues/comments":   `[{"issue_url": "https://api.github.com/repos/acme/api/issues/1", "user": {"login": "dave"}}]`,
		"/repos/acme/api/pulls":             `[{"number": 1, "title": "feat", "user": {"login": "alice"}, "merged_at": "2024-01-01T00:00:00Z"}, {"number": 2, "user": {"login": "bob"}}]`,
		"/repos/acme/api/pulls/1":           `{"number": 1, "merged_by": {"login": "bob"}}`,
		"/repos/acme/api/pulls/1/reviews":   `[{"user": {"login": "carol"}, "state": "APPROVED"}, {"user": {"login": "carol"}, "state": "APPROVED"}, {"user": {"login": "mallory"}, "state": "COMMENTED"}, {"user": {"login": "trent"}, "state": "CHANGES_REQUESTED"}]`,
		"/repos/acme/api/pulls/2/reviews":   `[]`,
		"/repos/acme/api/issues/events":     `[{"event": "closed", "actor": {"login": "bob"}, "issue": {"number": 5}}, {"event": "closed", "actor": {"login": "erin"}, "issue": {"number": 5}}]`,
		"/repos/acme/api/issues":            `[{"number": 5, "title": "bug", "state": "closed", "user": {"login": "erin"}, "assignees": [{"login": "alice"}]}, {"number": 1, "pull_request": {"url": "x"}, "user": {"login": "alice"}}]`,
	}
	for path, body := range routes {
		path, body := path, body
		f.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.hits[path]++
			failing := f.fail[path] > 0
			if failing {
				f.fail[path]--
			}
			f.mu.Unlock()
			if failing {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, body)
		})
	}
	f.mux.HandleFunc("/repos/acme/gone/languages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})
	return f
}

func (f *fakeGitHub) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func newTestFetcher(t *testing.T, srv *httptest.Server, fc *cache.FetchCache) *Fetcher {
	t.Helper()
	log := logrus.NewEntry(logging.Discard())
	cfg := config.GitHubConfig{Token: "t0ken", BaseURL: srv.URL, LookbackDays: 30, MaxCommitPages: 2, MaxPRPages: 2, MaxIssuePages: 2}
	client, err := NewClient(cfg, 3, log)
	require.NoError(t, err)
	client.throttle.WithInitialInterval(time.Millisecond)
	f := NewFetcher(client, cfg, 2, fc, log)
	f.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return f
}

func TestFetchOrganization(t *testing.T) {
	fake := newFakeGitHub()
	fake.fail["/repos/acme/api/languages"] = 1
	srv := httptest.NewServer(fake.mux)
	defer srv.Close()

	doc, err := newTestFetcher(t, srv, nil).FetchOrganization(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, "acme", doc.Organization)
	assert.Equal(t, models.PlatformGitHub, doc.Platform)
	assert.Equal(t, "2024-06-01T00:00:00Z", doc.ExtractedAt)
	assert.Len(t, doc.Members, 2)
	require.Len(t, doc.Repositories, 1, "archived skipped, failing repository left out")

	repo := doc.Repositories[0]
	assert.Equal(t, "api", repo.Name)
	assert.Equal(t, []string{"Go", "Shell"}, repo.Languages)
	assert.Equal(t, []string{"alice", "email::carol@example.com"}, repo.Contributors)

	require.Len(t, repo.PullRequests, 2)
	pr := repo.PullRequests[0]
	assert.Equal(t, "1", pr.Number.String())
	assert.Equal(t, "alice", pr.Author)
	assert.Equal(t, "bob", pr.MergedBy)
	assert.Equal(t, []string{"carol"}, pr.Reviewers, "only approving reviews count")
	assert.Equal(t, []string{"dave"}, pr.Commenters)
	assert.Empty(t, repo.PullRequests[1].MergedBy)

	require.Len(t, repo.Issues, 1, "pull requests are not issues")
	issue := repo.Issues[0]
	assert.Equal(t, "erin", issue.Author)
	assert.Equal(t, "bob", issue.ClosedBy, "newest close event wins")
	assert.Equal(t, []string{"alice"}, issue.Assignees)

	assert.Equal(t, 2, fake.hitCount("/repos/acme/api/languages"), "502 retried once")
	assert.Equal(t, 1, fake.hitCount("/repos/acme/gone/languages"), "404 not retried")
	assert.Zero(t, fake.hitCount("/repos/acme/old/languages"))
}

func TestFetchOrganization_UsesCache(t *testing.T) {
	fake := newFakeGitHub()
	srv := httptest.NewServer(fake.mux)
	defer srv.Close()

	fc, err := cache.Open(filepath.Join(t.TempDir(), "fetch.db"), time.Hour, logrus.NewEntry(logging.Discard()))
	require.NoError(t, err)
	defer fc.Close()

	f := newTestFetcher(t, srv, fc)
	first, err := f.FetchOrganization(context.Background(), "acme")
	require.NoError(t, err)
	second, err := f.FetchOrganization(context.Background(), "acme")
	require.NoError(t, err)

	a, err := json.Marshal(first.Repositories)
	require.NoError(t, err)
	b, err := json.Marshal(second.Repositories)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
	assert.Equal(t, 1, fake.hitCount("/repos/acme/api/commits"))
}

func TestRetryable(t *testing.T) {
	resp := func(code int) *gh.Response { return &gh.Response{Response: &http.Response{StatusCode: code}} }
	assert.True(t, retryable(nil, fmt.Errorf("dial tcp: refused")))
	assert.True(t, retryable(resp(502), fmt.Errorf("bad gateway")))
	assert.True(t, retryable(resp(429), fmt.Errorf("slow down")))
	assert.True(t, retryable(resp(403), fmt.Errorf("forbidden")))
	assert.False(t, retryable(resp(404), fmt.Errorf("not found")))
	assert.False(t, retryable(resp(422), fmt.Errorf("unprocessable")))
}

func TestIssueNumber(t *testing.T) {
	n, ok := issueNumber("https://api.github.com/repos/acme/api/issues/42")
	assert.True(t, ok)
	assert.Equal(t, 42, n)
	_, ok = issueNumber("https://api.github.com/repos/acme/api/issues/x")
	assert.False(t, ok)
}
