package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shurcooL/graphql"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/logging"
	"github.com/rohankatakam/collabgraph/internal/models"
)

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type fakeGitLab struct {
	mu         sync.Mutex
	queries    map[string]int
	failFirst  int
	authHeader string
}

func (f *fakeGitLab) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[kind]
}

func (f *fakeGitLab) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req gqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.authHeader = r.Header.Get("Authorization")
	fail := f.failFirst > 0
	if fail {
		f.failFirst--
	}
	f.mu.Unlock()
	if fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	kind, body := f.route(req)
	f.mu.Lock()
	f.queries[kind]++
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"data": %s}`, body)
}

func (f *fakeGitLab) route(req gqlRequest) (string, string) {
	cursor, _ := req.Variables["cursor"].(string)
	switch {
	case strings.Contains(req.Query, "groupMembers("):
		return "members", `{"group": {"groupMembers": {"pageInfo": {"hasNextPage": false}, "nodes": [
			{"user": {"username": "ana", "name": "Ana", "publicEmail": ""}}, {"user": null}]}}}`
	case strings.Contains(req.Query, "projects("):
		if cursor == "" {
			return "projects", `{"group": {"projects": {"pageInfo": {"hasNextPage": true, "endCursor": "p2"}, "nodes": [
				{"name": "core", "fullPath": "acme/platform/core", "archived": false, "repository": {"rootRef": "main"},
				 "languages": [{"name": "Ruby", "share": 20.5}, {"name": "Go", "share": 79.5}]}]}}}`
		}
		return "projects", `{"group": {"projects": {"pageInfo": {"hasNextPage": false}, "nodes": [
			{"name": "legacy", "fullPath": "acme/platform/legacy", "archived": true, "repository": {"rootRef": "main"}, "languages": []},
			{"name": "empty", "fullPath": "acme/platform/empty", "archived": false, "repository": null, "languages": []}]}}}`
	case strings.Contains(req.Query, "history("):
		return "commits", `{"project": {"repository": {"tree": {"lastCommit": {"history": {"pageInfo": {"hasNextPage": true, "endCursor": "c2"}, "nodes": [
			{"authorName": "Ana", "authorEmail": "ana@acme.io", "author": {"username": "ana"}},
			{"authorName": "Bruno", "authorEmail": "bruno@gmail.com", "author": null}]}}}}}`
	case strings.Contains(req.Query, "mergeRequests("):
		if req.Variables["fullPath"] != "acme/platform/core" {
			return "mrs", `{"project": {"mergeRequests": {"pageInfo": {"hasNextPage": false}, "nodes": []}}}`
		}
		return "mrs", `{"project": {"mergeRequests": {"pageInfo": {"hasNextPage": false}, "nodes": [
			{"iid": "7", "title": "Add cache", "author": {"username": "ana"}, "mergeUser": {"username": "caio"},
			 "approvedBy": {"nodes": [{"username": "caio"}, {"username": "bia"}]},
			 "discussions": {"nodes": [{"notes": {"nodes": [{"author": {"username": "dora"}}]}}, {"notes": {"nodes": []}}]}}]}}}`
	case strings.Contains(req.Query, "issues("):
		if req.Variables["fullPath"] != "acme/platform/core" {
			return "issues", `{"project": {"issues": {"pageInfo": {"hasNextPage": false}, "nodes": []}}}`
		}
		return "issues", `{"project": {"issues": {"pageInfo": {"hasNextPage": false}, "nodes": [
			{"iid": "3", "title": "Crash", "state": "closed", "createdAt": "2024-01-01T00:00:00Z", "closedAt": "2024-01-02T00:00:00Z",
			 "author": {"username": "bia"}, "assignees": {"nodes": [{"username": "ana"}]}}]}}}`
	}
	return "unknown", `null`
}

func newTestFetcher(t *testing.T, url string) *Fetcher {
	t.Helper()
	log := logrus.NewEntry(logging.Discard())
	cfg := config.GitLabConfig{Token: "glpat-test", APIURL: url, MaxPages: 1}
	client := NewClient(cfg, 2, log)
	client.throttle.WithInitialInterval(time.Millisecond)
	f := NewFetcher(client, cfg, 2, nil, log)
	f.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestFetchOrganization(t *testing.T) {
	fake := &fakeGitLab{queries: map[string]int{}, failFirst: 1}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	doc, err := newTestFetcher(t, srv.URL).FetchOrganization(context.Background(), "acme/platform")
	require.NoError(t, err)

	assert.Equal(t, "Bearer glpat-test", fake.authHeader)
	assert.Equal(t, "acme/platform", doc.Group)
	assert.Equal(t, "acme/platform", doc.OrgName())
	assert.Equal(t, models.PlatformGitLab, doc.Platform)
	assert.Equal(t, []models.Member{{Login: "ana", Name: "Ana"}}, doc.Members)
	assert.Equal(t, 2, fake.count("projects"), "projects are paginated")

	require.Len(t, doc.Repositories, 2, "archived projects are skipped")
	core := doc.Repositories[0]
	assert.Equal(t, "core", core.Name)
	assert.Equal(t, "acme/platform/core", core.FullPath)
	assert.Equal(t, []string{"Go", "Ruby"}, core.Languages)
	assert.Equal(t, []string{"ana", "email::bruno@gmail.com"}, core.Contributors)
	assert.Equal(t, 1, fake.count("commits"), "history stops at max_pages")

	require.Len(t, core.MergeRequests, 1)
	mr := core.MergeRequests[0]
	assert.Equal(t, "7", mr.Number.String())
	assert.Equal(t, "ana", mr.Author)
	assert.Equal(t, "caio", mr.MergedBy)
	assert.Equal(t, []string{"bia", "caio"}, mr.Reviewers)
	assert.Equal(t, []string{"dora"}, mr.Commenters)
	assert.Empty(t, core.PullRequests)

	require.Len(t, core.Issues, 1)
	assert.Equal(t, "bia", core.Issues[0].Author)
	assert.Equal(t, []string{"ana"}, core.Issues[0].Assignees)

	empty := doc.Repositories[1]
	assert.Equal(t, "empty", empty.Name)
	assert.Empty(t, empty.Contributors, "no default branch, no history query")
}

func TestFetchOrganization_MissingGroup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"group": null}}`)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, srv.URL).FetchOrganization(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExternal))
}

func TestQuery_GraphQLErrorsAreNotRetried(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		fmt.Fprint(w, `{"data": null, "errors": [{"message": "Field 'bogus' doesn't exist"}]}`)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)
	var q projectsQuery
	err := f.client.query(context.Background(), "list projects", &q, map[string]interface{}{
		"groupPath": graphql.ID("acme"),
		"cursor":    (*graphql.String)(nil),
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(&statusError{code: 502}))
	assert.True(t, retryable(&statusError{code: 429}))
	assert.False(t, retryable(&statusError{code: 401}))
	assert.False(t, retryable(fmt.Errorf("Field 'bogus' doesn't exist")))
}
