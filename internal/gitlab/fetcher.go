package gitlab

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/shurcooL/graphql"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rohankatakam/collabgraph/internal/cache"
	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/identity"
	"github.com/rohankatakam/collabgraph/internal/models"
)

// Fetcher harvests the non-archived projects of a group, subgroups
// included.
type Fetcher struct {
	client      *Client
	cache       *cache.FetchCache
	concurrency int
	maxPages    int
	logger      *logrus.Entry
	now         func() time.Time
}

// NewFetcher returns a fetcher bounded by cfg.MaxPages per paginated
// listing. fc may be nil.
func NewFetcher(client *Client, cfg config.GitLabConfig, concurrency int, fc *cache.FetchCache, logger *logrus.Entry) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Fetcher{
		client:      client,
		cache:       fc,
		concurrency: concurrency,
		maxPages:    cfg.MaxPages,
		logger:      logger,
		now:         time.Now,
	}
}

func (f *Fetcher) Platform() models.Platform { return models.PlatformGitLab }

// FetchOrganization harvests the group at path. A project that fails is
// logged and left out.
func (f *Fetcher) FetchOrganization(ctx context.Context, path string) (*models.OrgDocument, error) {
	logger := f.logger.WithField("group", path)
	logger.Info("Fetching group")

	members, err := f.members(ctx, path)
	if err != nil {
		logger.WithError(err).Warn("could not list members")
	}
	projects, err := f.projects(ctx, path)
	if err != nil {
		return nil, err
	}

	results := make([]*models.Repository, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, p := range projects {
		i, p := i, p
		g.Go(func() error {
			r, err := f.project(gctx, path, p)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.WithError(err).WithField("project", string(p.FullPath)).Error("skipping project")
				return nil
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc := &models.OrgDocument{
		Group:        path,
		Platform:     models.PlatformGitLab,
		ExtractedAt:  f.now().UTC().Format(time.RFC3339),
		Members:      members,
		Repositories: []models.Repository{},
	}
	for _, r := range results {
		if r != nil {
			doc.Repositories = append(doc.Repositories, *r)
		}
	}
	logger.WithField("projects", len(doc.Repositories)).Info("Fetched group")
	return doc, nil
}

func (f *Fetcher) more(page int, info pageInfo) bool {
	return bool(info.HasNextPage) && (f.maxPages <= 0 || page+1 < f.maxPages)
}

func (f *Fetcher) members(ctx context.Context, path string) ([]models.Member, error) {
	var members []models.Member
	vars := map[string]interface{}{
		"groupPath": graphql.ID(path),
		"cursor":    (*graphql.String)(nil),
	}
	for {
		var q membersQuery
		if err := f.client.query(ctx, "list members", &q, vars); err != nil {
			return members, err
		}
		if q.Group == nil {
			return members, nil
		}
		for _, n := range q.Group.GroupMembers.Nodes {
			if n.User == nil {
				continue
			}
			members = append(members, models.Member{
				Login: string(n.User.Username),
				Name:  string(n.User.Name),
				Email: string(n.User.PublicEmail),
			})
		}
		info := q.Group.GroupMembers.PageInfo
		if !info.HasNextPage {
			return members, nil
		}
		vars["cursor"] = graphql.NewString(info.EndCursor)
	}
}

func (f *Fetcher) projects(ctx context.Context, path string) ([]projectNode, error) {
	var out []projectNode
	vars := map[string]interface{}{
		"groupPath": graphql.ID(path),
		"cursor":    (*graphql.String)(nil),
	}
	for {
		var q projectsQuery
		if err := f.client.query(ctx, "list projects", &q, vars); err != nil {
			return nil, err
		}
		if q.Group == nil {
			return nil, errors.ExternalErrorf(nil, "gitlab group %q not found or not visible", path)
		}
		for _, p := range q.Group.Projects.Nodes {
			if !p.Archived {
				out = append(out, p)
			}
		}
		info := q.Group.Projects.PageInfo
		if !info.HasNextPage {
			return out, nil
		}
		vars["cursor"] = graphql.NewString(info.EndCursor)
	}
}

func (f *Fetcher) project(ctx context.Context, group string, p projectNode) (*models.Repository, error) {
	fullPath := string(p.FullPath)
	key := cache.Key(models.PlatformGitLab, group, fullPath)
	if f.cache != nil {
		if cached, ok, err := f.cache.Get(key); err == nil && ok {
			return cached, nil
		}
	}

	out := &models.Repository{Name: string(p.Name), FullPath: fullPath, Languages: languages(p)}
	var err error
	if p.Repository != nil && p.Repository.RootRef != "" {
		if out.Contributors, err = f.contributors(ctx, fullPath, string(p.Repository.RootRef)); err != nil {
			return nil, err
		}
	}
	if out.MergeRequests, err = f.mergeRequests(ctx, fullPath); err != nil {
		return nil, err
	}
	if out.Issues, err = f.issues(ctx, fullPath); err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Put(key, *out); err != nil {
			f.logger.WithError(err).WithField("project", fullPath).Warn("could not cache project")
		}
	}
	f.logger.WithFields(logrus.Fields{
		"project":        fullPath,
		"contributors":   len(out.Contributors),
		"merge_requests": len(out.MergeRequests),
		"issues":         len(out.Issues),
	}).Debug("Fetched project")
	return out, nil
}

func languages(p projectNode) []string {
	langs := append(p.Languages[:0:0], p.Languages...)
	sort.SliceStable(langs, func(i, j int) bool { return langs[i].Share > langs[j].Share })
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		out = append(out, string(l.Name))
	}
	return out
}

// contributors walks the default branch history. Commits without a linked
// account are recorded by their email-marked address.
func (f *Fetcher) contributors(ctx context.Context, fullPath, branch string) ([]string, error) {
	seen := sets.NewString()
	vars := map[string]interface{}{
		"fullPath": graphql.ID(fullPath),
		"branch":   graphql.String(branch),
		"cursor":   (*graphql.String)(nil),
	}
	for page := 0; ; page++ {
		var q commitsQuery
		if err := f.client.query(ctx, "list commits", &q, vars); err != nil {
			return nil, err
		}
		if q.Project == nil || q.Project.Repository == nil || q.Project.Repository.Tree == nil ||
			q.Project.Repository.Tree.LastCommit == nil {
			break
		}
		history := q.Project.Repository.Tree.LastCommit.History
		for _, c := range history.Nodes {
			if c.Author != nil && c.Author.Username != "" {
				seen.Insert(string(c.Author.Username))
			} else if c.AuthorEmail != "" {
				seen.Insert(identity.EmailPrefix + string(c.AuthorEmail))
			}
		}
		if !f.more(page, history.PageInfo) {
			break
		}
		vars["cursor"] = graphql.NewString(history.PageInfo.EndCursor)
	}
	return seen.List(), nil
}

// mergeRequests returns merged merge requests. Reviewers are the approvers;
// commenters are the authors of each discussion's opening note.
func (f *Fetcher) mergeRequests(ctx context.Context, fullPath string) ([]models.PullRequest, error) {
	var out []models.PullRequest
	vars := map[string]interface{}{
		"fullPath": graphql.ID(fullPath),
		"cursor":   (*graphql.String)(nil),
	}
	for page := 0; ; page++ {
		var q mergeRequestsQuery
		if err := f.client.query(ctx, "list merge requests", &q, vars); err != nil {
			return nil, err
		}
		if q.Project == nil {
			break
		}
		for _, mr := range q.Project.MergeRequests.Nodes {
			out = append(out, toPullRequest(mr))
		}
		info := q.Project.MergeRequests.PageInfo
		if !f.more(page, info) {
			break
		}
		vars["cursor"] = graphql.NewString(info.EndCursor)
	}
	return out, nil
}

func toPullRequest(mr mergeRequestNode) models.PullRequest {
	reviewers := sets.NewString()
	for _, u := range mr.ApprovedBy.Nodes {
		if u.Username != "" {
			reviewers.Insert(string(u.Username))
		}
	}
	commenters := sets.NewString()
	for _, d := range mr.Discussions.Nodes {
		if len(d.Notes.Nodes) == 0 || d.Notes.Nodes[0].Author == nil {
			continue
		}
		if u := d.Notes.Nodes[0].Author.Username; u != "" {
			commenters.Insert(string(u))
		}
	}
	return models.PullRequest{
		Number:     json.Number(mr.Iid),
		Title:      string(mr.Title),
		Author:     username(mr.Author),
		MergedBy:   username(mr.MergeUser),
		Reviewers:  reviewers.List(),
		Commenters: commenters.List(),
	}
}

func (f *Fetcher) issues(ctx context.Context, fullPath string) ([]models.Issue, error) {
	var out []models.Issue
	vars := map[string]interface{}{
		"fullPath": graphql.ID(fullPath),
		"cursor":   (*graphql.String)(nil),
	}
	for page := 0; ; page++ {
		var q issuesQuery
		if err := f.client.query(ctx, "list issues", &q, vars); err != nil {
			return nil, err
		}
		if q.Project == nil {
			break
		}
		for _, is := range q.Project.Issues.Nodes {
			item := models.Issue{
				Number:    json.Number(is.Iid),
				Title:     string(is.Title),
				State:     string(is.State),
				CreatedAt: string(is.CreatedAt),
				ClosedAt:  string(is.ClosedAt),
				Author:    username(is.Author),
			}
			for _, a := range is.Assignees.Nodes {
				if a.Username != "" {
					item.Assignees = append(item.Assignees, string(a.Username))
				}
			}
			out = append(out, item)
		}
		info := q.Project.Issues.PageInfo
		if !f.more(page, info) {
			break
		}
		vars["cursor"] = graphql.NewString(info.EndCursor)
	}
	return out, nil
}

func username(u *userRef) string {
	if u == nil {
		return ""
	}
	return string(u.Username)
}
