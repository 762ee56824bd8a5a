package github

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rohankatakam/collabgraph/internal/cache"
	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/identity"
	"github.com/rohankatakam/collabgraph/internal/models"
)

const perPage = 100

// Fetcher harvests every non-archived repository of an organization.
type Fetcher struct {
	client      *Client
	cache       *cache.FetchCache
	concurrency int
	lookback    time.Duration
	commitPages int
	prPages     int
	issuePages  int
	logger      *logrus.Entry
	now         func() time.Time
}

// NewFetcher wires a client to the page limits in cfg. fc may be nil.
func NewFetcher(client *Client, cfg config.GitHubConfig, concurrency int, fc *cache.FetchCache, logger *logrus.Entry) *Fetcher {
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
		lookback:    time.Duration(cfg.LookbackDays) * 24 * time.Hour,
		commitPages: cfg.MaxCommitPages,
		prPages:     cfg.MaxPRPages,
		issuePages:  cfg.MaxIssuePages,
		logger:      logger,
		now:         time.Now,
	}
}

func (f *Fetcher) Platform() models.Platform { return models.PlatformGitHub }

// FetchOrganization lists members and repositories, then harvests the
// repositories concurrently. A repository that fails is logged and left
// out; the document still covers the rest.
func (f *Fetcher) FetchOrganization(ctx context.Context, org string) (*models.OrgDocument, error) {
	logger := f.logger.WithField("org", org)
	logger.Info("Fetching organization")

	members, err := f.members(ctx, org)
	if err != nil {
		logger.WithError(err).Warn("could not list members")
	}
	repos, err := f.repositories(ctx, org)
	if err != nil {
		return nil, err
	}

	results := make([]*models.Repository, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, repo := range repos {
		i, repo := i, repo
		g.Go(func() error {
			r, err := f.repository(gctx, org, repo)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.WithError(err).WithField("repo", repo.GetName()).Error("skipping repository")
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
		Organization: org,
		Platform:     models.PlatformGitHub,
		ExtractedAt:  f.now().UTC().Format(time.RFC3339),
		Members:      members,
		Repositories: []models.Repository{},
	}
	for _, r := range results {
		if r != nil {
			doc.Repositories = append(doc.Repositories, *r)
		}
	}
	logger.WithField("repositories", len(doc.Repositories)).Info("Fetched organization")
	return doc, nil
}

func (f *Fetcher) members(ctx context.Context, org string) ([]models.Member, error) {
	var members []models.Member
	opts := &github.ListMembersOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		var page []*github.User
		var resp *github.Response
		err := f.client.do(ctx, "list members", func() (*github.Response, error) {
			var err error
			page, resp, err = f.client.client.Organizations.ListMembers(ctx, org, opts)
			return resp, err
		})
		if err != nil {
			return members, err
		}
		for _, u := range page {
			members = append(members, models.Member{Login: u.GetLogin(), Name: u.GetName(), Email: u.GetEmail()})
		}
		if resp.NextPage == 0 {
			return members, nil
		}
		opts.Page = resp.NextPage
	}
}

func (f *Fetcher) repositories(ctx context.Context, org string) ([]*github.Repository, error) {
	var repos []*github.Repository
	opts := &github.RepositoryListByOrgOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		var page []*github.Repository
		var resp *github.Response
		err := f.client.do(ctx, "list repositories", func() (*github.Response, error) {
			var err error
			page, resp, err = f.client.client.Repositories.ListByOrg(ctx, org, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, r := range page {
			if !r.GetArchived() {
				repos = append(repos, r)
			}
		}
		if resp.NextPage == 0 {
			return repos, nil
		}
		opts.Page = resp.NextPage
	}
}

// repository harvests one repository, from the cache when it holds a fresh
// copy.
func (f *Fetcher) repository(ctx context.Context, org string, repo *github.Repository) (*models.Repository, error) {
	name := repo.GetName()
	key := cache.Key(models.PlatformGitHub, org, name)
	if f.cache != nil {
		if cached, ok, err := f.cache.Get(key); err == nil && ok {
			return cached, nil
		}
	}

	out := &models.Repository{Name: name, FullPath: repo.GetFullName()}
	var err error
	if out.Languages, err = f.languages(ctx, org, name); err != nil {
		return nil, err
	}
	if out.Contributors, err = f.contributors(ctx, org, name); err != nil {
		return nil, err
	}
	commenters, err := f.commenters(ctx, org, name)
	if err != nil {
		return nil, err
	}
	if out.PullRequests, err = f.pullRequests(ctx, org, name, commenters); err != nil {
		return nil, err
	}
	if out.Issues, err = f.issues(ctx, org, name, commenters); err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Put(key, *out); err != nil {
			f.logger.WithError(err).WithField("repo", name).Warn("could not cache repository")
		}
	}
	f.logger.WithFields(logrus.Fields{
		"repo":          name,
		"contributors":  len(out.Contributors),
		"pull_requests": len(out.PullRequests),
		"issues":        len(out.Issues),
	}).Debug("Fetched repository")
	return out, nil
}

func (f *Fetcher) languages(ctx context.Context, org, name string) ([]string, error) {
	var langs map[string]int
	err := f.client.do(ctx, "list languages", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		langs, resp, err = f.client.client.Repositories.ListLanguages(ctx, org, name)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(langs))
	for l := range langs {
		out = append(out, l)
	}
	// largest first, like the host's language bar
	sort.Slice(out, func(i, j int) bool {
		if langs[out[i]] != langs[out[j]] {
			return langs[out[i]] > langs[out[j]]
		}
		return out[i] < out[j]
	})
	return out, nil
}

// contributors returns commit authors within the lookback window: the
// account login, or the email-marked address for unlinked commits.
func (f *Fetcher) contributors(ctx context.Context, org, name string) ([]string, error) {
	seen := sets.NewString()
	opts := &github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	if f.lookback > 0 {
		opts.Since = f.now().Add(-f.lookback)
	}
	for page := 0; f.commitPages <= 0 || page < f.commitPages; page++ {
		var commits []*github.RepositoryCommit
		var resp *github.Response
		err := f.client.do(ctx, "list commits", func() (*github.Response, error) {
			var err error
			commits, resp, err = f.client.client.Repositories.ListCommits(ctx, org, name, opts)
			return resp, err
		})
		if err != nil {
			if resp != nil && resp.StatusCode == 409 {
				// empty repository
				return []string{}, nil
			}
			return nil, err
		}
		for _, c := range commits {
			if login := c.GetAuthor().GetLogin(); login != "" {
				seen.Insert(login)
			} else if email := c.GetCommit().GetAuthor().GetEmail(); email != "" {
				seen.Insert(identity.EmailPrefix + email)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return seen.List(), nil
}

// commenters maps issue and pull request numbers to the people who
// commented on them, from the repository-wide comment stream.
func (f *Fetcher) commenters(ctx context.Context, org, name string) (map[int]sets.String, error) {
	out := map[int]sets.String{}
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	if f.lookback > 0 {
		since := f.now().Add(-f.lookback)
		opts.Since = &since
	}
	for page := 0; f.issuePages <= 0 || page < f.issuePages; page++ {
		var comments []*github.IssueComment
		var resp *github.Response
		err := f.client.do(ctx, "list comments", func() (*github.Response, error) {
			var err error
			comments, resp, err = f.client.client.Issues.ListComments(ctx, org, name, 0, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, c := range comments {
			number, ok := issueNumber(c.GetIssueURL())
			login := c.GetUser().GetLogin()
			if !ok || login == "" {
				continue
			}
			if out[number] == nil {
				out[number] = sets.NewString()
			}
			out[number].Insert(login)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func issueNumber(issueURL string) (int, bool) {
	i := strings.LastIndexByte(issueURL, '/')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(issueURL[i+1:])
	return n, err == nil
}

// pullRequests returns closed pull requests with their merger and
// reviewers. The list endpoint omits merged_by, so merged pull requests are
// fetched individually.
func (f *Fetcher) pullRequests(ctx context.Context, org, name string, commenters map[int]sets.String) ([]models.PullRequest, error) {
	var out []models.PullRequest
	opts := &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for page := 0; f.prPages <= 0 || page < f.prPages; page++ {
		var prs []*github.PullRequest
		var resp *github.Response
		err := f.client.do(ctx, "list pull requests", func() (*github.Response, error) {
			var err error
			prs, resp, err = f.client.client.PullRequests.List(ctx, org, name, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, pr := range prs {
			item := models.PullRequest{
				Number:     numberOf(pr.GetNumber()),
				Title:      pr.GetTitle(),
				Author:     pr.GetUser().GetLogin(),
				Commenters: commenters[pr.GetNumber()].List(),
			}
			if pr.MergedAt != nil {
				if item.MergedBy, err = f.mergedBy(ctx, org, name, pr.GetNumber()); err != nil {
					return nil, err
				}
			}
			if item.Reviewers, err = f.reviewers(ctx, org, name, pr.GetNumber()); err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (f *Fetcher) mergedBy(ctx context.Context, org, name string, number int) (string, error) {
	var pr *github.PullRequest
	err := f.client.do(ctx, "get pull request", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		pr, resp, err = f.client.client.PullRequests.Get(ctx, org, name, number)
		return resp, err
	})
	if err != nil {
		return "", err
	}
	return pr.GetMergedBy().GetLogin(), nil
}

// reviewApproved is the only review state that counts as reviewing a pull
// request; comments and change requests do not.
const reviewApproved = "APPROVED"

// reviewers returns the distinct logins that approved the pull request.
func (f *Fetcher) reviewers(ctx context.Context, org, name string, number int) ([]string, error) {
	seen := sets.NewString()
	opts := &github.ListOptions{PerPage: perPage}
	for {
		var reviews []*github.PullRequestReview
		var resp *github.Response
		err := f.client.do(ctx, "list reviews", func() (*github.Response, error) {
			var err error
			reviews, resp, err = f.client.client.PullRequests.ListReviews(ctx, org, name, number, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, r := range reviews {
			if r.GetState() != reviewApproved {
				continue
			}
			if login := r.GetUser().GetLogin(); login != "" {
				seen.Insert(login)
			}
		}
		if resp.NextPage == 0 {
			return seen.List(), nil
		}
		opts.Page = resp.NextPage
	}
}

// issues returns issues (pull requests excluded) with the closer taken from
// the repository's "closed" events.
func (f *Fetcher) issues(ctx context.Context, org, name string, commenters map[int]sets.String) ([]models.Issue, error) {
	closers, err := f.closers(ctx, org, name)
	if err != nil {
		return nil, err
	}

	var out []models.Issue
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	if f.lookback > 0 {
		opts.Since = f.now().Add(-f.lookback)
	}
	for page := 0; f.issuePages <= 0 || page < f.issuePages; page++ {
		var issues []*github.Issue
		var resp *github.Response
		err := f.client.do(ctx, "list issues", func() (*github.Response, error) {
			var err error
			issues, resp, err = f.client.client.Issues.ListByRepo(ctx, org, name, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, is := range issues {
			if is.IsPullRequest() {
				continue
			}
			item := models.Issue{
				Number:     numberOf(is.GetNumber()),
				Title:      is.GetTitle(),
				State:      is.GetState(),
				CreatedAt:  formatTime(is.CreatedAt),
				ClosedAt:   formatTime(is.ClosedAt),
				Author:     is.GetUser().GetLogin(),
				Commenters: commenters[is.GetNumber()].List(),
			}
			if is.GetState() == "closed" {
				item.ClosedBy = closers[is.GetNumber()]
			}
			for _, a := range is.Assignees {
				if login := a.GetLogin(); login != "" {
					item.Assignees = append(item.Assignees, login)
				}
			}
			out = append(out, item)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// closers maps issue numbers to whoever closed them last.
func (f *Fetcher) closers(ctx context.Context, org, name string) (map[int]string, error) {
	out := map[int]string{}
	opts := &github.ListOptions{PerPage: perPage}
	for page := 0; f.issuePages <= 0 || page < f.issuePages; page++ {
		var events []*github.IssueEvent
		var resp *github.Response
		err := f.client.do(ctx, "list issue events", func() (*github.Response, error) {
			var err error
			events, resp, err = f.client.client.Issues.ListRepositoryEvents(ctx, org, name, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			if e.GetEvent() != "closed" || e.Issue == nil {
				continue
			}
			n := e.Issue.GetNumber()
			// events arrive newest first; keep the most recent close
			if _, seen := out[n]; !seen {
				out[n] = e.GetActor().GetLogin()
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func numberOf(n int) json.Number {
	return json.Number(strconv.Itoa(n))
}

func formatTime(t *github.Timestamp) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
