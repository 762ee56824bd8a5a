package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/collabgraph/internal/cache"
	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/dlq"
	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/fetch"
	"github.com/rohankatakam/collabgraph/internal/github"
	"github.com/rohankatakam/collabgraph/internal/gitlab"
	"github.com/rohankatakam/collabgraph/internal/logging"
	"github.com/rohankatakam/collabgraph/internal/models"
)

var (
	fetchPlatform string
	fetchOutput   string
	noCache       bool
	purgeCache    bool
	retryFailed   bool
)

// maxFetchAttempts bounds how often --retry-failed revisits a name.
const maxFetchAttempts = 5

var fetchCmd = &cobra.Command{
	Use:   "fetch [names...]",
	Short: "Harvest organization activity from GitHub or GitLab",
	Long: `Fetches members, repositories, commit authors, pull or merge requests and
issues, writing one document per organization (GitHub) or group (GitLab)
into the fetch output directory.

Names default to github.orgs or gitlab.groups from the config.

Examples:
  collabgraph fetch acme initech
  collabgraph fetch --platform gitlab acme/platform
  collabgraph fetch --purge-cache
  collabgraph fetch --retry-failed`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchPlatform, "platform", "p", "github", "github or gitlab")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "output directory (default: fetch.output_dir)")
	fetchCmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore the repository cache")
	fetchCmd.Flags().BoolVar(&purgeCache, "purge-cache", false, "drop expired cache entries before fetching")
	fetchCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "fetch only the names that failed in earlier runs")
}

func runFetch(cmd *cobra.Command, args []string) error {
	switch fetchPlatform {
	case "github":
		if len(args) > 0 {
			cfg.GitHub.Orgs = args
		}
		cfg.GitLab.Groups = nil
	case "gitlab":
		if len(args) > 0 {
			cfg.GitLab.Groups = args
		}
		cfg.GitHub.Orgs = nil
	default:
		return errors.ValidationErrorf("unknown platform %q, want github or gitlab", fetchPlatform)
	}
	if fetchOutput != "" {
		cfg.Fetch.OutputDir = fetchOutput
	}

	platform := models.Platform(fetchPlatform)
	queue, err := dlq.Open(filepath.Join(cfg.Fetch.OutputDir, ".failed_fetches"), logging.Component("dlq"))
	if err != nil {
		return err
	}
	if retryFailed {
		var pending []string
		for _, e := range queue.Pending(platform, maxFetchAttempts) {
			pending = append(pending, e.Name)
		}
		if len(pending) == 0 {
			fmt.Println("nothing to retry")
			return nil
		}
		if platform == models.PlatformGitHub {
			cfg.GitHub.Orgs = pending
		} else {
			cfg.GitLab.Groups = pending
		}
	}

	if err := checkConfig(config.ValidationContextFetch); err != nil {
		return err
	}

	var fc *cache.FetchCache
	if !noCache && cfg.Fetch.CachePath != "" {
		var err error
		fc, err = cache.Open(cfg.Fetch.CachePath, cfg.Fetch.CacheTTL, logging.Component("cache"))
		if err != nil {
			return err
		}
		defer fc.Close()
		if purgeCache {
			n, err := fc.Purge()
			if err != nil {
				return err
			}
			logger.WithField("entries", n).Info("Purged expired cache entries")
		}
	}

	var src fetch.Source
	var names []string
	switch fetchPlatform {
	case "github":
		client, err := github.NewClient(cfg.GitHub, cfg.Fetch.MaxRetries, logging.Component("github"))
		if err != nil {
			return err
		}
		src = github.NewFetcher(client, cfg.GitHub, cfg.Fetch.Concurrency, fc, logging.Component("github"))
		names = cfg.GitHub.Orgs
	case "gitlab":
		client := gitlab.NewClient(cfg.GitLab, cfg.Fetch.MaxRetries, logging.Component("gitlab"))
		src = gitlab.NewFetcher(client, cfg.GitLab, cfg.Fetch.Concurrency, fc, logging.Component("gitlab"))
		names = cfg.GitLab.Groups
	}

	result, err := fetch.Run(cmd.Context(), src, names, cfg.Fetch.OutputDir, logging.Component("fetch"))
	if result != nil {
		recordFailures(queue, platform, result)
	}
	if err != nil {
		return err
	}
	for _, p := range result.Paths {
		fmt.Println(p)
	}
	if stats := queue.Stats(platform, maxFetchAttempts); stats.TotalEntries > 0 {
		fmt.Printf("%d failed (%d retryable with --retry-failed)\n", stats.TotalEntries, stats.RetryableEntries)
	}
	return nil
}

// recordFailures queues the names that failed and clears the ones that were
// written. Names a cancelled run never reached are left alone.
func recordFailures(queue *dlq.Queue, platform models.Platform, result *fetch.Result) {
	for name, ferr := range result.Failed {
		if err := queue.Enqueue(platform, name, ferr); err != nil {
			logger.WithError(err).Warn("could not record failed fetch")
		}
	}
	for _, name := range result.Fetched {
		if err := queue.MarkResolved(platform, name); err != nil {
			logger.WithError(err).Warn("could not update failed fetch queue")
		}
	}
}
