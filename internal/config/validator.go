package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rohankatakam/collabgraph/internal/errors"
)

// ValidationContext names the command whose requirements are checked.
type ValidationContext string

const (
	ValidationContextBuild    ValidationContext = "build"
	ValidationContextMerge    ValidationContext = "merge"
	ValidationContextAnnotate ValidationContext = "annotate"
	ValidationContextFetch    ValidationContext = "fetch"
	ValidationContextNeo4j    ValidationContext = "neo4j"
	ValidationContextAll      ValidationContext = "all"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  ❌ %s\n", err))
	}
	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  ⚠️  %s\n", warn))
		}
	}
	return sb.String()
}

// Err converts a failed result into a config error, nil otherwise.
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigError(strings.TrimSpace(vr.Error()))
}

// Validate checks the settings a command depends on.
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextBuild:
		c.validatePipeline(result)
		c.validateWeights(result)
		c.validateStorage(result)
	case ValidationContextMerge:
		c.validateRoster(result)
		c.validateStorage(result)
	case ValidationContextAnnotate:
		c.validateStorage(result)
		c.validateWeights(result)
	case ValidationContextFetch:
		c.validateFetch(result)
	case ValidationContextNeo4j:
		c.validateNeo4j(result)
	case ValidationContextAll:
		c.validatePipeline(result)
		c.validateWeights(result)
		c.validateRoster(result)
		c.validateStorage(result)
		c.validateFetch(result)
	}
	return result
}

func (c *Config) validatePipeline(result *ValidationResult) {
	if c.Pipeline.InputDir == "" {
		result.AddError("pipeline.input_dir is required")
	}
	if c.Pipeline.Workers < 1 {
		result.AddWarning("pipeline.workers is %d, using 1", c.Pipeline.Workers)
	}
	if c.Limits.MaxParticipants < 2 {
		result.AddError("limits.max_participants must be at least 2, got %d", c.Limits.MaxParticipants)
	}
	if c.Limits.MaxInteractionsPerLink < 1 {
		result.AddError("limits.max_interactions_per_link must be positive, got %d", c.Limits.MaxInteractionsPerLink)
	}
}

func (c *Config) validateWeights(result *ValidationResult) {
	w := c.Weights
	for name, value := range map[string]float64{
		"weights.node_initial":     w.NodeInitial,
		"weights.node_repo_bonus":  w.NodeRepoBonus,
		"weights.co_participation": w.CoParticipation,
		"weights.interaction":      w.Interaction,
		"weights.manual_edge":      w.ManualEdge,
	} {
		if value < 0 {
			result.AddError("%s must not be negative, got %g", name, value)
		}
	}
	if w.Interaction < w.CoParticipation {
		result.AddWarning("weights.interaction (%g) is below weights.co_participation (%g); direct interactions will rank below shared repositories", w.Interaction, w.CoParticipation)
	}
}

func (c *Config) validateRoster(result *ValidationResult) {
	if c.Identity.RosterFile == "" {
		result.AddError("identity.roster_file is required for merging aliases")
	}
}

func (c *Config) validateStorage(result *ValidationResult) {
	switch c.Storage.Type {
	case "json", "":
		if c.Storage.Dir == "" {
			result.AddError("storage.dir is required for json storage")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			result.AddError("storage.sqlite_path is required for sqlite storage")
		}
	case "postgres":
		dsn := c.Storage.PostgresDSN
		if dsn == "" {
			result.AddError("POSTGRES_DSN is required for postgres storage")
		} else if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
			result.AddError("POSTGRES_DSN must start with postgres:// or postgresql://")
		} else if strings.Contains(dsn, "sslmode=disable") {
			result.AddWarning("POSTGRES_DSN has sslmode=disable")
		}
	default:
		result.AddError("storage.type %q is not one of json, sqlite, postgres", c.Storage.Type)
	}
}

func (c *Config) validateFetch(result *ValidationResult) {
	if len(c.GitHub.Orgs) == 0 && len(c.GitLab.Groups) == 0 {
		result.AddError("nothing to fetch: set github.orgs or gitlab.groups")
	}
	if len(c.GitHub.Orgs) > 0 && c.GitHub.Token == "" {
		result.AddError("GITHUB_TOKEN is required to fetch GitHub organizations")
	}
	if len(c.GitLab.Groups) > 0 && c.GitLab.Token == "" {
		result.AddError("GITLAB_TOKEN is required to fetch GitLab groups")
	}
	if c.GitLab.APIURL != "" {
		if _, err := url.ParseRequestURI(c.GitLab.APIURL); err != nil {
			result.AddError("gitlab.api_url is invalid: %v", err)
		}
	}
	if c.GitHub.RateLimit <= 0 || c.GitLab.RateLimit <= 0 {
		result.AddError("rate limits must be positive")
	}
	if c.GitHub.LookbackDays <= 0 {
		result.AddWarning("github.lookback_days is %d, commit history will not be bounded", c.GitHub.LookbackDays)
	}
	if c.Fetch.OutputDir == "" {
		result.AddError("fetch.output_dir is required")
	}
}

func (c *Config) validateNeo4j(result *ValidationResult) {
	if c.Neo4j.URI == "" {
		result.AddError("NEO4J_URI is required but not set")
	} else if _, err := url.Parse(c.Neo4j.URI); err != nil {
		result.AddError("NEO4J_URI is invalid: %v", err)
	}
	if c.Neo4j.User == "" {
		result.AddError("NEO4J_USER is required but not set")
	}
	if c.Neo4j.Password == "" {
		result.AddError("NEO4J_PASSWORD is required but not set")
	} else if c.Neo4j.Password == "neo4j" || c.Neo4j.Password == "password" {
		result.AddWarning("NEO4J_PASSWORD is set to a very common password")
	}
	if c.Neo4j.Database == "" {
		result.AddWarning("NEO4J_DATABASE is not set, will use 'neo4j' as default")
	}
}
