package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	Pipeline   PipelineConfig   `mapstructure:"pipeline" yaml:"pipeline"`
	Weights    WeightsConfig    `mapstructure:"weights" yaml:"weights"`
	Limits     LimitsConfig     `mapstructure:"limits" yaml:"limits"`
	Identity   IdentityConfig   `mapstructure:"identity" yaml:"identity"`
	Annotation AnnotationConfig `mapstructure:"annotation" yaml:"annotation"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Neo4j      Neo4jConfig      `mapstructure:"neo4j" yaml:"neo4j"`
	GitHub     GitHubConfig     `mapstructure:"github" yaml:"github"`
	GitLab     GitLabConfig     `mapstructure:"gitlab" yaml:"gitlab"`
	Fetch      FetchConfig      `mapstructure:"fetch" yaml:"fetch"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

type PipelineConfig struct {
	InputDir string `mapstructure:"input_dir" yaml:"input_dir"`
	Workers  int    `mapstructure:"workers" yaml:"workers"`
}

// WeightsConfig holds the graph weighting constants.
type WeightsConfig struct {
	NodeInitial     float64 `mapstructure:"node_initial" yaml:"node_initial"`
	NodeRepoBonus   float64 `mapstructure:"node_repo_bonus" yaml:"node_repo_bonus"`
	CoParticipation float64 `mapstructure:"co_participation" yaml:"co_participation"`
	Interaction     float64 `mapstructure:"interaction" yaml:"interaction"`
	ManualEdge      float64 `mapstructure:"manual_edge" yaml:"manual_edge"`
}

type LimitsConfig struct {
	MaxParticipants        int `mapstructure:"max_participants" yaml:"max_participants"`
	MaxInteractionsPerLink int `mapstructure:"max_interactions_per_link" yaml:"max_interactions_per_link"`
}

type IdentityConfig struct {
	Bots       []string `mapstructure:"bots" yaml:"bots"`
	RosterFile string   `mapstructure:"roster_file" yaml:"roster_file"`
}

type AnnotationConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

type StorageConfig struct {
	Type        string `mapstructure:"type" yaml:"type"` // "json", "sqlite", "postgres"
	Dir         string `mapstructure:"dir" yaml:"dir"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

type Neo4jConfig struct {
	URI       string `mapstructure:"uri" yaml:"uri"`
	User      string `mapstructure:"user" yaml:"user"`
	Password  string `mapstructure:"password" yaml:"password"`
	Database  string `mapstructure:"database" yaml:"database"`
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"`
}

type GitHubConfig struct {
	Token          string   `mapstructure:"token" yaml:"token"`
	BaseURL        string   `mapstructure:"base_url" yaml:"base_url"`
	Orgs           []string `mapstructure:"orgs" yaml:"orgs"`
	RateLimit      float64  `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second
	LookbackDays   int      `mapstructure:"lookback_days" yaml:"lookback_days"`
	MaxCommitPages int      `mapstructure:"max_commit_pages" yaml:"max_commit_pages"`
	MaxPRPages     int      `mapstructure:"max_pr_pages" yaml:"max_pr_pages"`
	MaxIssuePages  int      `mapstructure:"max_issue_pages" yaml:"max_issue_pages"`
}

type GitLabConfig struct {
	Token     string   `mapstructure:"token" yaml:"token"`
	APIURL    string   `mapstructure:"api_url" yaml:"api_url"`
	Groups    []string `mapstructure:"groups" yaml:"groups"`
	RateLimit float64  `mapstructure:"rate_limit" yaml:"rate_limit"`
	MaxPages  int      `mapstructure:"max_pages" yaml:"max_pages"`
}

type FetchConfig struct {
	OutputDir   string        `mapstructure:"output_dir" yaml:"output_dir"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	CachePath   string        `mapstructure:"cache_path" yaml:"cache_path"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	MaxRetries  uint64        `mapstructure:"max_retries" yaml:"max_retries"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// DefaultBots is the bot account list used when none is configured.
var DefaultBots = []string{
	"sonarqubecloud",
	"github-actions",
	"dependabot",
	"renovate",
	"dependabot[bot]",
	"gitlab-bot",
	"actions-user",
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			InputDir: "data",
			Workers:  4,
		},
		Weights: WeightsConfig{
			NodeInitial:     1.0,
			NodeRepoBonus:   0.2,
			CoParticipation: 0.5,
			Interaction:     2.0,
			ManualEdge:      1.0,
		},
		Limits: LimitsConfig{
			MaxParticipants:        200,
			MaxInteractionsPerLink: 500,
		},
		Identity: IdentityConfig{
			Bots: append([]string(nil), DefaultBots...),
		},
		Storage: StorageConfig{
			Type:       "json",
			Dir:        "output",
			SQLitePath: filepath.Join(".collabgraph", "graph.db"),
		},
		Neo4j: Neo4jConfig{
			Database:  "neo4j",
			BatchSize: 1000,
		},
		GitHub: GitHubConfig{
			RateLimit:      2,
			LookbackDays:   365,
			MaxCommitPages: 4,
			MaxPRPages:     5,
			MaxIssuePages:  5,
		},
		GitLab: GitLabConfig{
			APIURL:    "https://gitlab.com/api/graphql",
			RateLimit: 2,
			MaxPages:  5,
		},
		Fetch: FetchConfig{
			OutputDir:   "data",
			Concurrency: 4,
			CachePath:   filepath.Join(".collabgraph", "fetch-cache.db"),
			CacheTTL:    24 * time.Hour,
			MaxRetries:  5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads .env files, the YAML config file (explicit path or the standard
// search locations) and COLLABGRAPH_* environment variables, in increasing
// order of precedence. A missing config file is not an error.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, Default())

	v.SetEnvPrefix("COLLABGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".collabgraph")
		v.AddConfigPath(".")
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".collabgraph"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg, NewKeyringManager())
	cfg.expandPaths()
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("pipeline.input_dir", cfg.Pipeline.InputDir)
	v.SetDefault("pipeline.workers", cfg.Pipeline.Workers)

	v.SetDefault("weights.node_initial", cfg.Weights.NodeInitial)
	v.SetDefault("weights.node_repo_bonus", cfg.Weights.NodeRepoBonus)
	v.SetDefault("weights.co_participation", cfg.Weights.CoParticipation)
	v.SetDefault("weights.interaction", cfg.Weights.Interaction)
	v.SetDefault("weights.manual_edge", cfg.Weights.ManualEdge)

	v.SetDefault("limits.max_participants", cfg.Limits.MaxParticipants)
	v.SetDefault("limits.max_interactions_per_link", cfg.Limits.MaxInteractionsPerLink)

	v.SetDefault("identity.bots", cfg.Identity.Bots)
	v.SetDefault("identity.roster_file", cfg.Identity.RosterFile)
	v.SetDefault("annotation.file", cfg.Annotation.File)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.dir", cfg.Storage.Dir)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", cfg.Storage.PostgresDSN)

	v.SetDefault("neo4j.uri", cfg.Neo4j.URI)
	v.SetDefault("neo4j.user", cfg.Neo4j.User)
	v.SetDefault("neo4j.password", cfg.Neo4j.Password)
	v.SetDefault("neo4j.database", cfg.Neo4j.Database)
	v.SetDefault("neo4j.batch_size", cfg.Neo4j.BatchSize)

	v.SetDefault("github.token", cfg.GitHub.Token)
	v.SetDefault("github.base_url", cfg.GitHub.BaseURL)
	v.SetDefault("github.orgs", cfg.GitHub.Orgs)
	v.SetDefault("github.rate_limit", cfg.GitHub.RateLimit)
	v.SetDefault("github.lookback_days", cfg.GitHub.LookbackDays)
	v.SetDefault("github.max_commit_pages", cfg.GitHub.MaxCommitPages)
	v.SetDefault("github.max_pr_pages", cfg.GitHub.MaxPRPages)
	v.SetDefault("github.max_issue_pages", cfg.GitHub.MaxIssuePages)

	v.SetDefault("gitlab.token", cfg.GitLab.Token)
	v.SetDefault("gitlab.api_url", cfg.GitLab.APIURL)
	v.SetDefault("gitlab.groups", cfg.GitLab.Groups)
	v.SetDefault("gitlab.rate_limit", cfg.GitLab.RateLimit)
	v.SetDefault("gitlab.max_pages", cfg.GitLab.MaxPages)

	v.SetDefault("fetch.output_dir", cfg.Fetch.OutputDir)
	v.SetDefault("fetch.concurrency", cfg.Fetch.Concurrency)
	v.SetDefault("fetch.cache_path", cfg.Fetch.CachePath)
	v.SetDefault("fetch.cache_ttl", cfg.Fetch.CacheTTL)
	v.SetDefault("fetch.max_retries", cfg.Fetch.MaxRetries)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.json", cfg.Log.JSON)
}

// loadEnvFiles loads .env files in order of precedence. godotenv never
// overrides a variable that is already set, so earlier files win.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		homeEnvFile := filepath.Join(homeDir, ".collabgraph", ".env")
		if _, err := os.Stat(homeEnvFile); err == nil {
			_ = godotenv.Load(homeEnvFile)
		}
	}
}

// applyEnvOverrides resolves credentials and the unprefixed variables the
// fetch scripts have always used. Tokens: env var, then keychain, then the
// config file value.
func applyEnvOverrides(cfg *Config, km *KeyringManager) {
	cfg.GitHub.Token = resolveSecret("GITHUB_TOKEN", KeyringGitHubTokenItem, cfg.GitHub.Token, km)
	cfg.GitLab.Token = resolveSecret("GITLAB_TOKEN", KeyringGitLabTokenItem, cfg.GitLab.Token, km)
	cfg.Neo4j.Password = resolveSecret("NEO4J_PASSWORD", KeyringNeo4jPasswordItem, cfg.Neo4j.Password, km)

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Neo4j.User = user
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.Neo4j.Database = db
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
}

func resolveSecret(envVar, keyringItem, fileValue string, km *KeyringManager) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	if km != nil {
		if v, err := km.Get(keyringItem); err == nil && v != "" {
			return v
		}
	}
	return fileValue
}

func (c *Config) expandPaths() {
	c.Pipeline.InputDir = expandPath(c.Pipeline.InputDir)
	c.Identity.RosterFile = expandPath(c.Identity.RosterFile)
	c.Annotation.File = expandPath(c.Annotation.File)
	c.Storage.Dir = expandPath(c.Storage.Dir)
	c.Storage.SQLitePath = expandPath(c.Storage.SQLitePath)
	c.Fetch.OutputDir = expandPath(c.Fetch.OutputDir)
	c.Fetch.CachePath = expandPath(c.Fetch.CachePath)
	c.Log.File = expandPath(c.Log.File)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[1:])
}

// Save writes the configuration as YAML. Secrets are left out.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	redacted := *c
	redacted.GitHub.Token = ""
	redacted.GitLab.Token = ""
	redacted.Neo4j.Password = ""
	setDefaults(v, &redacted)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
