package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohankatakam/collabgraph/internal/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		ctx       ValidationContext
		mutate    func(*Config)
		wantValid bool
		wantMsg   string
	}{
		{
			name:      "defaults build",
			ctx:       ValidationContextBuild,
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name:    "negative weight",
			ctx:     ValidationContextBuild,
			mutate:  func(c *Config) { c.Weights.Interaction = -1 },
			wantMsg: "weights.interaction must not be negative",
		},
		{
			name:    "merge needs roster",
			ctx:     ValidationContextMerge,
			mutate:  func(*Config) {},
			wantMsg: "identity.roster_file is required",
		},
		{
			name:    "unknown storage",
			ctx:     ValidationContextBuild,
			mutate:  func(c *Config) { c.Storage.Type = "mongo" },
			wantMsg: `storage.type "mongo"`,
		},
		{
			name: "postgres dsn scheme",
			ctx:  ValidationContextBuild,
			mutate: func(c *Config) {
				c.Storage.Type = "postgres"
				c.Storage.PostgresDSN = "host=localhost"
			},
			wantMsg: "must start with postgres://",
		},
		{
			name: "fetch without token",
			ctx:  ValidationContextFetch,
			mutate: func(c *Config) {
				c.GitHub.Orgs = []string{"acme"}
			},
			wantMsg: "GITHUB_TOKEN is required",
		},
		{
			name: "fetch gitlab ok",
			ctx:  ValidationContextFetch,
			mutate: func(c *Config) {
				c.GitLab.Groups = []string{"acme/platform"}
				c.GitLab.Token = "glpat"
			},
			wantValid: true,
		},
		{
			name:    "neo4j missing uri",
			ctx:     ValidationContextNeo4j,
			mutate:  func(*Config) {},
			wantMsg: "NEO4J_URI is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			result := cfg.Validate(tt.ctx)

			if tt.wantValid {
				assert.False(t, result.HasErrors(), result.Error())
				assert.NoError(t, result.Err())
				return
			}
			assert.True(t, result.HasErrors())
			assert.Contains(t, result.Error(), tt.wantMsg)
			assert.True(t, errors.IsType(result.Err(), errors.ErrorTypeConfig))
		})
	}
}

func TestValidate_WeightWarning(t *testing.T) {
	cfg := Default()
	cfg.Weights.Interaction = 0.1

	result := cfg.Validate(ValidationContextBuild)
	assert.False(t, result.HasErrors())
	assert.Len(t, result.Warnings, 1)
}
