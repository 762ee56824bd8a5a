// Package validation checks graph documents for structural problems and
// compares exported graphs with what landed in the database.
package validation

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/collabgraph/internal/graphdb"
	"github.com/rohankatakam/collabgraph/internal/models"
)

// ValidationResult contains the results of a consistency check
type ValidationResult struct {
	EntityType      string
	ExpectedCount   int64
	Neo4jCount      int64
	CoveragePercent float64
	PassedThreshold bool
}

// ConsistencyValidator compares a graph with the rows a backend holds for
// it.
type ConsistencyValidator struct {
	backend   graphdb.Backend
	threshold float64
	logger    *logrus.Entry
}

// NewConsistencyValidator creates a new consistency validator
func NewConsistencyValidator(backend graphdb.Backend, logger *logrus.Entry) *ConsistencyValidator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ConsistencyValidator{
		backend:   backend,
		threshold: 100.0,
		logger:    logger.WithField("component", "validation"),
	}
}

// ValidateExport counts every label and relationship type of g's projection
// in the backend. Earlier exports may leave extra rows behind, so a count at
// or above the expected one passes.
func (v *ConsistencyValidator) ValidateExport(ctx context.Context, g *models.Graph) ([]ValidationResult, error) {
	p := graphdb.Project(g)
	var results []ValidationResult

	for _, c := range []struct {
		label    string
		expected int
	}{
		{graphdb.LabelContributor, len(p.Contributors)},
		{graphdb.LabelOrganization, len(p.Organizations)},
	} {
		q, err := graphdb.BuildCountNodes(c.label)
		if err != nil {
			return nil, err
		}
		r, err := v.check(ctx, c.label, q, c.expected)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	edges := []struct {
		edgeType graphdb.EdgeType
		expected int
	}{
		{graphdb.EdgeMemberOf, len(p.Memberships)},
		{graphdb.EdgeCollaboratesWith, len(p.Links)},
	}
	kinds := make([]string, 0, len(p.Interactions))
	for kind := range p.Interactions {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		edges = append(edges, struct {
			edgeType graphdb.EdgeType
			expected int
		}{graphdb.InteractionEdge(kind), len(p.Interactions[kind])})
	}
	for _, e := range edges {
		q, err := graphdb.BuildCountEdges(e.edgeType)
		if err != nil {
			return nil, err
		}
		r, err := v.check(ctx, e.edgeType.Label, q, e.expected)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func (v *ConsistencyValidator) check(ctx context.Context, entity, query string, expected int) (ValidationResult, error) {
	records, err := v.backend.Query(ctx, query, nil)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("count %s: %w", entity, err)
	}
	var got int64
	if len(records) > 0 {
		got = toInt64(records[0]["count"])
	}

	coverage := 100.0
	if expected > 0 {
		coverage = float64(got) / float64(expected) * 100.0
	}
	result := ValidationResult{
		EntityType:      entity,
		ExpectedCount:   int64(expected),
		Neo4jCount:      got,
		CoveragePercent: coverage,
		PassedThreshold: coverage >= v.threshold,
	}
	if !result.PassedThreshold {
		v.logger.WithFields(logrus.Fields{
			"entity":   entity,
			"expected": expected,
			"found":    got,
		}).Warn("export incomplete")
	}
	return result, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// AllPassed reports whether every result met the threshold.
func AllPassed(results []ValidationResult) bool {
	for _, r := range results {
		if !r.PassedThreshold {
			return false
		}
	}
	return true
}
