package graphdb

import (
	"fmt"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// isValidIdentifier reports whether s can be spliced into Cypher as a label,
// relationship type or property key. Values always travel as parameters.
func isValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// BuildUnwindNodes returns a MERGE over $rows, each row carrying an id and a
// props map.
func BuildUnwindNodes(label string) (string, error) {
	if !isValidIdentifier(label) {
		return "", fmt.Errorf("invalid node label: %q", label)
	}
	return fmt.Sprintf(
		"UNWIND $rows AS row MERGE (n:%s {id: row.id}) SET n += row.props RETURN count(n) AS written",
		label,
	), nil
}

// BuildUnwindEdges returns a MATCH/MERGE over $rows, each row carrying from,
// to and props. Rows whose endpoints do not exist are silently skipped.
func BuildUnwindEdges(edgeType EdgeType) (string, error) {
	for _, id := range []string{edgeType.Label, edgeType.FromLabel, edgeType.ToLabel} {
		if !isValidIdentifier(id) {
			return "", fmt.Errorf("invalid identifier in edge type: %q", id)
		}
	}
	return fmt.Sprintf(
		"UNWIND $rows AS row "+
			"MATCH (a:%s {id: row.from}) MATCH (b:%s {id: row.to}) "+
			"MERGE (a)-[r:%s]->(b) SET r += row.props RETURN count(r) AS written",
		edgeType.FromLabel, edgeType.ToLabel, edgeType.Label,
	), nil
}

// BuildUniqueConstraint returns the idempotent uniqueness constraint on a
// label's id.
func BuildUniqueConstraint(label string) (string, error) {
	if !isValidIdentifier(label) {
		return "", fmt.Errorf("invalid node label: %q", label)
	}
	return fmt.Sprintf(
		"CREATE CONSTRAINT %s_id IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE",
		toSnake(label), label,
	), nil
}

func toSnake(s string) string {
	out := make([]byte, 0, len(s)+4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// BuildCountNodes returns a query counting nodes with label as "count".
func BuildCountNodes(label string) (string, error) {
	if !isValidIdentifier(label) {
		return "", fmt.Errorf("invalid node label: %q", label)
	}
	return fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS count", label), nil
}

// BuildCountEdges returns a query counting relationships of edgeType as
// "count".
func BuildCountEdges(edgeType EdgeType) (string, error) {
	for _, id := range []string{edgeType.Label, edgeType.FromLabel, edgeType.ToLabel} {
		if !isValidIdentifier(id) {
			return "", fmt.Errorf("invalid identifier in edge type: %q", id)
		}
	}
	return fmt.Sprintf("MATCH (:%s)-[r:%s]->(:%s) RETURN count(r) AS count",
		edgeType.FromLabel, edgeType.Label, edgeType.ToLabel), nil
}
