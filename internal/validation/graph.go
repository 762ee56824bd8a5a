package validation

import (
	"fmt"

	"github.com/rohankatakam/collabgraph/internal/models"
)

// Violation is one structural problem in a graph document.
type Violation struct {
	Kind   string
	Detail string
}

func (v Violation) String() string { return v.Kind + ": " + v.Detail }

const (
	KindDuplicateNode = "duplicate_node"
	KindSelfLoop      = "self_loop"
	KindNonCanonical  = "non_canonical_link"
	KindDangling      = "dangling_link"
	KindDuplicateLink = "duplicate_link"
	KindNegative      = "negative_weight"
)

// CheckGraph returns every violation of the document rules: unique node
// ids, links stored once with source < target between known nodes, and no
// negative weights.
func CheckGraph(g *models.Graph) []Violation {
	var out []Violation
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if ids[n.ID] {
			out = append(out, Violation{KindDuplicateNode, n.ID})
		}
		ids[n.ID] = true
		if n.Val < 0 {
			out = append(out, Violation{KindNegative, fmt.Sprintf("node %s val %g", n.ID, n.Val)})
		}
	}

	keys := make(map[string]bool, len(g.Links))
	for _, l := range g.Links {
		key := l.Source + "|" + l.Target
		switch {
		case l.Source == l.Target:
			out = append(out, Violation{KindSelfLoop, key})
			continue
		case l.Source > l.Target:
			out = append(out, Violation{KindNonCanonical, key})
		}
		if !ids[l.Source] || !ids[l.Target] {
			out = append(out, Violation{KindDangling, key})
		}
		if keys[l.Key()] {
			out = append(out, Violation{KindDuplicateLink, l.Key()})
		}
		keys[l.Key()] = true
		if l.Value < 0 {
			out = append(out, Violation{KindNegative, fmt.Sprintf("link %s value %g", key, l.Value)})
		}
	}
	return out
}
