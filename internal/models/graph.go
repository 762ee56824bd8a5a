package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DefaultGroup is the group of every node the accumulator creates.
const DefaultGroup = "user"

// InteractionType is the kind of directed event recorded on a link.
type InteractionType string

const (
	InteractionMergedPR    InteractionType = "MERGED_PR"
	InteractionReviewedPR  InteractionType = "REVIEWED_PR"
	InteractionClosedIssue InteractionType = "CLOSED_ISSUE"
)

// Graph is the document every pipeline stage reads and writes.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Node is a canonical contributor. Val is serialized as "val", the key the
// force-graph renderer sizes nodes by.
type Node struct {
	ID      string   `json:"id"`
	Group   string   `json:"group"`
	Val     float64  `json:"val"`
	Img     string   `json:"img,omitempty"`
	Sources []string `json:"sources"`
}

// Link is an undirected, weighted collaboration edge with Source <= Target.
type Link struct {
	Source       string        `json:"source"`
	Target       string        `json:"target"`
	Value        float64       `json:"value"`
	SharedRepos  []string      `json:"shared_repos"`
	Interactions []Interaction `json:"interactions"`
}

// Interaction is one directed event between Actor and Target.
type Interaction struct {
	Actor  string          `json:"actor"`
	Target string          `json:"target"`
	Type   InteractionType `json:"type"`
	Repo   string          `json:"repo"`
}

// Key returns the canonical "a|b" key of an unordered pair.
func Key(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// Canonical orders a pair so the first element sorts first.
func Canonical(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Key returns the link's canonical pair key.
func (l *Link) Key() string {
	return Key(l.Source, l.Target)
}

// UnmarshalJSON accepts endpoints either as plain ids or as node objects
// ({"id": ...}), which is how force-graph renderers write links back out.
func (l *Link) UnmarshalJSON(data []byte) error {
	var raw struct {
		Source       endpoint      `json:"source"`
		Target       endpoint      `json:"target"`
		Value        float64       `json:"value"`
		SharedRepos  []string      `json:"shared_repos"`
		Interactions []Interaction `json:"interactions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = Link{
		Source:       string(raw.Source),
		Target:       string(raw.Target),
		Value:        raw.Value,
		SharedRepos:  raw.SharedRepos,
		Interactions: raw.Interactions,
	}
	return nil
}

type endpoint string

func (e *endpoint) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*e = endpoint(id)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("link endpoint must be an id or an object with an id: %w", err)
	}
	*e = endpoint(obj.ID)
	return nil
}

// Sort puts the graph in its canonical serialized order: nodes by id, links
// by (source, target), and every set-valued field sorted. Interaction lists
// keep their order.
func (g *Graph) Sort() {
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	for i := range g.Nodes {
		sort.Strings(g.Nodes[i].Sources)
		if g.Nodes[i].Sources == nil {
			g.Nodes[i].Sources = []string{}
		}
	}
	sort.Slice(g.Links, func(i, j int) bool {
		if g.Links[i].Source != g.Links[j].Source {
			return g.Links[i].Source < g.Links[j].Source
		}
		return g.Links[i].Target < g.Links[j].Target
	})
	for i := range g.Links {
		sort.Strings(g.Links[i].SharedRepos)
		if g.Links[i].SharedRepos == nil {
			g.Links[i].SharedRepos = []string{}
		}
		if g.Links[i].Interactions == nil {
			g.Links[i].Interactions = []Interaction{}
		}
	}
}

// NodeIndex maps node ids to their position in g.Nodes.
func (g *Graph) NodeIndex() map[string]int {
	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		idx[n.ID] = i
	}
	return idx
}

// Stats summarizes a graph for logs and reports.
type Stats struct {
	Nodes        int
	Links        int
	Interactions int
	TotalWeight  float64
}

func (g *Graph) Stats() Stats {
	s := Stats{Nodes: len(g.Nodes), Links: len(g.Links)}
	for _, l := range g.Links {
		s.Interactions += len(l.Interactions)
		s.TotalWeight += l.Value
	}
	return s
}
