package output

import (
	"sort"

	"github.com/rohankatakam/collabgraph/internal/models"
)

// Report summarizes a graph for humans and scripts.
type Report struct {
	Stage        string           `json:"stage,omitempty"`
	Nodes        int              `json:"nodes"`
	Links        int              `json:"links"`
	Density      float64          `json:"density"`
	TotalWeight  float64          `json:"total_weight"`
	Groups       map[string]int   `json:"groups"`
	Interactions map[string]int   `json:"interactions"`
	Contributors []ContributorRow `json:"top_contributors"`
	Strongest    []LinkRow        `json:"strongest_links"`
}

// ContributorRow is one line of the contributor ranking.
type ContributorRow struct {
	ID      string  `json:"id"`
	Group   string  `json:"group"`
	Weight  float64 `json:"weight"`
	Degree  int     `json:"degree"`
	Sources int     `json:"sources"`
}

// LinkRow is one line of the link ranking.
type LinkRow struct {
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	Value        float64 `json:"value"`
	SharedRepos  int     `json:"shared_repos"`
	Interactions int     `json:"interactions"`
}

// BuildReport ranks the top n contributors by weight and the top n links by
// value. Ties break by id so reports are stable.
func BuildReport(stage string, g *models.Graph, n int) *Report {
	r := &Report{
		Stage:        stage,
		Nodes:        len(g.Nodes),
		Links:        len(g.Links),
		Groups:       map[string]int{},
		Interactions: map[string]int{},
	}
	if r.Nodes > 1 {
		r.Density = float64(2*r.Links) / float64(r.Nodes*(r.Nodes-1))
	}

	degree := map[string]int{}
	for _, l := range g.Links {
		degree[l.Source]++
		degree[l.Target]++
		r.TotalWeight += l.Value
		for _, in := range l.Interactions {
			r.Interactions[string(in.Type)]++
		}
	}

	for _, node := range g.Nodes {
		r.Groups[node.Group]++
		r.Contributors = append(r.Contributors, ContributorRow{
			ID:      node.ID,
			Group:   node.Group,
			Weight:  node.Val,
			Degree:  degree[node.ID],
			Sources: len(node.Sources),
		})
	}
	sort.Slice(r.Contributors, func(i, j int) bool {
		a, b := r.Contributors[i], r.Contributors[j]
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		return a.ID < b.ID
	})

	for _, l := range g.Links {
		r.Strongest = append(r.Strongest, LinkRow{
			Source:       l.Source,
			Target:       l.Target,
			Value:        l.Value,
			SharedRepos:  len(l.SharedRepos),
			Interactions: len(l.Interactions),
		})
	}
	sort.Slice(r.Strongest, func(i, j int) bool {
		a, b := r.Strongest[i], r.Strongest[j]
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Target < b.Target
	})

	if n > 0 {
		if len(r.Contributors) > n {
			r.Contributors = r.Contributors[:n]
		}
		if len(r.Strongest) > n {
			r.Strongest = r.Strongest[:n]
		}
	}
	return r
}
