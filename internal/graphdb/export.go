package graphdb

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rohankatakam/collabgraph/internal/models"
)

// Projection is a graph flattened into backend rows.
type Projection struct {
	Contributors  []GraphNode
	Organizations []GraphNode
	Memberships   []GraphEdge
	Links         []GraphEdge
	// Interactions holds one directed edge per (actor, target) and type,
	// counting the events between them.
	Interactions map[string][]GraphEdge
}

// ExportStats counts the rows sent to the backend.
type ExportStats struct {
	Contributors  int
	Organizations int
	Memberships   int
	Links         int
	Interactions  int
}

// Project flattens g. Organizations come from node sources, so the manual
// injection marker becomes an organization of its own.
func Project(g *models.Graph) Projection {
	p := Projection{Interactions: map[string][]GraphEdge{}}
	orgs := sets.NewString()

	for _, n := range g.Nodes {
		p.Contributors = append(p.Contributors, GraphNode{
			ID: n.ID,
			Properties: map[string]any{
				"group":   n.Group,
				"val":     n.Val,
				"img":     n.Img,
				"sources": append([]string{}, n.Sources...),
			},
		})
		for _, src := range n.Sources {
			orgs.Insert(src)
			p.Memberships = append(p.Memberships, GraphEdge{From: n.ID, To: src})
		}
	}
	for _, org := range orgs.List() {
		p.Organizations = append(p.Organizations, GraphNode{ID: org, Properties: map[string]any{"name": org}})
	}

	type directed struct {
		count int64
		repos sets.String
	}
	events := map[[3]string]*directed{}
	for _, l := range g.Links {
		p.Links = append(p.Links, GraphEdge{
			From: l.Source,
			To:   l.Target,
			Properties: map[string]any{
				"weight":       l.Value,
				"shared_repos": append([]string{}, l.SharedRepos...),
				"interactions": int64(len(l.Interactions)),
			},
		})
		for _, in := range l.Interactions {
			key := [3]string{string(in.Type), in.Actor, in.Target}
			d, ok := events[key]
			if !ok {
				d = &directed{repos: sets.NewString()}
				events[key] = d
			}
			d.count++
			d.repos.Insert(in.Repo)
		}
	}

	keys := make([][3]string, 0, len(events))
	for k := range events {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		for x := 0; x < 3; x++ {
			if keys[i][x] != keys[j][x] {
				return keys[i][x] < keys[j][x]
			}
		}
		return false
	})
	for _, k := range keys {
		d := events[k]
		p.Interactions[k[0]] = append(p.Interactions[k[0]], GraphEdge{
			From:       k[1],
			To:         k[2],
			Properties: map[string]any{"count": d.count, "repos": d.repos.List()},
		})
	}
	return p
}

// Export writes g to backend: constraints, then nodes, then edges.
func Export(ctx context.Context, backend Backend, g *models.Graph, log *logrus.Entry) (ExportStats, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	p := Project(g)
	var stats ExportStats

	if err := backend.EnsureSchema(ctx); err != nil {
		return stats, err
	}
	if err := backend.CreateNodes(ctx, LabelContributor, p.Contributors); err != nil {
		return stats, err
	}
	stats.Contributors = len(p.Contributors)
	if err := backend.CreateNodes(ctx, LabelOrganization, p.Organizations); err != nil {
		return stats, err
	}
	stats.Organizations = len(p.Organizations)
	if err := backend.CreateEdges(ctx, EdgeMemberOf, p.Memberships); err != nil {
		return stats, err
	}
	stats.Memberships = len(p.Memberships)
	if err := backend.CreateEdges(ctx, EdgeCollaboratesWith, p.Links); err != nil {
		return stats, err
	}
	stats.Links = len(p.Links)

	kinds := make([]string, 0, len(p.Interactions))
	for kind := range p.Interactions {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		if err := backend.CreateEdges(ctx, InteractionEdge(kind), p.Interactions[kind]); err != nil {
			return stats, err
		}
		stats.Interactions += len(p.Interactions[kind])
	}

	log.WithFields(logrus.Fields{
		"contributors":  stats.Contributors,
		"organizations": stats.Organizations,
		"links":         stats.Links,
		"interactions":  stats.Interactions,
	}).Info("exported graph")
	return stats, nil
}
