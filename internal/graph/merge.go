package graph

import (
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rohankatakam/collabgraph/internal/identity"
	"github.com/rohankatakam/collabgraph/internal/models"
)

// ReconcileStats reports how the roster reshaped the graph.
type ReconcileStats struct {
	NodesIn       int
	NodesOut      int
	DroppedNodes  int // not on the roster
	MergedAliases int // folded into an already seen master
	LinksIn       int
	LinksOut      int
	DroppedLinks  int // an endpoint not on the roster
	SelfLinks     int // both endpoints resolved to one master
	UnseenMasters int
}

// Reconcile collapses aliases onto their roster master and keeps only
// rostered contributors. Merged nodes sum their weights and union their
// sources; links are re-keyed on masters, and a link whose endpoints
// collapse into one person is dropped along with its weight. Interactions
// keep the handles they were recorded with.
func Reconcile(g *models.Graph, aliases *identity.AliasMap, log *logrus.Entry) (*models.Graph, ReconcileStats) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	stats := ReconcileStats{NodesIn: len(g.Nodes), LinksIn: len(g.Links)}

	type mergedNode struct {
		node    models.Node
		val     Weight
		sources sets.String
	}
	nodes := map[string]*mergedNode{}
	var order []string

	for _, n := range g.Nodes {
		master, ok := aliases.Resolve(n.ID)
		if !ok {
			stats.DroppedNodes++
			log.WithField("id", n.ID).Debug("dropping contributor not on roster")
			continue
		}
		val := WeightOf(n.Val)
		if val == 0 {
			val = WeightOf(1)
		}
		if m, seen := nodes[master]; seen {
			stats.MergedAliases++
			m.val += val
			m.sources.Insert(n.Sources...)
			continue
		}
		copied := n
		copied.ID = master
		nodes[master] = &mergedNode{node: copied, val: val, sources: sets.NewString(n.Sources...)}
		order = append(order, master)
	}

	type mergedLink struct {
		link  models.Link
		value Weight
		repos sets.String
	}
	links := map[string]*mergedLink{}
	var linkOrder []string

	for _, l := range g.Links {
		src, okS := aliases.Resolve(l.Source)
		dst, okT := aliases.Resolve(l.Target)
		if !okS || !okT {
			stats.DroppedLinks++
			continue
		}
		if src == dst {
			stats.SelfLinks++
			continue
		}
		key := models.Key(src, dst)
		if m, seen := links[key]; seen {
			m.value += WeightOf(l.Value)
			m.repos.Insert(l.SharedRepos...)
			m.link.Interactions = append(m.link.Interactions, l.Interactions...)
			continue
		}
		s, t := models.Canonical(src, dst)
		interactions := make([]models.Interaction, len(l.Interactions))
		copy(interactions, l.Interactions)
		links[key] = &mergedLink{
			link:  models.Link{Source: s, Target: t, Interactions: interactions},
			value: WeightOf(l.Value),
			repos: sets.NewString(l.SharedRepos...),
		}
		linkOrder = append(linkOrder, key)
	}

	out := &models.Graph{
		Nodes: make([]models.Node, 0, len(order)),
		Links: make([]models.Link, 0, len(linkOrder)),
	}
	for _, id := range order {
		m := nodes[id]
		m.node.Val = m.val.Float()
		m.node.Sources = m.sources.List()
		out.Nodes = append(out.Nodes, m.node)
	}
	for _, key := range linkOrder {
		m := links[key]
		m.link.Value = m.value.Float()
		m.link.SharedRepos = m.repos.List()
		out.Links = append(out.Links, m.link)
	}
	out.Sort()

	for _, master := range aliases.Masters() {
		if _, ok := nodes[master]; !ok {
			stats.UnseenMasters++
		}
	}
	stats.NodesOut = len(out.Nodes)
	stats.LinksOut = len(out.Links)
	return out, stats
}
