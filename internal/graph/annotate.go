package graph

import (
	"strings"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rohankatakam/collabgraph/internal/models"
)

// AnnotateStats reports what annotation changed.
type AnnotateStats struct {
	InjectedNodes int
	UpdatedNodes  int
	GroupSizes    map[string]int
	CliqueLinks   int
	RuleLinks     int
	SkippedLinks  int
}

// Annotator assigns categories and adds hand-maintained people and links.
type Annotator struct {
	cfg        *AnnotationConfig
	edgeWeight Weight
	log        *logrus.Entry
}

func NewAnnotator(cfg *AnnotationConfig, weights Weights, log *logrus.Entry) *Annotator {
	if cfg == nil {
		cfg = DefaultAnnotationConfig()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Annotator{cfg: cfg, edgeWeight: weights.ManualEdge, log: log}
}

// Annotate returns a copy of g with manual nodes injected, every node's group
// set (manual entry, then category roster, then the default category) and
// clique and rule links added. Added links never duplicate an existing pair,
// never loop and never reference an unknown id.
func (a *Annotator) Annotate(g *models.Graph) (*models.Graph, AnnotateStats) {
	stats := AnnotateStats{GroupSizes: map[string]int{}}
	out := &models.Graph{
		Nodes: append([]models.Node(nil), g.Nodes...),
		Links: append([]models.Link(nil), g.Links...),
	}

	manual := map[string]ManualNode{}
	for _, mn := range a.cfg.ManualNodes {
		mn.ID = strings.TrimSpace(mn.ID)
		mn.Group = a.canonicalGroup(mn.Group)
		if mn.Group == "" {
			mn.Group = a.cfg.DefaultCategory
		}
		mn.Img = normalizeImageURL(mn.Img)
		manual[mn.ID] = mn
	}

	index := out.NodeIndex()
	for _, mn := range a.cfg.ManualNodes {
		mn = manual[strings.TrimSpace(mn.ID)]
		if i, ok := index[mn.ID]; ok {
			out.Nodes[i].Group = mn.Group
			if mn.Img != "" {
				out.Nodes[i].Img = mn.Img
			}
			stats.UpdatedNodes++
			continue
		}
		out.Nodes = append(out.Nodes, models.Node{
			ID:      mn.ID,
			Group:   mn.Group,
			Img:     mn.Img,
			Val:     WeightOf(1).Float(),
			Sources: []string{ManualSource},
		})
		index[mn.ID] = len(out.Nodes) - 1
		stats.InjectedNodes++
		a.log.WithFields(logrus.Fields{"id": mn.ID, "group": mn.Group}).Debug("injected manual node")
	}

	members := map[string][]string{}
	for i := range out.Nodes {
		n := &out.Nodes[i]
		category := a.cfg.DefaultCategory
		if mn, ok := manual[n.ID]; ok {
			category = mn.Group
		} else if c, ok := a.cfg.Categories[n.ID]; ok {
			category = a.canonicalGroup(c)
		}
		n.Group = category
		members[category] = append(members[category], n.ID)
	}
	for group, ids := range members {
		stats.GroupSizes[group] = len(ids)
	}

	existing := sets.NewString()
	for _, l := range out.Links {
		existing.Insert(l.Key())
	}
	addLink := func(u, v string) bool {
		if u == v {
			return false
		}
		_, okU := index[u]
		_, okV := index[v]
		if !okU || !okV {
			stats.SkippedLinks++
			return false
		}
		key := models.Key(u, v)
		if existing.Has(key) {
			return false
		}
		existing.Insert(key)
		s, t := models.Canonical(u, v)
		out.Links = append(out.Links, models.Link{
			Source:       s,
			Target:       t,
			Value:        a.edgeWeight.Float(),
			SharedRepos:  []string{ManualRepo},
			Interactions: []models.Interaction{},
		})
		return true
	}

	for _, group := range a.cfg.CliqueGroups {
		clique := sets.NewString(members[group]...)
		for _, ext := range a.cfg.CliqueExtensions[group] {
			clique.Insert(members[ext]...)
		}
		ids := clique.List()
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if addLink(ids[i], ids[j]) {
					stats.CliqueLinks++
				}
			}
		}
	}

	for _, rule := range a.cfg.Edges {
		from := strings.TrimSpace(rule.From)
		for _, to := range rule.To {
			if addLink(from, strings.TrimSpace(to)) {
				stats.RuleLinks++
			}
		}
		for _, group := range rule.ToGroups {
			for _, to := range members[a.canonicalGroup(group)] {
				if addLink(from, to) {
					stats.RuleLinks++
				}
			}
		}
	}

	out.Sort()
	return out, stats
}

func (a *Annotator) canonicalGroup(group string) string {
	group = strings.TrimSpace(group)
	if alias, ok := a.cfg.GroupAliases[group]; ok {
		return alias
	}
	return group
}

// normalizeImageURL adds https:// to scheme-less URLs.
func normalizeImageURL(img string) string {
	img = strings.TrimSpace(img)
	if img == "" || strings.HasPrefix(img, "http") {
		return img
	}
	return "https://" + img
}
