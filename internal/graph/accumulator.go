package graph

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/identity"
	"github.com/rohankatakam/collabgraph/internal/models"
)

// Options tune the accumulator.
type Options struct {
	Weights Weights
	// MaxParticipants bounds the pairwise expansion of one repository. Every
	// participant still becomes a node; only pairs among the first
	// MaxParticipants sorted ids get co-participation weight.
	MaxParticipants int
	// MaxInteractionsPerLink bounds the interaction list of one link. Events
	// past the cap still add weight.
	MaxInteractionsPerLink int
	Bots                   []string
}

// DefaultOptions mirrors config.Default().
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Weights:                WeightsFromConfig(cfg.Weights),
		MaxParticipants:        cfg.Limits.MaxParticipants,
		MaxInteractionsPerLink: cfg.Limits.MaxInteractionsPerLink,
		Bots:                   cfg.Identity.Bots,
	}
}

// AccumulateStats counts what the accumulator did and what it dropped.
type AccumulateStats struct {
	Repositories          int
	SkippedRepositories   int
	TruncatedRepositories int
	Interactions          int
	DroppedInteractions   int
}

func (s *AccumulateStats) add(o AccumulateStats) {
	s.Repositories += o.Repositories
	s.SkippedRepositories += o.SkippedRepositories
	s.TruncatedRepositories += o.TruncatedRepositories
	s.Interactions += o.Interactions
	s.DroppedInteractions += o.DroppedInteractions
}

type nodeAcc struct {
	// bonus excludes the initial weight so partial accumulators can be summed.
	bonus   Weight
	sources sets.String
}

type linkAcc struct {
	source, target string
	value          Weight
	repos          sets.String
	interactions   []models.Interaction
	capped         bool
}

// Accumulator builds node and link tables across repositories and
// organizations. It is not safe for concurrent use; parallel loaders give
// each worker its own Accumulator and fold them together with Merge.
type Accumulator struct {
	opts       Options
	normalizer *identity.Normalizer
	log        *logrus.Entry

	nodes map[string]*nodeAcc
	links map[string]*linkAcc
	stats AccumulateStats
}

func NewAccumulator(opts Options, log *logrus.Entry) *Accumulator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Accumulator{
		opts:       opts,
		normalizer: identity.NewNormalizer(opts.Bots),
		log:        log,
		nodes:      map[string]*nodeAcc{},
		links:      map[string]*linkAcc{},
	}
}

// Normalizer exposes the accumulator's mention normalizer.
func (a *Accumulator) Normalizer() *identity.Normalizer {
	return a.normalizer
}

// Stats returns the counters gathered so far.
func (a *Accumulator) Stats() AccumulateStats {
	return a.stats
}

// TouchNode creates the node on first sight and records org as a source.
func (a *Accumulator) TouchNode(id, org string) {
	n, ok := a.nodes[id]
	if !ok {
		n = &nodeAcc{sources: sets.NewString()}
		a.nodes[id] = n
	}
	n.sources.Insert(org)
}

// link returns the canonical link for a pair, nil for a self pair.
func (a *Accumulator) link(u, v string) *linkAcc {
	if u == v {
		return nil
	}
	key := models.Key(u, v)
	l, ok := a.links[key]
	if !ok {
		s, t := models.Canonical(u, v)
		l = &linkAcc{source: s, target: t, repos: sets.NewString()}
		a.links[key] = l
	}
	return l
}

// SkipRepository counts a repository record the caller could not decode.
func (a *Accumulator) SkipRepository(org, reason string) {
	a.stats.SkippedRepositories++
	a.log.WithFields(logrus.Fields{"org": org, "reason": reason}).Warn("skipping malformed repository record")
}

// AddRepository folds one repository's activity into the graph.
func (a *Accumulator) AddRepository(org string, repo models.Repository) {
	if repo.Name == "" {
		a.SkipRepository(org, "missing name")
		return
	}
	a.stats.Repositories++

	participants := ExtractParticipants(repo, a.normalizer)
	for _, p := range participants {
		a.TouchNode(p, org)
		a.nodes[p].bonus += a.opts.Weights.NodeRepoBonus
	}

	paired := participants
	if limit := a.opts.MaxParticipants; limit > 0 && len(paired) > limit {
		a.stats.TruncatedRepositories++
		a.log.WithFields(logrus.Fields{
			"org":          org,
			"repo":         repo.Name,
			"participants": len(paired),
			"cap":          limit,
		}).Warn("participant cap reached, co-participation limited to first ids")
		paired = paired[:limit]
	}
	for i := 0; i < len(paired); i++ {
		for j := i + 1; j < len(paired); j++ {
			l := a.link(paired[i], paired[j])
			l.value += a.opts.Weights.CoParticipation
			l.repos.Insert(repo.Name)
		}
	}

	for _, pr := range repo.ChangeRequests() {
		author, ok := a.normalizer.Normalize(pr.Author)
		if !ok {
			continue
		}
		if merger, ok := a.normalizer.Normalize(pr.MergedBy); ok {
			a.addInteraction(merger, author, models.InteractionMergedPR, repo.Name)
		}
		for _, rev := range pr.Reviewers {
			if reviewer, ok := a.normalizer.Normalize(rev); ok {
				a.addInteraction(reviewer, author, models.InteractionReviewedPR, repo.Name)
			}
		}
	}
	for _, iss := range repo.Issues {
		author, ok := a.normalizer.Normalize(iss.Author)
		if !ok {
			continue
		}
		if closer, ok := a.normalizer.Normalize(iss.ClosedBy); ok {
			a.addInteraction(closer, author, models.InteractionClosedIssue, repo.Name)
		}
	}
}

func (a *Accumulator) addInteraction(actor, target string, kind models.InteractionType, repo string) {
	l := a.link(actor, target)
	if l == nil {
		return
	}
	l.value += a.opts.Weights.Interaction
	l.repos.Insert(repo)
	a.stats.Interactions++
	a.appendInteractions(l, models.Interaction{Actor: actor, Target: target, Type: kind, Repo: repo})
}

func (a *Accumulator) appendInteractions(l *linkAcc, in ...models.Interaction) {
	room := len(in)
	if limit := a.opts.MaxInteractionsPerLink; limit > 0 {
		room = limit - len(l.interactions)
		if room < 0 {
			room = 0
		}
	}
	if room >= len(in) {
		l.interactions = append(l.interactions, in...)
		return
	}
	l.interactions = append(l.interactions, in[:room]...)
	a.stats.DroppedInteractions += len(in) - room
	if !l.capped {
		l.capped = true
		a.log.WithFields(logrus.Fields{
			"link": fmt.Sprintf("%s|%s", l.source, l.target),
			"cap":  a.opts.MaxInteractionsPerLink,
		}).Warn("interaction cap reached, further events only add weight")
	}
}

// Merge folds other into a. Other's interactions land after a's, so merging
// partials in file order reproduces a sequential pass.
func (a *Accumulator) Merge(other *Accumulator) {
	for id, on := range other.nodes {
		n, ok := a.nodes[id]
		if !ok {
			n = &nodeAcc{sources: sets.NewString()}
			a.nodes[id] = n
		}
		n.bonus += on.bonus
		n.sources = n.sources.Union(on.sources)
	}
	for key, ol := range other.links {
		l, ok := a.links[key]
		if !ok {
			l = &linkAcc{source: ol.source, target: ol.target, repos: sets.NewString()}
			a.links[key] = l
		}
		l.value += ol.value
		l.repos = l.repos.Union(ol.repos)
		a.appendInteractions(l, ol.interactions...)
	}
	a.stats.add(other.stats)
}

// Graph renders the accumulated tables in canonical order.
func (a *Accumulator) Graph() *models.Graph {
	g := &models.Graph{
		Nodes: make([]models.Node, 0, len(a.nodes)),
		Links: make([]models.Link, 0, len(a.links)),
	}
	for id, n := range a.nodes {
		g.Nodes = append(g.Nodes, models.Node{
			ID:      id,
			Group:   models.DefaultGroup,
			Val:     (a.opts.Weights.NodeInitial + n.bonus).Float(),
			Img:     AvatarURL(id),
			Sources: n.sources.List(),
		})
	}
	for _, l := range a.links {
		interactions := make([]models.Interaction, len(l.interactions))
		copy(interactions, l.interactions)
		g.Links = append(g.Links, models.Link{
			Source:       l.source,
			Target:       l.target,
			Value:        l.value.Float(),
			SharedRepos:  l.repos.List(),
			Interactions: interactions,
		})
	}
	g.Sort()
	return g
}

// AvatarURL is the GitHub avatar for a handle.
func AvatarURL(id string) string {
	return "https://github.com/" + id + ".png"
}
