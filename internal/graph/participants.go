package graph

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rohankatakam/collabgraph/internal/identity"
	"github.com/rohankatakam/collabgraph/internal/models"
)

// ExtractParticipants returns the distinct, sorted humans active in a
// repository: commit contributors, pull/merge request authors, mergers and
// reviewers, and issue authors and closers. Commenters and assignees are
// recorded by the fetchers but do not count as participation.
func ExtractParticipants(repo models.Repository, n *identity.Normalizer) []string {
	set := sets.NewString()
	add := func(mention string) {
		if id, ok := n.Normalize(mention); ok {
			set.Insert(id)
		}
	}

	for _, c := range repo.Contributors {
		add(c)
	}
	for _, pr := range repo.ChangeRequests() {
		add(pr.Author)
		add(pr.MergedBy)
		for _, r := range pr.Reviewers {
			add(r)
		}
	}
	for _, iss := range repo.Issues {
		add(iss.Author)
		add(iss.ClosedBy)
	}
	return set.List()
}
