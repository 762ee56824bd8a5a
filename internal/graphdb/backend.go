// Package graphdb exports the contributor graph to a property graph
// database. Neo4j is the only backend; writes are idempotent MERGEs sent in
// UNWIND batches so re-exporting a graph updates it in place.
package graphdb

import "context"

// Backend is a graph database sink.
type Backend interface {
	// EnsureSchema creates the uniqueness constraints the MERGEs rely on.
	EnsureSchema(ctx context.Context) error

	// CreateNodes upserts nodes sharing one label, keyed on their ID.
	CreateNodes(ctx context.Context, label string, nodes []GraphNode) error

	// CreateEdges upserts directed edges of one type between two labels.
	CreateEdges(ctx context.Context, edgeType EdgeType, edges []GraphEdge) error

	// Query runs a read query and returns each record as a map.
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

	Close(ctx context.Context) error
}

// GraphNode is one node to upsert. Properties are set on top of the id.
type GraphNode struct {
	ID         string
	Properties map[string]any
}

// GraphEdge is one directed edge between two node ids.
type GraphEdge struct {
	From       string
	To         string
	Properties map[string]any
}

// EdgeType names a relationship and the labels it connects.
type EdgeType struct {
	Label     string
	FromLabel string
	ToLabel   string
}

const (
	LabelContributor  = "Contributor"
	LabelOrganization = "Organization"
)

var (
	// EdgeCollaboratesWith is the undirected collaboration link, stored
	// once from the lower id to the higher.
	EdgeCollaboratesWith = EdgeType{Label: "COLLABORATES_WITH", FromLabel: LabelContributor, ToLabel: LabelContributor}
	// EdgeMemberOf ties a contributor to each organization it was seen in.
	EdgeMemberOf = EdgeType{Label: "MEMBER_OF", FromLabel: LabelContributor, ToLabel: LabelOrganization}
)

// InteractionEdge is the directed actor-to-target relationship for an
// interaction type such as MERGED_PR.
func InteractionEdge(kind string) EdgeType {
	return EdgeType{Label: kind, FromLabel: LabelContributor, ToLabel: LabelContributor}
}
