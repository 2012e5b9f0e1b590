package engine

import (
	"github.com/ArunaStorage/aos-server/internal/codec"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// NodeRef names either a node being created in the same write request
// (NewIndex >= 0, indexing into WriteRequest.Nodes) or an existing
// node by its external id (NewIndex == -1).
type NodeRef struct {
	NewIndex   int
	ExternalID model.ID
}

// ExistingNode references a node already committed in an earlier
// transaction.
func ExistingNode(id model.ID) NodeRef { return NodeRef{NewIndex: -1, ExternalID: id} }

// NewNodeRef references the i-th entry of WriteRequest.Nodes.
func NewNodeRef(i int) NodeRef { return NodeRef{NewIndex: i} }

// NewNode describes one node to create in this write transaction.
type NewNode struct {
	ID      model.ID
	Variant model.Variant
	Doc     codec.Document
}

// EdgeSpec describes one edge to create in this write transaction,
// referencing its endpoints via NodeRef so a new edge can point at a
// node created earlier in the same request (e.g. a new resource's
// HasPart edge from its parent).
type EdgeSpec struct {
	Source   NodeRef
	Target   NodeRef
	EdgeType model.EdgeType
}

// WriteRequest is one atomic mutation: a batch of new nodes, the
// edges that bind them (to each other or to pre-existing nodes), and
// the set of external ids subscribers have asked to be notified about
// (kept disjoint from the affected set computed from the edges/nodes
// themselves, per the event log's contract).
type WriteRequest struct {
	Nodes      []NewNode
	Edges      []EdgeSpec
	Subscribed []model.ID
}

// Result is returned from a successful Commit.
type Result struct {
	EventID  model.EventID
	NewIdx   []model.Idx
	Affected []model.Idx
}
