package engine

import (
	"github.com/ArunaStorage/aos-server/internal/apierror"
	"github.com/ArunaStorage/aos-server/internal/graph"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// pendingEdge mirrors a committed edge before it is applied to the
// live graph, so structural checks within one batch see edges staged
// earlier in the same request even though the graph itself has not
// been mutated yet.
type pendingEdge struct {
	source, target model.Idx
	edgeType       model.EdgeType
}

// validateEdge enforces the structural rules of spec.md §3 against
// view, which already reflects everything staged earlier in this
// request. The underlying write guard must be held for the whole
// request so neither side can change underneath the check.
func validateEdge(view *stagingView, source, target model.Idx, edgeType model.EdgeType) error {
	if int(edgeType) < 0 || int(edgeType) >= model.NumEdgeTypes {
		return apierror.New(apierror.KindConversionError, "unknown edge type")
	}

	switch edgeType {
	case model.EdgeHasPart:
		if len(view.Neighbors(target, graph.Incoming, map[model.EdgeType]bool{model.EdgeHasPart: true})) > 0 {
			return apierror.New(apierror.KindConflict, "target already has a HasPart parent")
		}
	case model.EdgeOwnedByUser:
		if len(view.Neighbors(source, graph.Outgoing, map[model.EdgeType]bool{model.EdgeOwnedByUser: true})) > 0 {
			return apierror.New(apierror.KindConflict, "token already has an owner")
		}
	case model.EdgeGroupPartOfRealm, model.EdgeGroupAdministratesRealm:
		filter := map[model.EdgeType]bool{model.EdgeGroupPartOfRealm: true, model.EdgeGroupAdministratesRealm: true}
		if len(view.Neighbors(source, graph.Outgoing, filter)) > 0 {
			return apierror.New(apierror.KindConflict, "group already belongs to a realm")
		}
	default:
		if edgeType.IsPermission() {
			for _, n := range view.Neighbors(source, graph.Outgoing, nil) {
				if n.Idx == target && n.Kind.IsPermission() {
					return apierror.New(apierror.KindConflict, "permission edge already exists between source and target")
				}
			}
		}
	}
	return nil
}
