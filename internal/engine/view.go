package engine

import (
	"github.com/ArunaStorage/aos-server/internal/graph"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// stagingView overlays a batch's not-yet-applied node/edge creations
// on top of the live graph, so structural checks and read_group_perms
// materialization see a consistent picture of what the graph will
// look like after applyStaged runs, without ever mutating wg early.
type stagingView struct {
	wg           *graph.WGuard
	newVariants  map[model.Idx]model.Variant
	staged       []pendingEdge
}

func newStagingView(wg *graph.WGuard) *stagingView {
	return &stagingView{wg: wg, newVariants: map[model.Idx]model.Variant{}}
}

func (v *stagingView) addPendingNode(idx model.Idx, variant model.Variant) {
	v.newVariants[idx] = variant
}

func (v *stagingView) addPendingEdge(e pendingEdge) {
	v.staged = append(v.staged, e)
}

func (v *stagingView) Variant(idx model.Idx) (model.Variant, bool) {
	if variant, ok := v.newVariants[idx]; ok {
		return variant, true
	}
	return v.wg.Variant(idx)
}

// Neighbors returns idx's neighbors as the live graph plus staged
// edges would show them once applied, restricted to kind if filter is
// non-nil.
func (v *stagingView) Neighbors(idx model.Idx, dir graph.Direction, filter map[model.EdgeType]bool) []graph.Neighbor {
	var out []graph.Neighbor
	if _, isNew := v.newVariants[idx]; !isNew {
		out = v.wg.Neighbors(idx, dir, filter)
	}
	for _, e := range v.staged {
		var from, to model.Idx
		switch dir {
		case graph.Outgoing:
			from, to = e.source, e.target
		case graph.Incoming:
			from, to = e.target, e.source
		}
		if from != idx {
			continue
		}
		if filter != nil && !filter[e.edgeType] {
			continue
		}
		out = append(out, graph.Neighbor{Idx: to, Kind: e.edgeType})
	}
	return out
}
