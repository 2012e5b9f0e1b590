package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ArunaStorage/aos-server/internal/graph"
	"github.com/ArunaStorage/aos-server/internal/model"
)

func TestAddNodeAssignsContiguousIdx(t *testing.T) {
	g := graph.New()
	wg := g.Lock()
	defer wg.Unlock()

	for i := 0; i < 5; i++ {
		idx := wg.AddNode(model.VariantResourceProject)
		require.EqualValues(t, i, idx)
	}
	require.Equal(t, 5, wg.NumVertices())
}

func TestAddEdgeVisibleFromBothEndpoints(t *testing.T) {
	g := graph.New()
	wg := g.Lock()
	parent := wg.AddNode(model.VariantResourceProject)
	child := wg.AddNode(model.VariantResourceFolder)
	wg.AddEdge(parent, child, model.EdgeHasPart)
	wg.Unlock()

	rg := g.RLock()
	defer rg.Unlock()

	out := rg.Neighbors(parent, graph.Outgoing, nil)
	require.Len(t, out, 1)
	require.Equal(t, child, out[0].Idx)
	require.Equal(t, model.EdgeHasPart, out[0].Kind)

	in := rg.Neighbors(child, graph.Incoming, nil)
	require.Len(t, in, 1)
	require.Equal(t, parent, in[0].Idx)
	require.Equal(t, model.EdgeHasPart, in[0].Kind)
}

func TestNeighborsFilterRestrictsEdgeType(t *testing.T) {
	g := graph.New()
	wg := g.Lock()
	a := wg.AddNode(model.VariantGroup)
	b := wg.AddNode(model.VariantResourceProject)
	wg.AddEdge(a, b, model.EdgePermissionRead)
	wg.AddEdge(a, b, model.EdgeSharesPermissionTo)
	wg.Unlock()

	rg := g.RLock()
	defer rg.Unlock()

	filtered := rg.Neighbors(a, graph.Outgoing, map[model.EdgeType]bool{model.EdgePermissionRead: true})
	require.Len(t, filtered, 1)
	require.Equal(t, model.EdgePermissionRead, filtered[0].Kind)

	all := rg.Neighbors(a, graph.Outgoing, nil)
	require.Len(t, all, 2)
}

// TestVertexCountMonotonic is spec property 1's graph-side half: the
// vertex count never decreases and every AddNode strictly extends it
// by one, over a random number of AddNode calls made before any edge
// is added.
func TestVertexCountMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := graph.New()
		wg := g.Lock()
		defer wg.Unlock()

		n := rapid.IntRange(0, 50).Draw(t, "n")
		var idxs []model.Idx
		for i := 0; i < n; i++ {
			before := wg.NumVertices()
			idx := wg.AddNode(model.VariantResourceObject)
			if int(idx) != before {
				t.Fatalf("AddNode returned %d, expected %d", idx, before)
			}
			idxs = append(idxs, idx)
		}
		if wg.NumVertices() != n {
			t.Fatalf("NumVertices() = %d, want %d", wg.NumVertices(), n)
		}

		for i := 1; i < len(idxs); i++ {
			wg.AddEdge(idxs[i-1], idxs[i], model.EdgeHasPart)
		}
	})
}
