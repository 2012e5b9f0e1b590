// Package graph implements the in-memory directed multigraph (C4):
// node variants and typed edges, addressed by the same u32 index the
// KV store assigns as a document's primary key.
package graph

import (
	"sync"

	"github.com/ArunaStorage/aos-server/internal/model"
)

// Direction selects which side of an edge Neighbors walks.
type Direction uint8

const (
	Outgoing Direction = iota
	Incoming
)

type edge struct {
	target model.Idx
	kind   model.EdgeType
}

// Graph is the reader-writer-locked adjacency-list multigraph. Only
// the single C2 writer may mutate it (through WGuard); unlimited
// concurrent readers may walk it through RGuard. The lock is never
// held across suspension or blocking I/O — callers take the guard,
// do purely in-memory work, and release it before returning.
type Graph struct {
	mu       sync.RWMutex
	variants []model.Variant
	out      [][]edge
	in       [][]edge
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// RGuard is a read-locked view of the graph.
type RGuard struct{ g *Graph }

// WGuard is a write-locked view of the graph, held by the single
// writer during a commit (C9).
type WGuard struct{ g *Graph }

func (g *Graph) RLock() *RGuard {
	g.mu.RLock()
	return &RGuard{g: g}
}

func (r *RGuard) Unlock() { r.g.mu.RUnlock() }

func (g *Graph) Lock() *WGuard {
	g.mu.Lock()
	return &WGuard{g: g}
}

func (w *WGuard) Unlock() { w.g.mu.Unlock() }

// NumVertices returns the number of vertices currently in the graph,
// i.e. the next idx AddNode would assign.
func (r *RGuard) NumVertices() int { return len(r.g.variants) }
func (w *WGuard) NumVertices() int { return len(w.g.variants) }

// AddNode appends a new vertex and returns its index. Callers (C9)
// must assert this equals the idx assigned by the search index for
// the same logical document, panicking before commit if not — a
// detected invariant violation must never be written (see
// internal/engine).
func (w *WGuard) AddNode(variant model.Variant) model.Idx {
	idx := model.Idx(len(w.g.variants))
	w.g.variants = append(w.g.variants, variant)
	w.g.out = append(w.g.out, nil)
	w.g.in = append(w.g.in, nil)
	return idx
}

// AddEdge inserts a directed edge. Callers must have already checked
// the structural invariants of the edge catalog (at most one HasPart
// parent, exactly one OwnedByUser, etc.) before calling.
func (w *WGuard) AddEdge(source, target model.Idx, kind model.EdgeType) {
	w.g.out[source] = append(w.g.out[source], edge{target: target, kind: kind})
	w.g.in[target] = append(w.g.in[target], edge{target: source, kind: kind})
}

// Variant returns the variant of vertex idx.
func (r *RGuard) Variant(idx model.Idx) (model.Variant, bool) {
	if int(idx) >= len(r.g.variants) {
		return 0, false
	}
	return r.g.variants[idx], true
}

func (w *WGuard) Variant(idx model.Idx) (model.Variant, bool) {
	if int(idx) >= len(w.g.variants) {
		return 0, false
	}
	return w.g.variants[idx], true
}

// Neighbor is one (neighbor idx, edge type) pair returned by Neighbors.
type Neighbor struct {
	Idx  model.Idx
	Kind model.EdgeType
}

// Neighbors iterates idx's outgoing or incoming edges, optionally
// restricted to a set of edge types. A nil filter matches every type.
func (r *RGuard) Neighbors(idx model.Idx, dir Direction, filter map[model.EdgeType]bool) []Neighbor {
	return neighbors(r.g, idx, dir, filter)
}

func (w *WGuard) Neighbors(idx model.Idx, dir Direction, filter map[model.EdgeType]bool) []Neighbor {
	return neighbors(w.g, idx, dir, filter)
}

func neighbors(g *Graph, idx model.Idx, dir Direction, filter map[model.EdgeType]bool) []Neighbor {
	if int(idx) >= len(g.variants) {
		return nil
	}
	var edges []edge
	if dir == Outgoing {
		edges = g.out[idx]
	} else {
		edges = g.in[idx]
	}
	out := make([]Neighbor, 0, len(edges))
	for _, e := range edges {
		if filter != nil && !filter[e.kind] {
			continue
		}
		out = append(out, Neighbor{Idx: e.target, Kind: e.kind})
	}
	return out
}
