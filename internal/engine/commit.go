package engine

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ArunaStorage/aos-server/internal/apierror"
	"github.com/ArunaStorage/aos-server/internal/eventlog"
	"github.com/ArunaStorage/aos-server/internal/graph"
	"github.com/ArunaStorage/aos-server/internal/kv"
	"github.com/ArunaStorage/aos-server/internal/model"
	"github.com/ArunaStorage/aos-server/internal/search"
)

// Commit runs the single-writer pipeline of spec.md §4.9 for req.
// Writers are serialized process-wide by writeMu; the graph write
// guard is held for the whole request but graph mutations are staged
// and only replayed after the KV transaction commits, so a failed
// commit leaves the graph exactly as it was (see shadow-apply note
// below).
func (s *Store) Commit(req WriteRequest) (Result, error) {
	waitStart := time.Now()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.metrics != nil {
		s.metrics.WriterQueueWait.Observe(time.Since(waitStart).Seconds())
	}

	commitStart := time.Now()
	fail := func(err error) (Result, error) {
		if s.metrics != nil {
			s.metrics.CommitsFailed.Inc()
		}
		return Result{}, err
	}

	wtxn, err := s.kv.BeginRW()
	if err != nil {
		return fail(err)
	}
	wg := s.graph.Lock()

	newIdx, resolvedEdges, affected, subscribed, eventID, err := s.stageAndWrite(wtxn, wg, req)
	if err != nil {
		wtxn.Abort()
		wg.Unlock()
		return fail(err)
	}

	if err := wtxn.Commit(); err != nil {
		// The KV write never took effect; the graph write guard is
		// released without ever having been mutated, so no replay
		// happened and C4 remains consistent with C2.
		wg.Unlock()
		return fail(err)
	}

	// Only now do we replay the staged mutations onto the live graph,
	// still holding wg so no reader observes a half-applied commit.
	s.applyStaged(wg, req, newIdx, resolvedEdges)
	wg.Unlock()

	if s.metrics != nil {
		s.metrics.CommitDuration.Observe(time.Since(commitStart).Seconds())
		s.metrics.CommitsTotal.Inc()
	}

	s.publish(eventID, affected, subscribed)
	return Result{EventID: eventID, NewIdx: newIdx, Affected: affected}, nil
}

// stageAndWrite performs every KV-visible effect of the commit and
// computes, without mutating wg, what the graph-side effects would be
// once applied. It returns the new node idx (in req.Nodes order), the
// full affected idx set, and the allocated event id.
func (s *Store) stageAndWrite(wtxn *kv.RWTxn, wg *graph.WGuard, req WriteRequest) ([]model.Idx, []pendingEdge, []model.Idx, []model.Idx, model.EventID, error) {
	fail := func(err error) ([]model.Idx, []pendingEdge, []model.Idx, []model.Idx, model.EventID, error) {
		return nil, nil, nil, nil, model.EventID{}, err
	}

	newIdx := make([]model.Idx, len(req.Nodes))
	affectedSet := map[model.Idx]bool{}
	view := newStagingView(wg)

	nextVertex := model.Idx(wg.NumVertices())
	for i, n := range req.Nodes {
		idx, err := search.AddDocument(wtxn, n.ID, n.Variant, n.Doc)
		if err != nil {
			return fail(err)
		}
		wouldBe := nextVertex + model.Idx(i)
		if idx != wouldBe {
			panic("commit: search-assigned idx diverged from graph vertex index")
		}
		newIdx[i] = idx
		affectedSet[idx] = true
		view.addPendingNode(idx, n.Variant)
	}

	for _, e := range req.Edges {
		source, err := resolveRef(wtxn, e.Source, newIdx)
		if err != nil {
			return fail(err)
		}
		target, err := resolveRef(wtxn, e.Target, newIdx)
		if err != nil {
			return fail(err)
		}
		if err := validateEdge(view, source, target, e.EdgeType); err != nil {
			return fail(err)
		}
		if _, ok, err := wtxn.Get(kv.TableRelationInfos, edgeTypeKey(e.EdgeType)); err != nil {
			return fail(err)
		} else if !ok {
			return fail(apierror.New(apierror.KindConflict, "edge type has no relation info installed"))
		}

		raw := edgeRawRelation(source, target, e.EdgeType)
		if err := wtxn.Put(kv.TableRelations, kv.EncodeIdxKey(uint32(source)), raw); err != nil {
			return fail(err)
		}
		view.addPendingEdge(pendingEdge{source: source, target: target, edgeType: e.EdgeType})
		affectedSet[source] = true
		affectedSet[target] = true

		if e.EdgeType.IsPermission() {
			if err := updateReadGroupPerms(wtxn, view, source, target, e.EdgeType); err != nil {
				return fail(err)
			}
		}
	}

	var subscribed []model.Idx
	for _, id := range req.Subscribed {
		if idx, ok, err := search.GetIdx(&wtxn.ROTxn, id); err != nil {
			return fail(err)
		} else if ok {
			subscribed = append(subscribed, idx)
		}
	}

	serial, err := wtxn.NextEventSerial()
	if err != nil {
		return fail(err)
	}
	eventID := model.NewEventID(serial, 0)

	affected := make([]model.Idx, 0, len(affectedSet))
	for idx := range affectedSet {
		affected = append(affected, idx)
	}
	if err := eventlog.Append(wtxn, eventID, affected); err != nil {
		return fail(err)
	}

	return newIdx, view.staged, affected, subscribed, eventID, nil
}

// applyStaged replays a committed request's node/edge creation onto
// the live graph; it is only ever called after the corresponding KV
// transaction has committed successfully. resolvedEdges carries the
// idx pairs stageAndWrite already resolved, so no second lookup of
// pre-existing node refs is needed here.
func (s *Store) applyStaged(wg *graph.WGuard, req WriteRequest, newIdx []model.Idx, resolvedEdges []pendingEdge) {
	for i, n := range req.Nodes {
		got := wg.AddNode(n.Variant)
		if got != newIdx[i] {
			panic("commit: graph replay diverged from staged idx")
		}
	}
	for _, e := range resolvedEdges {
		wg.AddEdge(e.source, e.target, e.edgeType)
	}
}

func resolveRef(wtxn *kv.RWTxn, ref NodeRef, newIdx []model.Idx) (model.Idx, error) {
	if ref.NewIndex >= 0 {
		return newIdx[ref.NewIndex], nil
	}
	idx, ok, err := search.GetIdx(&wtxn.ROTxn, ref.ExternalID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, apierror.NotFound(ref.ExternalID)
	}
	return idx, nil
}

func edgeTypeKey(e model.EdgeType) []byte {
	return kv.EncodeIdxKey(uint32(e))
}

func edgeRawRelation(source, target model.Idx, kind model.EdgeType) []byte {
	return graph.EncodeRawRelation(model.RawRelation{Source: source, Target: target, EdgeType: kind})
}

// updateReadGroupPerms materializes, for a Group source of a
// permission edge at Read or above, the bitmap of resource idx
// reachable from target via HasPart (target included), merging it
// into the group's entry in read_group_perms. edgeType carries the
// granted level; per spec.md §4.2, read_group_perms is the set of
// resources on which members have *at least* Read, so a PermissionNone
// (or any non-permission) edge must not merge anything into it.
func updateReadGroupPerms(wtxn *kv.RWTxn, view *stagingView, source, target model.Idx, edgeType model.EdgeType) error {
	perm, err := model.PermissionFromEdgeType(edgeType)
	if err != nil || perm < model.PermissionRead {
		return nil
	}

	variant, ok := view.Variant(source)
	if !ok || variant != model.VariantGroup {
		return nil
	}
	key := kv.EncodeIdxKey(uint32(source))
	bm := roaring.New()
	if v, ok, err := wtxn.Get(kv.TableReadGroupPerms, key); err != nil {
		return err
	} else if ok {
		if err := bm.UnmarshalBinary(v); err != nil {
			return apierror.Wrap(apierror.KindParseError, err, "decoding read_group_perms bitmap")
		}
	}

	for _, idx := range reachableResources(view, target) {
		bm.Add(uint32(idx))
	}

	buf, err := bm.ToBytes()
	if err != nil {
		return apierror.Wrap(apierror.KindDatabaseError, err, "serializing read_group_perms bitmap")
	}
	return wtxn.Put(kv.TableReadGroupPerms, key, buf)
}

// reachableResources returns root and every descendant reachable via
// outgoing HasPart edges. Unlike the bounded authorization walk in
// internal/authz, this traversal is unbounded since it must cover the
// full resource subtree being granted, whatever its depth.
func reachableResources(view *stagingView, root model.Idx) []model.Idx {
	seen := map[model.Idx]bool{root: true}
	out := []model.Idx{root}
	frontier := []model.Idx{root}
	for len(frontier) > 0 {
		var next []model.Idx
		for _, idx := range frontier {
			for _, n := range view.Neighbors(idx, graph.Outgoing, map[model.EdgeType]bool{model.EdgeHasPart: true}) {
				if !seen[n.Idx] {
					seen[n.Idx] = true
					out = append(out, n.Idx)
					next = append(next, n.Idx)
				}
			}
		}
		frontier = next
	}
	return out
}
