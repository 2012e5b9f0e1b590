package engine_test

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ArunaStorage/aos-server/internal/codec"
	"github.com/ArunaStorage/aos-server/internal/engine"
	"github.com/ArunaStorage/aos-server/internal/kv"
	"github.com/ArunaStorage/aos-server/internal/model"
)

func newID(b byte) model.ID {
	var id model.ID
	id[0] = b
	return id
}

func minimalDoc(id model.ID) codec.Document {
	doc := make(codec.Document)
	doc[model.FieldID_ID] = id[:]
	return doc
}

func openStore(t *testing.T) *engine.Store {
	t.Helper()
	log := zap.NewNop()
	store, err := engine.Open(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCommitCreatesNodeVisibleToReaders(t *testing.T) {
	store := openStore(t)
	id := newID(1)

	res, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{{ID: id, Variant: model.VariantResourceProject, Doc: minimalDoc(id)}},
	})
	require.NoError(t, err)
	require.Len(t, res.NewIdx, 1)
	require.EqualValues(t, 1, res.EventID.Serial())

	rtxn, rg, err := store.BeginRead()
	require.NoError(t, err)
	defer engine.EndRead(rtxn, rg)

	variant, ok := rg.Variant(res.NewIdx[0])
	require.True(t, ok)
	require.Equal(t, model.VariantResourceProject, variant)
}

func TestCommitRejectsSecondHasPartParent(t *testing.T) {
	store := openStore(t)
	parentA, parentB, child := newID(1), newID(2), newID(3)

	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: parentA, Variant: model.VariantResourceProject, Doc: minimalDoc(parentA)},
			{ID: parentB, Variant: model.VariantResourceProject, Doc: minimalDoc(parentB)},
			{ID: child, Variant: model.VariantResourceFolder, Doc: minimalDoc(child)},
		},
		Edges: []engine.EdgeSpec{
			{Source: engine.NewNodeRef(0), Target: engine.NewNodeRef(2), EdgeType: model.EdgeHasPart},
		},
	})
	require.NoError(t, err)

	_, err = store.Commit(engine.WriteRequest{
		Edges: []engine.EdgeSpec{
			{Source: engine.ExistingNode(parentB), Target: engine.ExistingNode(child), EdgeType: model.EdgeHasPart},
		},
	})
	require.Error(t, err)
}

func TestCommitRejectsSecondOwnedByUserEdge(t *testing.T) {
	store := openStore(t)
	token, userA, userB := newID(1), newID(2), newID(3)

	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: token, Variant: model.VariantToken, Doc: minimalDoc(token)},
			{ID: userA, Variant: model.VariantUser, Doc: minimalDoc(userA)},
			{ID: userB, Variant: model.VariantUser, Doc: minimalDoc(userB)},
		},
		Edges: []engine.EdgeSpec{
			{Source: engine.NewNodeRef(0), Target: engine.NewNodeRef(1), EdgeType: model.EdgeOwnedByUser},
		},
	})
	require.NoError(t, err)

	_, err = store.Commit(engine.WriteRequest{
		Edges: []engine.EdgeSpec{
			{Source: engine.ExistingNode(token), Target: engine.ExistingNode(userB), EdgeType: model.EdgeOwnedByUser},
		},
	})
	require.Error(t, err)
}

func TestCommitRejectsDuplicatePermissionEdge(t *testing.T) {
	store := openStore(t)
	group, resource := newID(1), newID(2)

	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: group, Variant: model.VariantGroup, Doc: minimalDoc(group)},
			{ID: resource, Variant: model.VariantResourceProject, Doc: minimalDoc(resource)},
		},
		Edges: []engine.EdgeSpec{
			{Source: engine.NewNodeRef(0), Target: engine.NewNodeRef(1), EdgeType: model.EdgePermissionRead},
		},
	})
	require.NoError(t, err)

	_, err = store.Commit(engine.WriteRequest{
		Edges: []engine.EdgeSpec{
			{Source: engine.ExistingNode(group), Target: engine.ExistingNode(resource), EdgeType: model.EdgePermissionWrite},
		},
	})
	require.Error(t, err)
}

// TestFailedCommitLeavesGraphUntouched exercises the shadow-staging
// requirement: a batch that creates new nodes/edges but fails
// partway through leaves the live graph exactly as it was before, so
// a subsequent valid commit still assigns contiguous idx from where
// the last successful commit left off.
func TestFailedCommitLeavesGraphUntouched(t *testing.T) {
	store := openStore(t)
	resource := newID(1)

	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{{ID: resource, Variant: model.VariantResourceProject, Doc: minimalDoc(resource)}},
	})
	require.NoError(t, err)

	before := store.Graph().RLock()
	beforeCount := before.NumVertices()
	before.Unlock()

	newNode := newID(2)
	_, err = store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{{ID: newNode, Variant: model.VariantResourceFolder, Doc: minimalDoc(newNode)}},
		Edges: []engine.EdgeSpec{
			// unknown edge type is rejected by validateEdge before any
			// KV write for this batch is committed.
			{Source: engine.NewNodeRef(0), Target: engine.ExistingNode(resource), EdgeType: model.EdgeType(9999)},
		},
	})
	require.Error(t, err)

	after := store.Graph().RLock()
	afterCount := after.NumVertices()
	after.Unlock()
	require.Equal(t, beforeCount, afterCount)
}

// TestCommitSkipsReadGroupPermsForPermissionNoneEdge exercises the
// maintainer-flagged bug: granting PermissionNone (a real grantable
// level) must not merge the target's HasPart subtree into the
// group's read_group_perms bitmap, since spec.md §4.2 defines that
// table as resources on which members have *at least* Read.
func TestCommitSkipsReadGroupPermsForPermissionNoneEdge(t *testing.T) {
	store := openStore(t)
	group, resource := newID(1), newID(2)

	res, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: group, Variant: model.VariantGroup, Doc: minimalDoc(group)},
			{ID: resource, Variant: model.VariantResourceProject, Doc: minimalDoc(resource)},
		},
		Edges: []engine.EdgeSpec{
			{Source: engine.NewNodeRef(0), Target: engine.NewNodeRef(1), EdgeType: model.EdgePermissionNone},
		},
	})
	require.NoError(t, err)

	rtxn, rg, err := store.BeginRead()
	require.NoError(t, err)
	defer engine.EndRead(rtxn, rg)

	_, ok, err := rtxn.Get(kv.TableReadGroupPerms, kv.EncodeIdxKey(uint32(res.NewIdx[0])))
	require.NoError(t, err)
	require.False(t, ok, "a PermissionNone grant must not create a read_group_perms entry")
}

// TestEventSerialSurvivesRestart is spec.md §8 scenario 6: event ids
// allocated after a restart must sort strictly after every event id
// persisted before the restart (invariant 6), not restart from zero.
func TestEventSerialSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	log := zap.NewNop()

	store, err := engine.Open(dir, log)
	require.NoError(t, err)

	id1 := newID(1)
	res1, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{{ID: id1, Variant: model.VariantResourceProject, Doc: minimalDoc(id1)}},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := engine.Open(dir, log)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	id2 := newID(2)
	res2, err := reopened.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{{ID: id2, Variant: model.VariantResourceProject, Doc: minimalDoc(id2)}},
	})
	require.NoError(t, err)

	require.Greater(t, res2.EventID.Serial(), res1.EventID.Serial())
}

func TestCommitMaterializesReadGroupPermsAcrossHasPartSubtree(t *testing.T) {
	store := openStore(t)
	group, project, folder, object := newID(1), newID(2), newID(3), newID(4)

	res, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: group, Variant: model.VariantGroup, Doc: minimalDoc(group)},
			{ID: project, Variant: model.VariantResourceProject, Doc: minimalDoc(project)},
			{ID: folder, Variant: model.VariantResourceFolder, Doc: minimalDoc(folder)},
			{ID: object, Variant: model.VariantResourceObject, Doc: minimalDoc(object)},
		},
		Edges: []engine.EdgeSpec{
			{Source: engine.NewNodeRef(1), Target: engine.NewNodeRef(2), EdgeType: model.EdgeHasPart},
			{Source: engine.NewNodeRef(2), Target: engine.NewNodeRef(3), EdgeType: model.EdgeHasPart},
			{Source: engine.NewNodeRef(0), Target: engine.NewNodeRef(1), EdgeType: model.EdgePermissionRead},
		},
	})
	require.NoError(t, err)

	// The HasPart chain and the permission edge are created in one
	// batch, so the group's bitmap can only hold the whole subtree if
	// the staging view saw the in-batch nodes/edges.
	rtxn, rg, err := store.BeginRead()
	require.NoError(t, err)
	defer engine.EndRead(rtxn, rg)

	v, ok, err := rtxn.Get(kv.TableReadGroupPerms, kv.EncodeIdxKey(uint32(res.NewIdx[0])))
	require.NoError(t, err)
	require.True(t, ok)
	bm := roaring.New()
	require.NoError(t, bm.UnmarshalBinary(v))
	require.True(t, bm.Contains(uint32(res.NewIdx[1])))
	require.True(t, bm.Contains(uint32(res.NewIdx[2])))
	require.True(t, bm.Contains(uint32(res.NewIdx[3])))
}
