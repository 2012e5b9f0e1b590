package authz_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ArunaStorage/aos-server/internal/apierror"
	"github.com/ArunaStorage/aos-server/internal/authz"
	"github.com/ArunaStorage/aos-server/internal/codec"
	"github.com/ArunaStorage/aos-server/internal/engine"
	"github.com/ArunaStorage/aos-server/internal/model"
)

func newID(b byte) model.ID {
	var id model.ID
	id[0] = b
	return id
}

func openStore(t *testing.T) *engine.Store {
	t.Helper()
	store, err := engine.Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func userDoc(id model.ID, globalAdmin bool) codec.Document {
	_, doc, err := codec.EncodeNode(model.UserNode{
		Common:      model.Common{ID: id, Name: "user"},
		Email:       "user@example.com",
		GlobalAdmin: globalAdmin,
		Active:      true,
	})
	if err != nil {
		panic(err)
	}
	return doc
}

func minimalDoc(id model.ID) codec.Document {
	doc := make(codec.Document)
	doc[model.FieldID_ID] = id[:]
	return doc
}

// evalResource is the scenario harness: opens a fresh snapshot and
// runs one Resource context against it.
func evalResource(t *testing.T, store *engine.Store, requester model.Requester, resourceID model.ID, min model.Permission) error {
	t.Helper()
	rtxn, rg, err := store.BeginRead()
	require.NoError(t, err)
	defer engine.EndRead(rtxn, rg)
	return authz.Evaluate(rtxn, rg, requester, []authz.Context{authz.Resource(resourceID, min)})
}

func requesterFor(t *testing.T, store *engine.Store, userID model.ID) model.Requester {
	t.Helper()
	return model.Requester{Kind: model.RequesterUser, UserID: userID}
}

// TestCreateGroupAndAuthorizeAdmin is spec.md §8 scenario 1: a user
// who holds an Admin edge on a group can act as Admin on it, and that
// same edge does not grant Admin on an unrelated resource.
func TestCreateGroupAndAuthorizeAdmin(t *testing.T) {
	store := openStore(t)
	u, group, other := newID(1), newID(2), newID(3)

	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: u, Variant: model.VariantUser, Doc: userDoc(u, false)},
			{ID: group, Variant: model.VariantGroup, Doc: minimalDoc(group)},
			{ID: other, Variant: model.VariantResourceProject, Doc: minimalDoc(other)},
		},
	})
	require.NoError(t, err)

	_, err = store.Commit(engine.WriteRequest{
		Edges: []engine.EdgeSpec{
			{Source: engine.ExistingNode(u), Target: engine.ExistingNode(group), EdgeType: model.EdgePermissionAdmin},
		},
	})
	require.NoError(t, err)

	requester := requesterFor(t, store, u)
	require.NoError(t, evalResource(t, store, requester, group, model.PermissionAdmin))
	require.Error(t, evalResource(t, store, requester, other, model.PermissionRead))
}

// TestAddUserToGroupWithReadGrantsReadNotWrite is scenario 2.
func TestAddUserToGroupWithReadGrantsReadNotWrite(t *testing.T) {
	store := openStore(t)
	u2, group := newID(1), newID(2)

	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: u2, Variant: model.VariantUser, Doc: userDoc(u2, false)},
			{ID: group, Variant: model.VariantGroup, Doc: minimalDoc(group)},
		},
	})
	require.NoError(t, err)

	_, err = store.Commit(engine.WriteRequest{
		Edges: []engine.EdgeSpec{
			{Source: engine.ExistingNode(u2), Target: engine.ExistingNode(group), EdgeType: model.EdgePermissionRead},
		},
	})
	require.NoError(t, err)

	requester := requesterFor(t, store, u2)
	require.NoError(t, evalResource(t, store, requester, group, model.PermissionRead))

	err = evalResource(t, store, requester, group, model.PermissionWrite)
	require.Error(t, err)
	var ae *apierror.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, apierror.KindForbidden, ae.Kind)
}

// TestPermissionInheritanceThroughHasPart is scenario 3: a Write grant
// on a project is inherited two HasPart hops down to an object, but
// does not imply Admin.
func TestPermissionInheritanceThroughHasPart(t *testing.T) {
	store := openStore(t)
	u, project, folder, object := newID(1), newID(2), newID(3), newID(4)

	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: u, Variant: model.VariantUser, Doc: userDoc(u, false)},
			{ID: project, Variant: model.VariantResourceProject, Doc: minimalDoc(project)},
			{ID: folder, Variant: model.VariantResourceFolder, Doc: minimalDoc(folder)},
			{ID: object, Variant: model.VariantResourceObject, Doc: minimalDoc(object)},
		},
		Edges: []engine.EdgeSpec{
			{Source: engine.NewNodeRef(1), Target: engine.NewNodeRef(2), EdgeType: model.EdgeHasPart},
			{Source: engine.NewNodeRef(2), Target: engine.NewNodeRef(3), EdgeType: model.EdgeHasPart},
		},
	})
	require.NoError(t, err)

	_, err = store.Commit(engine.WriteRequest{
		Edges: []engine.EdgeSpec{
			{Source: engine.ExistingNode(u), Target: engine.ExistingNode(project), EdgeType: model.EdgePermissionWrite},
		},
	})
	require.NoError(t, err)

	requester := requesterFor(t, store, u)
	require.NoError(t, evalResource(t, store, requester, object, model.PermissionWrite))
	require.Error(t, evalResource(t, store, requester, object, model.PermissionAdmin))
}

// TestGlobalAdminShortcutsToAdminEverywhere exercises the
// global_admin shortcut: it grants Admin on any resource regardless
// of graph-resolved permission edges.
func TestGlobalAdminShortcutsToAdminEverywhere(t *testing.T) {
	store := openStore(t)
	admin, resource := newID(1), newID(2)

	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: admin, Variant: model.VariantUser, Doc: userDoc(admin, true)},
			{ID: resource, Variant: model.VariantResourceProject, Doc: minimalDoc(resource)},
		},
	})
	require.NoError(t, err)

	requester := requesterFor(t, store, admin)
	require.NoError(t, evalResource(t, store, requester, resource, model.PermissionAdmin))
}

// TestPermissionMonotonicity is the law from spec.md §8: granting
// Admin implies the resolver also grants Read at the same resource.
func TestPermissionMonotonicity(t *testing.T) {
	store := openStore(t)
	u, resource := newID(1), newID(2)

	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: u, Variant: model.VariantUser, Doc: userDoc(u, false)},
			{ID: resource, Variant: model.VariantResourceProject, Doc: minimalDoc(resource)},
		},
	})
	require.NoError(t, err)

	_, err = store.Commit(engine.WriteRequest{
		Edges: []engine.EdgeSpec{
			{Source: engine.ExistingNode(u), Target: engine.ExistingNode(resource), EdgeType: model.EdgePermissionAdmin},
		},
	})
	require.NoError(t, err)

	requester := requesterFor(t, store, u)
	require.NoError(t, evalResource(t, store, requester, resource, model.PermissionAdmin))
	require.NoError(t, evalResource(t, store, requester, resource, model.PermissionRead))
}

// TestSharesPermissionToClosureGrantsInheritedGroupPermission verifies
// the bounded SharesPermissionTo closure: a user with Read on group A
// gets group B's Write on B's resource when A --SharesPermissionTo--> B.
func TestSharesPermissionToClosureGrantsInheritedGroupPermission(t *testing.T) {
	store := openStore(t)
	u, groupA, groupB, resource := newID(1), newID(2), newID(3), newID(4)

	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: u, Variant: model.VariantUser, Doc: userDoc(u, false)},
			{ID: groupA, Variant: model.VariantGroup, Doc: minimalDoc(groupA)},
			{ID: groupB, Variant: model.VariantGroup, Doc: minimalDoc(groupB)},
			{ID: resource, Variant: model.VariantResourceProject, Doc: minimalDoc(resource)},
		},
		Edges: []engine.EdgeSpec{
			{Source: engine.NewNodeRef(2), Target: engine.NewNodeRef(3), EdgeType: model.EdgePermissionWrite},
			{Source: engine.NewNodeRef(1), Target: engine.NewNodeRef(2), EdgeType: model.EdgeSharesPermissionTo},
		},
	})
	require.NoError(t, err)

	_, err = store.Commit(engine.WriteRequest{
		Edges: []engine.EdgeSpec{
			{Source: engine.ExistingNode(u), Target: engine.ExistingNode(groupA), EdgeType: model.EdgePermissionRead},
		},
	})
	require.NoError(t, err)

	requester := requesterFor(t, store, u)
	require.NoError(t, evalResource(t, store, requester, resource, model.PermissionWrite))
}

func resourceDocAt(id model.ID, locations []model.Location) codec.Document {
	_, doc, err := codec.EncodeNode(model.ResourceNode{
		Common:   model.Common{ID: id, Name: "object"},
		Variant:  model.VariantResourceObject,
		Location: locations,
	})
	if err != nil {
		panic(err)
	}
	return doc
}

// TestGlobalProxyRequesterMatchesDeclaredEndpoint is spec.md §4.8:
// GlobalProxy succeeds only when the requester's verified endpoint id
// equals the one the context asks for.
func TestGlobalProxyRequesterMatchesDeclaredEndpoint(t *testing.T) {
	store := openStore(t)
	endpoint, other := newID(1), newID(2)

	requester := model.Requester{Kind: model.RequesterEndpoint, EndpointID: endpoint}

	rtxn, rg, err := store.BeginRead()
	require.NoError(t, err)
	defer engine.EndRead(rtxn, rg)

	require.NoError(t, authz.Evaluate(rtxn, rg, requester, []authz.Context{authz.GlobalProxy(endpoint)}))
	require.Error(t, authz.Evaluate(rtxn, rg, requester, []authz.Context{authz.GlobalProxy(other)}))
}

// TestGlobalProxyLocationShortcutGrantsAccessToHostedResourceOnly is
// spec.md §4.8's tie-breaking rule: an endpoint requester reaches a
// resource whose location lists it, without holding any permission
// edge, but gets no such shortcut for a resource hosted elsewhere.
func TestGlobalProxyLocationShortcutGrantsAccessToHostedResourceOnly(t *testing.T) {
	store := openStore(t)
	endpoint := newID(1)
	hosted, elsewhere := newID(2), newID(3)

	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: hosted, Variant: model.VariantResourceObject, Doc: resourceDocAt(hosted, []model.Location{{EndpointID: endpoint, SyncingStatus: "synced"}})},
			{ID: elsewhere, Variant: model.VariantResourceObject, Doc: resourceDocAt(elsewhere, nil)},
		},
	})
	require.NoError(t, err)

	requester := model.Requester{Kind: model.RequesterEndpoint, EndpointID: endpoint}
	require.NoError(t, evalResource(t, store, requester, hosted, model.PermissionWrite))
	require.Error(t, evalResource(t, store, requester, elsewhere, model.PermissionRead))
}

func TestUserContextAllowsSelfAndGlobalAdminOnly(t *testing.T) {
	store := openStore(t)
	u1, u2, admin := newID(1), newID(2), newID(3)

	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: u1, Variant: model.VariantUser, Doc: userDoc(u1, false)},
			{ID: u2, Variant: model.VariantUser, Doc: userDoc(u2, false)},
			{ID: admin, Variant: model.VariantUser, Doc: userDoc(admin, true)},
		},
	})
	require.NoError(t, err)

	rtxn, rg, err := store.BeginRead()
	require.NoError(t, err)
	defer engine.EndRead(rtxn, rg)

	require.NoError(t, authz.Evaluate(rtxn, rg, requesterFor(t, store, u1), []authz.Context{authz.ForUser(u1, model.PermissionRead)}))
	require.Error(t, authz.Evaluate(rtxn, rg, requesterFor(t, store, u1), []authz.Context{authz.ForUser(u2, model.PermissionRead)}))
	require.NoError(t, authz.Evaluate(rtxn, rg, requesterFor(t, store, admin), []authz.Context{authz.ForUser(u2, model.PermissionRead)}))
}
