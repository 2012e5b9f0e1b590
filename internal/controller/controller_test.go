package controller_test

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ArunaStorage/aos-server/internal/authz"
	"github.com/ArunaStorage/aos-server/internal/codec"
	"github.com/ArunaStorage/aos-server/internal/controller"
	"github.com/ArunaStorage/aos-server/internal/engine"
	"github.com/ArunaStorage/aos-server/internal/graph"
	"github.com/ArunaStorage/aos-server/internal/kv"
	"github.com/ArunaStorage/aos-server/internal/model"
	"github.com/ArunaStorage/aos-server/internal/token"
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

func userDoc(id model.ID) codec.Document {
	_, doc, err := codec.EncodeNode(model.UserNode{
		Common: model.Common{ID: id, Name: "user"},
		Email:  "user@example.com",
		Active: true,
	})
	if err != nil {
		panic(err)
	}
	return doc
}

// openWiredStore builds a Store with a server issuer installed and a
// token service ready to mint and verify tokens, the same bootstrap
// sequence cmd/arunacored's serve command runs at startup.
func openWiredStore(t *testing.T) (*engine.Store, *controller.Controller) {
	t.Helper()
	store, err := engine.Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	const issuerName = "arunastore-test"
	const keyID = "1"
	store.Issuers().Install(model.Issuer{Name: issuerName, Type: model.IssuerServer}, map[string]crypto.PublicKey{keyID: pub})
	store.InstallTokenService(token.NewService(store.Issuers(), issuerName, keyID, priv))

	return store, controller.New(store, 2)
}

func TestDispatchReadRunsFnUnderVerifiedSnapshot(t *testing.T) {
	store, ctrl := openWiredStore(t)

	tokenExtID, user, resource := newID(1), newID(2), newID(3)
	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: tokenExtID, Variant: model.VariantToken, Doc: minimalDoc(tokenExtID)},
			{ID: user, Variant: model.VariantUser, Doc: userDoc(user)},
			{ID: resource, Variant: model.VariantResourceProject, Doc: minimalDoc(resource)},
		},
		Edges: []engine.EdgeSpec{
			{Source: engine.NewNodeRef(0), Target: engine.NewNodeRef(1), EdgeType: model.EdgeOwnedByUser},
			{Source: engine.NewNodeRef(1), Target: engine.NewNodeRef(2), EdgeType: model.EdgePermissionRead},
		},
	})
	require.NoError(t, err)

	signed, err := store.Tokens.Issue(tokenExtID, time.Hour, nil)
	require.NoError(t, err)

	called := false
	result, err := ctrl.DispatchRead(context.Background(), signed, []authz.Context{authz.Resource(resource, model.PermissionRead)},
		func(rtxn *kv.ROTxn, rg *graph.RGuard) (any, error) {
			called = true
			return "ok", nil
		})
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, "ok", result)
}

func TestDispatchReadRejectsInsufficientPermission(t *testing.T) {
	store, ctrl := openWiredStore(t)

	tokenExtID, user, resource := newID(1), newID(2), newID(3)
	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: tokenExtID, Variant: model.VariantToken, Doc: minimalDoc(tokenExtID)},
			{ID: user, Variant: model.VariantUser, Doc: userDoc(user)},
			{ID: resource, Variant: model.VariantResourceProject, Doc: minimalDoc(resource)},
		},
		Edges: []engine.EdgeSpec{
			{Source: engine.NewNodeRef(0), Target: engine.NewNodeRef(1), EdgeType: model.EdgeOwnedByUser},
			{Source: engine.NewNodeRef(1), Target: engine.NewNodeRef(2), EdgeType: model.EdgePermissionRead},
		},
	})
	require.NoError(t, err)

	signed, err := store.Tokens.Issue(tokenExtID, time.Hour, nil)
	require.NoError(t, err)

	called := false
	_, err = ctrl.DispatchRead(context.Background(), signed, []authz.Context{authz.Resource(resource, model.PermissionAdmin)},
		func(rtxn *kv.ROTxn, rg *graph.RGuard) (any, error) {
			called = true
			return nil, nil
		})
	require.Error(t, err)
	require.False(t, called)
}

func TestDispatchWriteCommitsAndReturnsEventID(t *testing.T) {
	store, ctrl := openWiredStore(t)

	tokenExtID, user, project := newID(1), newID(2), newID(3)
	_, err := store.Commit(engine.WriteRequest{
		Nodes: []engine.NewNode{
			{ID: tokenExtID, Variant: model.VariantToken, Doc: minimalDoc(tokenExtID)},
			{ID: user, Variant: model.VariantUser, Doc: userDoc(user)},
			{ID: project, Variant: model.VariantResourceProject, Doc: minimalDoc(project)},
		},
		Edges: []engine.EdgeSpec{
			{Source: engine.NewNodeRef(0), Target: engine.NewNodeRef(1), EdgeType: model.EdgeOwnedByUser},
			{Source: engine.NewNodeRef(1), Target: engine.NewNodeRef(2), EdgeType: model.EdgePermissionWrite},
		},
	})
	require.NoError(t, err)

	signed, err := store.Tokens.Issue(tokenExtID, time.Hour, nil)
	require.NoError(t, err)

	folder := newID(4)
	result, err := ctrl.DispatchWrite(context.Background(), signed, []authz.Context{authz.Resource(project, model.PermissionWrite)},
		engine.WriteRequest{
			Nodes: []engine.NewNode{{ID: folder, Variant: model.VariantResourceFolder, Doc: minimalDoc(folder)}},
			Edges: []engine.EdgeSpec{
				{Source: engine.ExistingNode(project), Target: engine.NewNodeRef(0), EdgeType: model.EdgeHasPart},
			},
		})
	require.NoError(t, err)
	require.NotEqual(t, model.EventID{}, result.EventID)
}

func TestDispatchWriteRejectsBadToken(t *testing.T) {
	_, ctrl := openWiredStore(t)

	_, err := ctrl.DispatchWrite(context.Background(), "not-a-real-token", nil, engine.WriteRequest{})
	require.Error(t, err)
}
