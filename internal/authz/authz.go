// Package authz implements the permission resolver (C8): it
// evaluates a list of permission contexts for a requester against the
// in-memory graph (C4).
package authz

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ArunaStorage/aos-server/internal/apierror"
	"github.com/ArunaStorage/aos-server/internal/codec"
	"github.com/ArunaStorage/aos-server/internal/graph"
	"github.com/ArunaStorage/aos-server/internal/kv"
	"github.com/ArunaStorage/aos-server/internal/model"
	"github.com/ArunaStorage/aos-server/internal/search"
)

// groupClosureDepth bounds the SharesPermissionTo closure walk from a
// requester's directly-granted groups.
const groupClosureDepth = 4

// hasPartDepth bounds the resource-hierarchy BFS from a permission
// target down to the resource under test (Project -> Folder -> Object).
const hasPartDepth = 3

// ContextKind enumerates the shapes a permission context can take.
type ContextKind uint8

const (
	CtxActivated ContextKind = iota
	CtxResource
	CtxUser
	CtxGlobalAdmin
	CtxGlobalProxy
)

// Context is one permission requirement attached to a request; see
// spec.md §4.8 for the five shapes.
type Context struct {
	Kind          ContextKind
	ResourceID    model.ID
	UserID        model.ID
	MinPermission model.Permission
	EndpointID    model.ID // for CtxGlobalProxy
}

func Activated() Context      { return Context{Kind: CtxActivated} }
func GlobalAdmin() Context    { return Context{Kind: CtxGlobalAdmin} }
func GlobalProxy(ep model.ID) Context {
	return Context{Kind: CtxGlobalProxy, EndpointID: ep}
}
func Resource(id model.ID, min model.Permission) Context {
	return Context{Kind: CtxResource, ResourceID: id, MinPermission: min}
}
func ForUser(id model.ID, min model.Permission) Context {
	return Context{Kind: CtxUser, UserID: id, MinPermission: min}
}

// Evaluate checks every context against requester, under a single
// graph read guard and KV read transaction shared across all
// contexts in the request.
func Evaluate(rtxn *kv.ROTxn, rg *graph.RGuard, requester model.Requester, contexts []Context) error {
	for _, ctx := range contexts {
		if err := evaluateOne(rtxn, rg, requester, ctx); err != nil {
			return err
		}
	}
	return nil
}

func evaluateOne(rtxn *kv.ROTxn, rg *graph.RGuard, requester model.Requester, ctx Context) error {
	switch ctx.Kind {
	case CtxActivated:
		return evalActivated(rtxn, rg, requester)
	case CtxGlobalAdmin:
		isAdmin, err := isGlobalAdmin(rtxn, rg, requester)
		if err != nil {
			return err
		}
		if !isAdmin {
			return apierror.Forbidden
		}
		return nil
	case CtxGlobalProxy:
		return evalGlobalProxy(requester, ctx.EndpointID)
	case CtxUser:
		return evalUser(rtxn, rg, requester, ctx.UserID, ctx.MinPermission)
	case CtxResource:
		return evalResource(rtxn, rg, requester, ctx.ResourceID, ctx.MinPermission)
	default:
		return apierror.New(apierror.KindForbidden, "unknown permission context")
	}
}

func requesterUserIdx(rtxn *kv.ROTxn, requester model.Requester) (model.Idx, bool, error) {
	var id model.ID
	switch requester.Kind {
	case model.RequesterUser:
		id = requester.UserID
	case model.RequesterServiceAccount:
		id = requester.ServiceAccountID
	default:
		return 0, false, nil
	}
	idx, ok, err := search.GetIdx(rtxn, id)
	return idx, ok, err
}

func evalActivated(rtxn *kv.ROTxn, rg *graph.RGuard, requester model.Requester) error {
	idx, ok, err := requesterUserIdx(rtxn, requester)
	if err != nil {
		return err
	}
	if !ok {
		return apierror.Unauthorized
	}
	v, ok, err := rtxn.Get(kv.TableDocuments, kv.EncodeIdxKey(uint32(idx)))
	if err != nil {
		return err
	}
	if !ok {
		return apierror.Unauthorized
	}
	_, doc, err := codec.Decode(v, nil)
	if err != nil {
		return err
	}
	if active, _ := doc.GetBoolFlag(model.FieldID_GlobalAdmin, 1); active {
		return nil
	}
	if admin, _ := doc.GetBoolFlag(model.FieldID_GlobalAdmin, 0); admin {
		return nil
	}
	return apierror.Forbidden
}

func isGlobalAdmin(rtxn *kv.ROTxn, rg *graph.RGuard, requester model.Requester) (bool, error) {
	idx, ok, err := requesterUserIdx(rtxn, requester)
	if err != nil || !ok {
		return false, err
	}
	v, ok, err := rtxn.Get(kv.TableDocuments, kv.EncodeIdxKey(uint32(idx)))
	if err != nil || !ok {
		return false, err
	}
	_, doc, err := codec.Decode(v, nil)
	if err != nil {
		return false, err
	}
	admin, _ := doc.GetBoolFlag(model.FieldID_GlobalAdmin, 0)
	return admin, nil
}

// evalGlobalProxy implements the GlobalProxy context of spec.md §4.8:
// the request must be signed by a registered endpoint key. Token
// verification (internal/token) only yields RequesterEndpoint after
// validating the signature against a registered IssuerEndpoint key,
// so by the time Evaluate runs this is just an identity check against
// the endpoint the caller declared it expects.
func evalGlobalProxy(requester model.Requester, wantEndpoint model.ID) error {
	if requester.Kind == model.RequesterEndpoint && requester.EndpointID == wantEndpoint {
		return nil
	}
	return apierror.New(apierror.KindForbidden, "request is not signed by the expected registered endpoint key")
}

func evalUser(rtxn *kv.ROTxn, rg *graph.RGuard, requester model.Requester, wantUser model.ID, min model.Permission) error {
	isAdmin, err := isGlobalAdmin(rtxn, rg, requester)
	if err != nil {
		return err
	}
	if isAdmin {
		return nil
	}
	if requester.Kind == model.RequesterUser && requester.UserID == wantUser {
		return nil
	}
	return apierror.Forbidden
}

// evalResource implements the bounded graph-walk algorithm from
// spec.md §4.8.
func evalResource(rtxn *kv.ROTxn, rg *graph.RGuard, requester model.Requester, resourceID model.ID, min model.Permission) error {
	if isAdmin, err := isGlobalAdmin(rtxn, rg, requester); err != nil {
		return err
	} else if isAdmin {
		return nil
	}

	resourceIdx, ok, err := search.GetIdx(rtxn, resourceID)
	if err != nil {
		return err
	}
	if !ok {
		return apierror.Unauthorized
	}

	// A GlobalProxy requester shortcuts only for resources whose
	// location lists that endpoint (spec.md §4.8 tie-breaking rule).
	if requester.Kind == model.RequesterEndpoint {
		atEndpoint, err := resourceLocatedAtEndpoint(rtxn, resourceIdx, requester.EndpointID)
		if err != nil {
			return err
		}
		if atEndpoint {
			return nil
		}
	}

	userIdx, ok, err := requesterUserIdx(rtxn, requester)
	if err != nil {
		return err
	}
	if !ok {
		return apierror.Unauthorized
	}

	grantingNodes := permissionGrantingNodes(rg, userIdx)

	// read_group_perms fast path (spec.md §4.2): for a Read-or-lower
	// request, a bitmap hit on any granting Group is sufficient and
	// skips the HasPart walk below. A miss still falls through to the
	// full walk, since the bitmap only covers direct Group->Resource
	// permission edges, not edges granted via SharesPermissionTo or
	// edges on the requester itself.
	if min <= model.PermissionRead {
		for r := range grantingNodes {
			variant, ok := rg.Variant(r)
			if !ok || variant != model.VariantGroup {
				continue
			}
			hit, err := groupHasReadAccess(rtxn, r, resourceIdx)
			if err != nil {
				return err
			}
			if hit {
				return nil
			}
		}
	}

	best := -1
	for r := range grantingNodes {
		for _, n := range rg.Neighbors(r, graph.Outgoing, nil) {
			if !n.Kind.IsPermission() {
				continue
			}
			perm, err := model.PermissionFromEdgeType(n.Kind)
			if err != nil {
				continue
			}
			if reachesViaHasPart(rg, n.Idx, resourceIdx, hasPartDepth) {
				if int(perm) > best {
					best = int(perm)
				}
			}
		}
	}

	if best < 0 || model.Permission(best) < min {
		return apierror.Forbidden
	}
	return nil
}

// resourceLocatedAtEndpoint reports whether resourceIdx's location
// field lists endpointID among its entries.
func resourceLocatedAtEndpoint(rtxn *kv.ROTxn, resourceIdx model.Idx, endpointID model.ID) (bool, error) {
	v, ok, err := rtxn.Get(kv.TableDocuments, kv.EncodeIdxKey(uint32(resourceIdx)))
	if err != nil || !ok {
		return false, err
	}
	_, doc, err := codec.Decode(v, nil)
	if err != nil {
		return false, err
	}
	raw, ok := doc.GetField(model.FieldID_Location)
	if !ok {
		return false, nil
	}
	locations, err := codec.DecodeLocations(raw)
	if err != nil {
		return false, err
	}
	for _, loc := range locations {
		if loc.EndpointID == endpointID {
			return true, nil
		}
	}
	return false, nil
}

// groupHasReadAccess consults groupIdx's materialized read_group_perms
// bitmap (internal/engine's updateReadGroupPerms keeps it current on
// every committed Group permission edge of Read or above).
func groupHasReadAccess(rtxn *kv.ROTxn, groupIdx, resourceIdx model.Idx) (bool, error) {
	v, ok, err := rtxn.Get(kv.TableReadGroupPerms, kv.EncodeIdxKey(uint32(groupIdx)))
	if err != nil || !ok {
		return false, err
	}
	bm := roaring.New()
	if err := bm.UnmarshalBinary(v); err != nil {
		return false, apierror.Wrap(apierror.KindParseError, err, "decoding read_group_perms bitmap")
	}
	return bm.Contains(uint32(resourceIdx)), nil
}

// permissionGrantingNodes computes R: the requester itself plus every
// group reachable via outgoing permission edges, closed over
// SharesPermissionTo up to groupClosureDepth.
func permissionGrantingNodes(rg *graph.RGuard, userIdx model.Idx) map[model.Idx]bool {
	r := map[model.Idx]bool{userIdx: true}

	frontier := []model.Idx{userIdx}
	for _, n := range rg.Neighbors(userIdx, graph.Outgoing, nil) {
		if n.Kind.IsPermission() {
			if !r[n.Idx] {
				r[n.Idx] = true
				frontier = append(frontier, n.Idx)
			}
		}
	}

	for depth := 0; depth < groupClosureDepth && len(frontier) > 0; depth++ {
		var next []model.Idx
		for _, g := range frontier {
			for _, n := range rg.Neighbors(g, graph.Outgoing, map[model.EdgeType]bool{model.EdgeSharesPermissionTo: true}) {
				if !r[n.Idx] {
					r[n.Idx] = true
					next = append(next, n.Idx)
				}
			}
		}
		frontier = next
	}
	return r
}

// reachesViaHasPart walks outgoing HasPart edges breadth-first from
// start, returning whether target is found within maxDepth hops.
func reachesViaHasPart(rg *graph.RGuard, start, target model.Idx, maxDepth int) bool {
	if start == target {
		return true
	}
	frontier := []model.Idx{start}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []model.Idx
		for _, idx := range frontier {
			for _, n := range rg.Neighbors(idx, graph.Outgoing, map[model.EdgeType]bool{model.EdgeHasPart: true}) {
				if n.Idx == target {
					return true
				}
				next = append(next, n.Idx)
			}
		}
		frontier = next
	}
	return false
}
