package model

import (
	"encoding/binary"

	"github.com/ArunaStorage/aos-server/internal/apierror"
)

// EdgeType is the closed set of 12 typed relation kinds. Numeric
// values of the permission-edge subset (2..6) coincide with the
// Permission enum so a Permission can be cast directly to an
// EdgeType when writing a permission edge.
type EdgeType uint32

const (
	EdgeHasPart EdgeType = iota // 0: Resource -> Resource, target has <=1 incoming
	EdgeOwnsProject
	EdgePermissionNone     // 2
	EdgePermissionRead     // 3
	EdgePermissionAppend   // 4
	EdgePermissionWrite    // 5
	EdgePermissionAdmin    // 6
	EdgeSharesPermissionTo // 7
	EdgeOwnedByUser        // 8
	EdgeGroupPartOfRealm   // 9
	EdgeGroupAdministratesRealm
	EdgeRealmUsesEndpoint // 11
)

// NumEdgeTypes is the size of the closed edge-type catalog.
const NumEdgeTypes = int(EdgeRealmUsesEndpoint) + 1

// IsPermission reports whether e is one of the five permission edge
// types (2..6), in which case it carries the same numeric value as
// the corresponding Permission.
func (e EdgeType) IsPermission() bool {
	return e >= EdgePermissionNone && e <= EdgePermissionAdmin
}

// RelationInfo is the metadata record describing one edge_type: its
// forward/backward labels and whether it is hidden from external
// relation listings. Every edge_type in the catalog above must have a
// corresponding RelationInfo before any edge of that type may be
// written (invariant 7).
type RelationInfo struct {
	EdgeType EdgeType
	Forward  string
	Backward string
	Internal bool
}

// DefaultRelationInfos is the closed catalog of 12 edge kinds; it is
// installed into the relation_infos table at store initialization.
func DefaultRelationInfos() []RelationInfo {
	return []RelationInfo{
		{EdgeHasPart, "HasPart", "PartOf", false},
		{EdgeOwnsProject, "OwnsProject", "ProjectOwnedBy", false},
		{EdgePermissionNone, "PermissionNone", "PermissionNone", true},
		{EdgePermissionRead, "PermissionRead", "PermissionRead", true},
		{EdgePermissionAppend, "PermissionAppend", "PermissionAppend", true},
		{EdgePermissionWrite, "PermissionWrite", "PermissionWrite", true},
		{EdgePermissionAdmin, "PermissionAdmin", "PermissionAdmin", true},
		{EdgeSharesPermissionTo, "SharesPermissionTo", "PermissionSharedFrom", true},
		{EdgeOwnedByUser, "OwnedByUser", "UserOwnsToken", true},
		{EdgeGroupPartOfRealm, "GroupPartOfRealm", "RealmHasGroup", true},
		{EdgeGroupAdministratesRealm, "GroupAdministratesRealm", "RealmAdministratedBy", true},
		{EdgeRealmUsesEndpoint, "RealmUsesEndpoint", "EndpointUsedByRealm", true},
	}
}

// RawRelation is the on-disk representation of one edge, keyed by
// source idx in the relations table (DupSort: multiple edges may
// share a source).
type RawRelation struct {
	Source   Idx
	Target   Idx
	EdgeType EdgeType
}

// Encode writes r as (forward len+bytes, backward len+bytes, internal
// byte), the value stored in relation_infos keyed by EncodeIdxKey(r.EdgeType).
func (r RelationInfo) Encode() []byte {
	buf := make([]byte, 0, 4+len(r.Forward)+4+len(r.Backward)+1)
	buf = appendLenPrefixed(buf, r.Forward)
	buf = appendLenPrefixed(buf, r.Backward)
	if r.Internal {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// DecodeRelationInfo parses a value written by RelationInfo.Encode.
// edgeType is supplied by the caller since it is carried in the key,
// not the value.
func DecodeRelationInfo(edgeType EdgeType, v []byte) (RelationInfo, error) {
	forward, rest, err := readLenPrefixed(v)
	if err != nil {
		return RelationInfo{}, err
	}
	backward, rest, err := readLenPrefixed(rest)
	if err != nil {
		return RelationInfo{}, err
	}
	if len(rest) < 1 {
		return RelationInfo{}, apierror.New(apierror.KindParseError, "relation info record truncated")
	}
	return RelationInfo{
		EdgeType: edgeType,
		Forward:  forward,
		Backward: backward,
		Internal: rest[0] != 0,
	}, nil
}

func appendLenPrefixed(buf []byte, s string) []byte {
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(s)))
	buf = append(buf, length[:]...)
	return append(buf, s...)
}

func readLenPrefixed(v []byte) (string, []byte, error) {
	if len(v) < 4 {
		return "", nil, apierror.New(apierror.KindParseError, "relation info record truncated")
	}
	n := binary.LittleEndian.Uint32(v[:4])
	v = v[4:]
	if uint64(len(v)) < uint64(n) {
		return "", nil, apierror.New(apierror.KindParseError, "relation info record truncated")
	}
	return string(v[:n]), v[n:], nil
}
