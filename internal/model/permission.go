package model

import "github.com/ArunaStorage/aos-server/internal/apierror"

// Permission is the minimum-permission enumeration. Numeric values
// coincide with the edge_type ids of the permission edges (2..6) so
// that Permission.EdgeType below is a straight cast.
type Permission uint8

const (
	PermissionNone   Permission = 2
	PermissionRead   Permission = 3
	PermissionAppend Permission = 4
	PermissionWrite  Permission = 5
	PermissionAdmin  Permission = 6
)

func (p Permission) String() string {
	switch p {
	case PermissionNone:
		return "None"
	case PermissionRead:
		return "Read"
	case PermissionAppend:
		return "Append"
	case PermissionWrite:
		return "Write"
	case PermissionAdmin:
		return "Admin"
	default:
		return "Unknown"
	}
}

// EdgeType casts a Permission to its matching permission EdgeType.
func (p Permission) EdgeType() EdgeType { return EdgeType(p) }

// PermissionFromEdgeType is the inverse of EdgeType; it fails if e is
// not one of the five permission edge kinds.
func PermissionFromEdgeType(e EdgeType) (Permission, error) {
	if !e.IsPermission() {
		return 0, &apierror.Error{Kind: apierror.KindConversionError, Msg: "edge type is not a permission"}
	}
	return Permission(e), nil
}

// AtLeast reports whether p meets or exceeds min.
func (p Permission) AtLeast(min Permission) bool { return p >= min }
