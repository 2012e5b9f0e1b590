package model

// Node is implemented by every variant-specific struct below. The
// structs are separate types, not an inheritance hierarchy: the codec
// encodes with a type switch over them and decodes by the stored
// variant, so adding a variant never touches existing variant structs.
type Node interface {
	GetID() ID
	GetVariant() Variant
	GetName() string
}

// Common holds the fields shared by every node variant. It is
// embedded, not inherited from, by each variant struct.
type Common struct {
	ID           ID
	Name         string
	Description  string
	CreatedAt    int64
	LastModified int64
}

func (c Common) GetID() ID      { return c.ID }
func (c Common) GetName() string { return c.Name }

// ResourceNode covers ResourceProject, ResourceFolder and
// ResourceObject; the concrete variant is carried in Variant.
type ResourceNode struct {
	Common
	Variant     Variant
	Labels      []Label
	Identifiers []string
	ContentLen  uint64
	Count       uint64
	Visibility  Visibility
	Authors     []Author
	Locked      bool
	LicenseTag  string
	Hashes      []Hash
	Location    []Location
	Title       string
}

func (r ResourceNode) GetVariant() Variant { return r.Variant }

// UserNode is a registered identity. Active is a supplement to the
// spec's field table (see SPEC_FULL.md Open Question (b)): it is
// packed alongside GlobalAdmin rather than consuming a new field id.
type UserNode struct {
	Common
	FirstName   string
	LastName    string
	Email       string
	GlobalAdmin bool
	Active      bool
	Identifiers []string
}

func (UserNode) GetVariant() Variant { return VariantUser }

// ServiceAccountNode is a non-human identity acting on behalf of
// exactly one group membership, resolved at token-verification time.
type ServiceAccountNode struct {
	Common
}

func (ServiceAccountNode) GetVariant() Variant { return VariantServiceAccount }

// TokenNode carries only name and expiry; its identity binding is the
// single outgoing OwnedByUser edge enforced by invariant 3.
type TokenNode struct {
	Common
	ExpiresAt int64
}

func (TokenNode) GetVariant() Variant { return VariantToken }

// GroupNode has at most one outgoing GroupPartOfRealm or
// GroupAdministratesRealm edge (invariant 4).
type GroupNode struct {
	Common
}

func (GroupNode) GetVariant() Variant { return VariantGroup }

// RealmNode is the top of the realm/endpoint hierarchy.
type RealmNode struct {
	Common
	Tag string
}

func (RealmNode) GetVariant() Variant { return VariantRealm }
