package model

// FieldID is the small integer key the codec (package codec) uses to
// address a field inside an encoded document record. Ids are fixed
// per the on-disk layout and must never be renumbered; a new field
// takes the next free id.
type FieldID uint32

// Field describes one entry of the canonical field table. FieldType
// determines how codec.Encode/Decode interpret the raw bytes.
type Field struct {
	Name  string
	Index FieldID
	Type  FieldType
}

type FieldType uint8

const (
	TypeU128 FieldType = iota
	TypeU8
	TypeString
	TypeStruct
	TypeU64
	TypeI64
	TypeBool
)

// Field ids 0..22, authoritative per the on-disk layout. Adding a
// field uses the next free id; these never move.
const (
	FieldID_ID            FieldID = 0
	FieldID_Variant       FieldID = 1
	FieldID_Name          FieldID = 2
	FieldID_Description   FieldID = 3
	FieldID_Labels        FieldID = 4
	FieldID_Identifiers   FieldID = 5
	FieldID_ContentLen    FieldID = 6
	FieldID_Count         FieldID = 7
	FieldID_Visibility    FieldID = 8
	FieldID_CreatedAt     FieldID = 9
	FieldID_LastModified  FieldID = 10
	FieldID_Authors       FieldID = 11
	FieldID_Locked        FieldID = 12
	FieldID_License       FieldID = 13
	FieldID_Hashes        FieldID = 14
	FieldID_Location      FieldID = 15
	FieldID_Tags          FieldID = 16
	FieldID_ExpiresAt     FieldID = 17
	FieldID_FirstName     FieldID = 18
	FieldID_LastName      FieldID = 19
	FieldID_Email         FieldID = 20
	FieldID_GlobalAdmin   FieldID = 21
	FieldID_Tag           FieldID = 22
)

// Fields is the canonical field table, ordered by Index. The codec
// dispatches field presence by variant, not by this table, but this
// table is the single source of truth for id <-> name <-> type.
var Fields = []Field{
	{Name: "id", Index: FieldID_ID, Type: TypeU128},
	{Name: "variant", Index: FieldID_Variant, Type: TypeU8},
	{Name: "name", Index: FieldID_Name, Type: TypeString},
	{Name: "description", Index: FieldID_Description, Type: TypeString},
	{Name: "labels", Index: FieldID_Labels, Type: TypeStruct},
	{Name: "identifiers", Index: FieldID_Identifiers, Type: TypeStruct},
	{Name: "content_len", Index: FieldID_ContentLen, Type: TypeU64},
	{Name: "count", Index: FieldID_Count, Type: TypeU64},
	{Name: "visibility", Index: FieldID_Visibility, Type: TypeU8},
	{Name: "created_at", Index: FieldID_CreatedAt, Type: TypeI64},
	{Name: "last_modified", Index: FieldID_LastModified, Type: TypeI64},
	{Name: "authors", Index: FieldID_Authors, Type: TypeStruct},
	{Name: "locked", Index: FieldID_Locked, Type: TypeBool},
	{Name: "license", Index: FieldID_License, Type: TypeString},
	{Name: "hashes", Index: FieldID_Hashes, Type: TypeStruct},
	{Name: "location", Index: FieldID_Location, Type: TypeStruct},
	{Name: "tags", Index: FieldID_Tags, Type: TypeStruct},
	{Name: "expires_at", Index: FieldID_ExpiresAt, Type: TypeI64},
	{Name: "first_name", Index: FieldID_FirstName, Type: TypeString},
	{Name: "last_name", Index: FieldID_LastName, Type: TypeString},
	{Name: "email", Index: FieldID_Email, Type: TypeString},
	{Name: "global_admin", Index: FieldID_GlobalAdmin, Type: TypeBool},
	{Name: "tag", Index: FieldID_Tag, Type: TypeString},
}
