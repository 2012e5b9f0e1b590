// Package kv wraps an MDBX environment (github.com/erigontech/mdbx-go)
// as the memory-mapped, ordered, transactional key-value backend (C2).
// Table names and flags below follow the erigon-lib/kv TableCfg idiom:
// one source of truth for which sub-databases exist and how MDBX
// should open them.
package kv

// Sub-database names, exactly as listed in the persistent layout.
const (
	TableRelations            = "relations"
	TableRelationInfos        = "relation_infos"
	TableEvents               = "events"
	TableIssuers              = "issuers"
	TableReadGroupPerms       = "read_group_perms"
	TableDocuments            = "documents"
	TableExternalDocumentsIDs = "external_documents_ids"
	TableSearchPostings       = "search_postings"
	TableSequence             = "sequence" // fixed counter keys -> next free value (little-endian)
)

// AllTables is the list of every named sub-database the engine opens
// at startup. Only tables in this list are created and given a DBI
// handle; a name missing from it has no handle in Env.
var AllTables = []string{
	TableRelations,
	TableRelationInfos,
	TableEvents,
	TableIssuers,
	TableReadGroupPerms,
	TableDocuments,
	TableExternalDocumentsIDs,
	TableSearchPostings,
	TableSequence,
}

// TableFlags mirrors the relevant subset of MDBX_* database flags.
type TableFlags uint

const (
	Default    TableFlags = 0x00
	DupSort    TableFlags = 0x04
	IntegerKey TableFlags = 0x08
	DupFixed   TableFlags = 0x10
	IntegerDup TableFlags = 0x20
)

// TableCfgItem configures how one sub-database is opened.
type TableCfgItem struct {
	Flags TableFlags
}

type TableCfg map[string]TableCfgItem

// Tables is the authoritative MDBX open-flags configuration. events
// is DUP_SORT + DUP_FIXED + INTEGER_KEY: many event ids per node idx,
// fixed-size 16-byte values, integer-ordered keys. relations is
// DUP_SORT so one source idx can hold many edges. search_postings
// holds one bitmap per token that each write replaces, so it is a
// plain table.
var Tables = TableCfg{
	TableRelations:            {Flags: DupSort},
	TableEvents:               {Flags: DupSort | DupFixed | IntegerKey},
	TableSearchPostings:       {Flags: Default},
	TableRelationInfos:        {Flags: Default},
	TableIssuers:              {Flags: Default},
	TableReadGroupPerms:       {Flags: Default},
	TableDocuments:            {Flags: Default},
	TableExternalDocumentsIDs: {Flags: Default},
	TableSequence:             {Flags: Default},
}
