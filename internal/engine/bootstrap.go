package engine

import (
	"github.com/ArunaStorage/aos-server/internal/kv"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// installRelationInfos seeds relation_infos with the closed 12-entry
// edge catalog on first open, so every edge type is writable from the
// start (invariant 7: an edge type must have a RelationInfo record
// before any edge of that type is written). Idempotent: entries
// already present are left untouched.
func installRelationInfos(wtxn *kv.RWTxn) error {
	for _, info := range model.DefaultRelationInfos() {
		key := edgeTypeKey(info.EdgeType)
		if _, ok, err := wtxn.Get(kv.TableRelationInfos, key); err != nil {
			return err
		} else if ok {
			continue
		}
		if err := wtxn.Put(kv.TableRelationInfos, key, info.Encode()); err != nil {
			return err
		}
	}
	return nil
}
