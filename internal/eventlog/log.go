// Package eventlog implements the append-only event log (C5): every
// write transaction appends one event id per affected node idx to a
// DUP_SORT table, in the same transaction as the mutation it
// describes.
package eventlog

import (
	"github.com/ArunaStorage/aos-server/internal/kv"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// Append inserts, for every idx in affected, a (idx -> event id)
// record. subscribed is recorded nowhere persistent by this package;
// it is handed back to the caller (internal/engine) to publish to
// in-process subscribers after commit — affected and subscribed are
// disjoint inputs, not derived from one another.
func Append(wtxn *kv.RWTxn, id model.EventID, affected []model.Idx) error {
	for _, idx := range affected {
		if err := wtxn.Put(kv.TableEvents, kv.EncodeIdxKey(uint32(idx)), id[:]); err != nil {
			return err
		}
	}
	return nil
}

// FetchSince returns the next batch of event ids (in ascending order)
// recorded against idx, strictly after lastSeen, up to limit entries.
func FetchSince(rtxn *kv.ROTxn, idx model.Idx, lastSeen model.EventID, limit int) ([]model.EventID, error) {
	// GetDupFrom seeks to >= lastSeen; if the seek lands exactly on
	// lastSeen itself it must be skipped since callers want events
	// strictly after it.
	raw, err := rtxn.GetDupFrom(kv.TableEvents, kv.EncodeIdxKey(uint32(idx)), lastSeen[:], limit+1)
	if err != nil {
		return nil, err
	}
	out := make([]model.EventID, 0, len(raw))
	for _, v := range raw {
		var eid model.EventID
		copy(eid[:], v)
		if eid == lastSeen {
			continue
		}
		out = append(out, eid)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
