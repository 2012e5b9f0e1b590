package model

import "encoding/binary"

// EventID is the 128-bit monotonic event identifier: high 64 bits are
// the write-transaction serial, low 64 bits are a within-transaction
// step counter. Comparing the big-endian byte representation gives
// the same order as comparing the two halves numerically, which is
// what the DUP_SORT events table relies on for ordering.
type EventID [16]byte

// NewEventID packs a transaction serial and step counter into an
// EventID using big-endian halves.
func NewEventID(txnSerial, step uint64) EventID {
	var id EventID
	binary.BigEndian.PutUint64(id[0:8], txnSerial)
	binary.BigEndian.PutUint64(id[8:16], step)
	return id
}

// Less reports whether id < other under big-endian byte comparison,
// equivalent to the 128-bit unsigned numeric comparison.
func (id EventID) Less(other EventID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

func (id EventID) Serial() uint64 { return binary.BigEndian.Uint64(id[0:8]) }
func (id EventID) Step() uint64   { return binary.BigEndian.Uint64(id[8:16]) }

// Event associates an event id with the nodes it affects and the
// nodes subscribed parties watch. The two sets are disjoint inputs;
// nothing derives one from the other (design note (a)).
type Event struct {
	ID         EventID
	Affected   []Idx
	Subscribed []Idx
}
