package kv

import "encoding/binary"

// sequenceKey is the fixed key under TableSequence holding the next
// unused idx. There is exactly one sequence: documents, relations and
// graph vertices all share the same idx space (invariant: KV primary
// key == graph vertex index).
var sequenceKey = []byte("next_idx")

// NextIdx reads the next free u32 idx and advances the counter by
// one, all within the caller's write transaction. Returns 0 the first
// time it is called against a fresh store.
func (t *RWTxn) NextIdx() (uint32, error) {
	v, ok, err := t.Get(TableSequence, sequenceKey)
	if err != nil {
		return 0, err
	}
	var next uint32
	if ok {
		next = binary.LittleEndian.Uint32(v)
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, next+1)
	if err := t.Put(TableSequence, sequenceKey, buf); err != nil {
		return 0, err
	}
	return next, nil
}

// PeekNextIdx reads the next free u32 idx without advancing it.
func (t *ROTxn) PeekNextIdx() (uint32, error) {
	v, ok, err := t.Get(TableSequence, sequenceKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return binary.LittleEndian.Uint32(v), nil
}

// eventSerialKey is the fixed key under TableSequence holding the
// next unused event_id transaction serial (the high 64 bits of
// model.EventID). Persisted in the same table, by the same
// read-advance-put pattern, as sequenceKey above, so a restart always
// resumes strictly after every event id a prior process committed
// (invariant 6) instead of restarting the count from zero.
var eventSerialKey = []byte("next_event_serial")

// NextEventSerial reads the next free u64 transaction serial and
// advances the counter by one, all within the caller's write
// transaction — it only takes effect if that transaction commits, so
// a failed commit never burns a serial. The first serial handed out
// on a fresh store is 1, so no event id equals the zero model.EventID
// that eventlog.FetchSince treats as "nothing seen yet".
func (t *RWTxn) NextEventSerial() (uint64, error) {
	v, ok, err := t.Get(TableSequence, eventSerialKey)
	if err != nil {
		return 0, err
	}
	next := uint64(1)
	if ok {
		next = binary.LittleEndian.Uint64(v)
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, next+1)
	if err := t.Put(TableSequence, eventSerialKey, buf); err != nil {
		return 0, err
	}
	return next, nil
}

// PeekEventSerial reads the next free u64 transaction serial without
// advancing it.
func (t *ROTxn) PeekEventSerial() (uint64, error) {
	v, ok, err := t.Get(TableSequence, eventSerialKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}
	return binary.LittleEndian.Uint64(v), nil
}
