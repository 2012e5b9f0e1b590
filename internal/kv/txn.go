package kv

import (
	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/ArunaStorage/aos-server/internal/apierror"
)

// ROTxn is a read-only snapshot transaction. Readers observe exactly
// the state of the last transaction committed before BeginRO was
// called and never see a partial write.
type ROTxn struct {
	txn *mdbx.Txn
	env *Env
}

// Get returns the value stored at key in table, or (nil, false) if
// absent.
func (t *ROTxn) Get(table string, key []byte) ([]byte, bool, error) {
	v, err := t.txn.Get(t.env.dbi(table), key)
	if mdbx.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apierror.Wrap(apierror.KindDatabaseError, err, "get")
	}
	return v, true, nil
}

// ForEach iterates every (key, value) pair of table in key order,
// stopping early if fn returns false.
func (t *ROTxn) ForEach(table string, fn func(k, v []byte) (bool, error)) error {
	cur, err := t.txn.OpenCursor(t.env.dbi(table))
	if err != nil {
		return apierror.Wrap(apierror.KindDatabaseError, err, "opening cursor")
	}
	defer cur.Close()

	k, v, err := cur.Get(nil, nil, mdbx.First)
	for err == nil {
		cont, ferr := fn(k, v)
		if ferr != nil {
			return ferr
		}
		if !cont {
			return nil
		}
		k, v, err = cur.Get(nil, nil, mdbx.Next)
	}
	if mdbx.IsNotFound(err) {
		return nil
	}
	return apierror.Wrap(apierror.KindDatabaseError, err, "iterating cursor")
}

// GetAllDup returns every value stored under key in a DupSort table,
// in dup-sort order, e.g. all relation edges for one source idx or
// all event ids recorded against one affected idx.
func (t *ROTxn) GetAllDup(table string, key []byte) ([][]byte, error) {
	cur, err := t.txn.OpenCursor(t.env.dbi(table))
	if err != nil {
		return nil, apierror.Wrap(apierror.KindDatabaseError, err, "opening cursor")
	}
	defer cur.Close()

	var out [][]byte
	_, v, err := cur.Get(key, nil, mdbx.SetKey)
	for err == nil {
		out = append(out, v)
		_, v, err = cur.Get(nil, nil, mdbx.NextDup)
	}
	if mdbx.IsNotFound(err) {
		return out, nil
	}
	if err != nil {
		return nil, apierror.Wrap(apierror.KindDatabaseError, err, "scanning dup values")
	}
	return out, nil
}

// GetDupFrom returns up to limit values under key that sort at or
// after from, used by EventLog.FetchSince.
func (t *ROTxn) GetDupFrom(table string, key, from []byte, limit int) ([][]byte, error) {
	cur, err := t.txn.OpenCursor(t.env.dbi(table))
	if err != nil {
		return nil, apierror.Wrap(apierror.KindDatabaseError, err, "opening cursor")
	}
	defer cur.Close()

	_, v, err := cur.Get(key, from, mdbx.GetBothRange)
	var out [][]byte
	for err == nil && len(out) < limit {
		out = append(out, v)
		_, v, err = cur.Get(nil, nil, mdbx.NextDup)
	}
	if mdbx.IsNotFound(err) {
		return out, nil
	}
	if err != nil {
		return nil, apierror.Wrap(apierror.KindDatabaseError, err, "scanning dup range")
	}
	return out, nil
}

// Abort discards the transaction's read snapshot.
func (t *ROTxn) Abort() { t.txn.Abort() }

// RWTxn is the single writer transaction. Only one may be open across
// the whole process at a time (enforced by internal/engine, not by
// this package, since MDBX itself would simply block the goroutine).
type RWTxn struct {
	ROTxn
}

// Put writes key/value into table, overwriting any prior value
// (tables without DupSort) or inserting a new dup entry (DupSort
// tables).
func (t *RWTxn) Put(table string, key, value []byte) error {
	flags := mdbx.Upsert
	if err := t.txn.Put(t.env.dbi(table), key, value, flags); err != nil {
		return apierror.Wrap(apierror.KindDatabaseError, err, "put")
	}
	return nil
}

// Delete removes key (and, in a DupSort table, exactly the given
// value) from table.
func (t *RWTxn) Delete(table string, key, value []byte) error {
	if err := t.txn.Del(t.env.dbi(table), key, value); err != nil && !mdbx.IsNotFound(err) {
		return apierror.Wrap(apierror.KindDatabaseError, err, "delete")
	}
	return nil
}

// Commit flushes the transaction atomically. On error the caller must
// assume none of the transaction's writes are visible.
func (t *RWTxn) Commit() error {
	if _, err := t.txn.Commit(); err != nil {
		return apierror.Wrap(apierror.KindDatabaseError, err, "commit")
	}
	return nil
}

// Abort discards the transaction, leaving no trace in the store.
func (t *RWTxn) Abort() { t.txn.Abort() }
