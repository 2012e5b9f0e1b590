package kv

import (
	"os"
	"path/filepath"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ArunaStorage/aos-server/internal/apierror"
)

// defaultSizeUpper is the maximum mmap size reserved for the
// environment; MDBX grows the backing file lazily so this is just an
// address-space reservation, not disk usage.
const defaultSizeUpper = 1 << 40 // 1 TiB

// Env owns the MDBX environment and the directory lock that prevents
// two processes from opening the same store concurrently.
type Env struct {
	env   *mdbx.Env
	dbis  map[string]mdbx.DBI
	lock  *flock.Flock
	log   *zap.Logger
	path  string
}

// Open creates the directory if needed, takes an exclusive flock on
// it, opens (or creates) the MDBX environment, and ensures every
// table in AllTables exists with the flags in Tables.
func Open(path string, log *zap.Logger) (*Env, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, apierror.Wrap(apierror.KindDatabaseError, err, "creating data directory")
	}

	lock := flock.New(filepath.Join(path, "LOCK"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, apierror.Wrap(apierror.KindDatabaseError, err, "locking data directory")
	}
	if !locked {
		return nil, apierror.New(apierror.KindDatabaseError, "data directory already locked by another process")
	}

	env, err := mdbx.NewEnv()
	if err != nil {
		_ = lock.Unlock()
		return nil, apierror.Wrap(apierror.KindDatabaseError, err, "allocating mdbx environment")
	}
	if err := env.SetGeometry(-1, -1, defaultSizeUpper, -1, -1, -1); err != nil {
		_ = lock.Unlock()
		return nil, apierror.Wrap(apierror.KindDatabaseError, err, "setting mdbx geometry")
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(len(AllTables))); err != nil {
		_ = lock.Unlock()
		return nil, apierror.Wrap(apierror.KindDatabaseError, err, "setting mdbx max dbs")
	}
	if err := env.Open(path, mdbx.Coalesce|mdbx.LifoReclaim, 0o644); err != nil {
		_ = lock.Unlock()
		return nil, apierror.Wrap(apierror.KindDatabaseError, err, "opening mdbx environment")
	}

	e := &Env{env: env, dbis: make(map[string]mdbx.DBI, len(AllTables)), lock: lock, log: log, path: path}
	if err := e.createTables(); err != nil {
		_ = env.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return e, nil
}

func (e *Env) createTables() error {
	return e.env.Update(func(txn *mdbx.Txn) error {
		for _, name := range AllTables {
			cfg := Tables[name]
			dbi, err := txn.OpenDBISimple(name, mdbxFlags(cfg.Flags)|mdbx.Create)
			if err != nil {
				return errors.Wrapf(err, "opening table %q", name)
			}
			e.dbis[name] = dbi
		}
		return nil
	})
}

func mdbxFlags(f TableFlags) mdbx.DBIFlags {
	var out mdbx.DBIFlags
	if f&DupSort != 0 {
		out |= mdbx.DupSort
	}
	if f&IntegerKey != 0 {
		out |= mdbx.IntegerKey
	}
	if f&DupFixed != 0 {
		out |= mdbx.DupFixed
	}
	if f&IntegerDup != 0 {
		out |= mdbx.IntegerDup
	}
	return out
}

func (e *Env) dbi(table string) mdbx.DBI { return e.dbis[table] }

// Close flushes and releases the environment and its directory lock.
// Callers must ensure all outstanding transactions have ended first.
func (e *Env) Close() error {
	e.env.Close()
	return e.lock.Unlock()
}

// BeginRO starts a read-only snapshot transaction. Unlimited
// concurrent readers may be in flight at once; they never block or
// are blocked by the single writer.
func (e *Env) BeginRO() (*ROTxn, error) {
	txn, err := e.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindDatabaseError, err, "beginning read transaction")
	}
	return &ROTxn{txn: txn, env: e}, nil
}

// BeginRW starts the single write transaction. Callers must serialize
// calls to BeginRW themselves (see internal/engine), since MDBX will
// otherwise block the calling goroutine until the prior writer
// commits or aborts.
func (e *Env) BeginRW() (*RWTxn, error) {
	txn, err := e.env.BeginTxn(nil, 0)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindDatabaseError, err, "beginning write transaction")
	}
	return &RWTxn{ROTxn: ROTxn{txn: txn, env: e}}, nil
}
