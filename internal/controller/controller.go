// Package controller implements the request controller (C10): it
// authenticates a bearer token, evaluates the caller's permission
// contexts, and dispatches the request body — either a read against a
// consistent snapshot or a write through the commit pipeline — onto
// the bounded worker pool so no cooperative handler ever blocks on
// mmap I/O or the graph lock (spec.md §5).
package controller

import (
	"context"

	"github.com/ArunaStorage/aos-server/internal/authz"
	"github.com/ArunaStorage/aos-server/internal/engine"
	"github.com/ArunaStorage/aos-server/internal/graph"
	"github.com/ArunaStorage/aos-server/internal/kv"
	"github.com/ArunaStorage/aos-server/internal/workerpool"
)

// ReadFunc runs under a consistent (rtxn, rg) snapshot, after the
// caller's token has verified and its permission contexts have
// evaluated. It must not retain rtxn or rg past return.
type ReadFunc func(rtxn *kv.ROTxn, rg *graph.RGuard) (any, error)

// Controller ties C6/C7 (token verification), C8 (authorization) and
// C9 (commit) together behind one bounded pool.
type Controller struct {
	store *engine.Store
	pool  *workerpool.Pool
}

// New builds a Controller that runs at most poolSize storage steps
// concurrently.
func New(store *engine.Store, poolSize int) *Controller {
	return &Controller{store: store, pool: workerpool.New(poolSize)}
}

// DispatchRead verifies token, evaluates contexts against a snapshot,
// and runs fn on that same snapshot. No C4 write guard is ever taken.
func (c *Controller) DispatchRead(ctx context.Context, token string, contexts []authz.Context, fn ReadFunc) (any, error) {
	return workerpool.Submit(ctx, c.pool, func() (any, error) {
		rtxn, rg, err := c.store.BeginRead()
		if err != nil {
			return nil, err
		}
		defer engine.EndRead(rtxn, rg)

		requester, err := c.store.Tokens.Verify(ctx, token, rtxn, rg)
		if err != nil {
			return nil, err
		}
		if err := authz.Evaluate(rtxn, rg, requester, contexts); err != nil {
			return nil, err
		}
		return fn(rtxn, rg)
	})
}

// DispatchWrite verifies token, evaluates contexts against a snapshot
// taken immediately before the write, then packages req as a
// write-request and commits it through C9. The response carries the
// committed event_id; on failure the whole transaction is discarded
// with no partial effect (spec.md §7).
func (c *Controller) DispatchWrite(ctx context.Context, token string, contexts []authz.Context, req engine.WriteRequest) (engine.Result, error) {
	return workerpool.Submit(ctx, c.pool, func() (engine.Result, error) {
		rtxn, rg, err := c.store.BeginRead()
		if err != nil {
			return engine.Result{}, err
		}
		requester, verifyErr := c.store.Tokens.Verify(ctx, token, rtxn, rg)
		var authErr error
		if verifyErr == nil {
			authErr = authz.Evaluate(rtxn, rg, requester, contexts)
		}
		engine.EndRead(rtxn, rg)

		if verifyErr != nil {
			return engine.Result{}, verifyErr
		}
		if authErr != nil {
			return engine.Result{}, authErr
		}

		return c.store.Commit(req)
	})
}
