// Package engine ties C2 (kv), C3 (search), C4 (graph) and C5
// (eventlog) together behind the single-writer transactional commit
// pipeline (C9), and owns the issuer registry (C6) and token service
// (C7) that sit alongside it.
package engine

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ArunaStorage/aos-server/internal/graph"
	"github.com/ArunaStorage/aos-server/internal/issuer"
	"github.com/ArunaStorage/aos-server/internal/kv"
	"github.com/ArunaStorage/aos-server/internal/metrics"
	"github.com/ArunaStorage/aos-server/internal/model"
	"github.com/ArunaStorage/aos-server/internal/token"
)

// Subscriber receives a notification once a commit has been durably
// applied: the full affected set plus whichever subset of the
// request's explicitly subscribed nodes resolved to a live idx.
// affected and subscribed are disjoint inputs carried straight from
// the WriteRequest; a subscriber decides for itself whether the
// commit matters to it.
type Subscriber func(id model.EventID, affected, subscribed []model.Idx)

// Store is the process-wide handle to the storage engine: one C2
// environment, one C4 graph, one writer at a time.
type Store struct {
	kv      *kv.Env
	graph   *graph.Graph
	issuers *issuer.Registry
	Tokens  *token.Service
	log     *zap.Logger
	metrics *metrics.Engine

	writeMu sync.Mutex

	subMu sync.Mutex
	subs  []Subscriber
}

// Open starts the engine at path: opens the KV environment, rebuilds
// the graph from it, and loads persisted issuers. The caller installs
// the server's own signing material afterwards via Tokens.
func Open(path string, log *zap.Logger) (*Store, error) {
	env, err := kv.Open(path, log)
	if err != nil {
		return nil, err
	}

	wtxn, err := env.BeginRW()
	if err != nil {
		return nil, err
	}
	if err := installRelationInfos(wtxn); err != nil {
		wtxn.Abort()
		return nil, err
	}
	if err := wtxn.Commit(); err != nil {
		return nil, err
	}

	rtxn, err := env.BeginRO()
	if err != nil {
		return nil, err
	}
	g, err := graph.Load(rtxn)
	rtxn.Abort()
	if err != nil {
		return nil, err
	}

	reg := issuer.New(log)
	rtxn2, err := env.BeginRO()
	if err != nil {
		return nil, err
	}
	err = issuer.LoadAll(rtxn2, reg)
	rtxn2.Abort()
	if err != nil {
		return nil, err
	}

	return &Store{kv: env, graph: g, issuers: reg, log: log}, nil
}

// Close releases the KV environment and its directory lock.
func (s *Store) Close() error { return s.kv.Close() }

// Issuers exposes the registry so startup code can Install the
// server's own issuer and the OIDC providers listed in config.
func (s *Store) Issuers() *issuer.Registry { return s.issuers }

// InstallTokenService wires the token service once the server's own
// signing key has been loaded from config, completing C6/C7 startup.
func (s *Store) InstallTokenService(svc *token.Service) { s.Tokens = svc }

// InstallMetrics wires a metrics.Engine so Commit records writer queue
// wait time and commit latency/outcome. Optional — Commit is a no-op
// on the metrics side until this is called.
func (s *Store) InstallMetrics(m *metrics.Engine) { s.metrics = m }

// Graph exposes the graph for read-only callers (C8, C10); callers
// must take RLock()/Unlock() themselves and never hold it across
// blocking I/O.
func (s *Store) Graph() *graph.Graph { return s.graph }

// BeginRead opens a consistent snapshot across both the KV store and
// the graph for the duration of one read request. The graph guard
// costs nothing extra since C4 has no separate MVCC of its own --
// consistency is maintained by serializing writers through Commit.
func (s *Store) BeginRead() (*kv.ROTxn, *graph.RGuard, error) {
	rtxn, err := s.kv.BeginRO()
	if err != nil {
		return nil, nil, err
	}
	rg := s.graph.RLock()
	return rtxn, rg, nil
}

// EndRead releases a snapshot opened by BeginRead.
func EndRead(rtxn *kv.ROTxn, rg *graph.RGuard) {
	rg.Unlock()
	rtxn.Abort()
}

// Subscribe registers fn to be called after every successful commit,
// with the full affected-idx set of that commit. Subscribers run
// synchronously on the committing goroutine after the write guard has
// been released, so they must not block.
func (s *Store) Subscribe(fn Subscriber) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) publish(id model.EventID, affected, subscribed []model.Idx) {
	s.subMu.Lock()
	subs := append([]Subscriber(nil), s.subs...)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(id, affected, subscribed)
	}
}
