// Package issuer implements the issuer registry (C6): per-issuer
// cached verification keys, refreshable from an OIDC JWKS endpoint
// under a rate limit.
package issuer

import (
	"context"
	"crypto"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/ArunaStorage/aos-server/internal/apierror"
	"github.com/ArunaStorage/aos-server/internal/metrics"
	"github.com/ArunaStorage/aos-server/internal/model"
)

// refreshCooldown bounds JWKS refreshes to at most once per issuer in
// this window.
const refreshCooldown = 5 * time.Minute

type entry struct {
	info model.Issuer

	mu          sync.Mutex
	keys        map[string]crypto.PublicKey // keyID -> decoding key
	lastRefresh time.Time
	jwks        *keyfunc.JWKS
}

// Registry holds one entry per issuer name, plus a small LRU of
// recently resolved (issuer, keyID) lookups to avoid repeated map
// churn under load.
type Registry struct {
	log     *zap.Logger
	client  *http.Client
	mu      sync.RWMutex
	issuers map[string]*entry
	cache   *lru.Cache[string, crypto.PublicKey]
	metrics *metrics.Engine
}

func New(log *zap.Logger) *Registry {
	cache, _ := lru.New[string, crypto.PublicKey](1024)
	return &Registry{
		log:     log,
		client:  http.DefaultClient,
		issuers: make(map[string]*entry),
		cache:   cache,
	}
}

// InstallMetrics wires a metrics.Engine so Find records LRU cache hit
// rate. Optional.
func (r *Registry) InstallMetrics(m *metrics.Engine) { r.metrics = m }

// Install registers an issuer and, for Server-type issuers, its
// current signing key. Called at startup for every issuer listed in
// config and once more whenever a new key rotation is observed.
func (r *Registry) Install(info model.Issuer, initialKeys map[string]crypto.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issuers[info.Name] = &entry{info: info, keys: initialKeys}
}

// Find looks up a verification key by (issuer, keyID) without
// triggering a refresh; callers needing a refresh-on-miss should use
// Token service's verification flow, which calls Refresh itself.
func (r *Registry) Find(issuerName, keyID string) (crypto.PublicKey, bool) {
	cacheKey := issuerName + "\x00" + keyID
	if k, ok := r.cache.Get(cacheKey); ok {
		if r.metrics != nil {
			r.metrics.IssuerCacheHits.Inc()
		}
		return k, true
	}
	if r.metrics != nil {
		r.metrics.IssuerCacheMiss.Inc()
	}
	r.mu.RLock()
	e, ok := r.issuers[issuerName]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	k, ok := e.keys[keyID]
	e.mu.Unlock()
	if ok {
		r.cache.Add(cacheKey, k)
	}
	return k, ok
}

// Audiences returns the registered audiences for issuerName.
func (r *Registry) Audiences(issuerName string) ([]string, bool) {
	r.mu.RLock()
	e, ok := r.issuers[issuerName]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.info.Audiences, true
}

// Info returns the registered Issuer record for issuerName.
func (r *Registry) Info(issuerName string) (model.Issuer, bool) {
	r.mu.RLock()
	e, ok := r.issuers[issuerName]
	r.mu.RUnlock()
	if !ok {
		return model.Issuer{}, false
	}
	return e.info, true
}

// Refresh fetches JWKS from the issuer's endpoint and replaces its
// key list. Only valid for OIDC issuers; rate-limited to at most one
// refresh per refreshCooldown per issuer. Runs entirely on the
// caller's goroutine against the network — it never holds the C2 or
// C4 locks (see spec.md §5).
func (r *Registry) Refresh(ctx context.Context, issuerName string) error {
	r.mu.RLock()
	e, ok := r.issuers[issuerName]
	r.mu.RUnlock()
	if !ok {
		return apierror.New(apierror.KindUnauthorized, "unknown issuer")
	}
	if e.info.Type != model.IssuerOIDC {
		return apierror.New(apierror.KindUnauthorized, "refresh only valid for OIDC issuers")
	}

	e.mu.Lock()
	if time.Since(e.lastRefresh) < refreshCooldown {
		e.mu.Unlock()
		return apierror.RefreshTooSoon
	}
	e.mu.Unlock()

	jwks, err := keyfunc.Get(e.info.Endpoint, keyfunc.Options{
		Ctx:    ctx,
		Client: r.client,
	})
	if err != nil {
		return apierror.Wrap(apierror.KindDatabaseError, err, "fetching JWKS")
	}

	newKeys := make(map[string]crypto.PublicKey)
	for kid, key := range jwks.ReadOnlyKeys() {
		newKeys[kid] = key
	}

	e.mu.Lock()
	e.keys = newKeys
	e.jwks = jwks
	e.lastRefresh = time.Now()
	e.mu.Unlock()

	r.log.Info("refreshed issuer keys", zap.String("issuer", issuerName), zap.Int("keys", len(newKeys)))
	return nil
}
