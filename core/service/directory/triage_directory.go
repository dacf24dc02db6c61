// Package directory maintains the in-memory tenant index.
package directory

import (
	"context"
	"strings"
	"sync"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
)

// DomainEntry is one row of the domain index.
type DomainEntry struct {
	Domain   string
	TenantID string
	Kind     domain.MatchKind
}

// snapshot is an immutable view of all tenants, replaced wholesale on
// reload. Readers never see a partially built index.
type snapshot struct {
	byID     map[string]*domain.TenantProfile
	byDomain map[string]DomainEntry
	domains  []DomainEntry
	loadedAt time.Time
}

// Directory indexes tenant profiles by id and by domain. Profiles are
// immutable once loaded. Tenants absent from the snapshot are fetched
// lazily per key; concurrent misses may each load and the last writer
// wins, which is fine because loads are idempotent.
type Directory struct {
	provider out.TenantConfigProvider

	mu   sync.RWMutex
	snap *snapshot

	lazyMu sync.RWMutex
	lazy   map[string]*domain.TenantProfile
}

// New creates a Directory backed by the given provider. Call Load
// before serving traffic.
func New(provider out.TenantConfigProvider) *Directory {
	return &Directory{
		provider: provider,
		lazy:     make(map[string]*domain.TenantProfile),
	}
}

// Load builds the index from the provider. When the provider fails and
// a previous snapshot exists, the old snapshot stays in place and the
// error is returned for the caller to log; when no snapshot exists the
// directory is unusable and the error is SERVICE_UNAVAILABLE.
func (d *Directory) Load(ctx context.Context) error {
	profiles, err := d.provider.ListAll(ctx)
	if err != nil {
		d.mu.RLock()
		hasSnapshot := d.snap != nil
		d.mu.RUnlock()

		if !hasSnapshot {
			return apperr.ServiceUnavailable("tenant directory", err)
		}
		return apperr.Wrap(err, apperr.CodeExternalError, "tenant reload failed, keeping previous snapshot", 502)
	}

	snap := buildSnapshot(profiles)

	d.mu.Lock()
	d.snap = snap
	d.mu.Unlock()

	d.lazyMu.Lock()
	d.lazy = make(map[string]*domain.TenantProfile)
	d.lazyMu.Unlock()

	logger.WithFields(map[string]any{
		"tenants": len(snap.byID),
		"domains": len(snap.byDomain),
	}).Info("tenant directory loaded")

	return nil
}

// Reload rebuilds the index wholesale.
func (d *Directory) Reload(ctx context.Context) error {
	return d.Load(ctx)
}

func buildSnapshot(profiles []*domain.TenantProfile) *snapshot {
	snap := &snapshot{
		byID:     make(map[string]*domain.TenantProfile, len(profiles)),
		byDomain: make(map[string]DomainEntry),
		loadedAt: time.Now().UTC(),
	}

	for _, p := range profiles {
		if p == nil || p.ID == "" {
			continue
		}
		snap.byID[p.ID] = p

		if primary := strings.ToLower(strings.TrimSpace(p.PrimaryDomain)); primary != "" {
			entry := DomainEntry{Domain: primary, TenantID: p.ID, Kind: domain.MatchExactPrimary}
			snap.byDomain[primary] = entry
			snap.domains = append(snap.domains, entry)
		}
		for _, alias := range p.DomainAliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias == "" {
				continue
			}
			// Primary domains win over aliases on collision.
			if existing, ok := snap.byDomain[alias]; ok && existing.Kind == domain.MatchExactPrimary {
				continue
			}
			entry := DomainEntry{Domain: alias, TenantID: p.ID, Kind: domain.MatchAlias}
			snap.byDomain[alias] = entry
			snap.domains = append(snap.domains, entry)
		}
	}

	return snap
}

// Tenant returns a profile by id, or (nil, nil) when unknown. The
// snapshot is consulted first; misses fall through to the lazy per-key
// cache and finally to the provider.
func (d *Directory) Tenant(ctx context.Context, tenantID string) (*domain.TenantProfile, error) {
	if tenantID == "" {
		return nil, nil
	}

	d.mu.RLock()
	snap := d.snap
	d.mu.RUnlock()

	if snap != nil {
		if p, ok := snap.byID[tenantID]; ok {
			return p, nil
		}
	}

	d.lazyMu.RLock()
	cached, ok := d.lazy[tenantID]
	d.lazyMu.RUnlock()
	if ok {
		return cached, nil
	}

	p, err := d.provider.Get(ctx, tenantID)
	if err != nil {
		return nil, apperr.ServiceUnavailable("tenant directory", err)
	}
	if p == nil {
		return nil, nil
	}

	d.lazyMu.Lock()
	d.lazy[tenantID] = p
	d.lazyMu.Unlock()

	return p, nil
}

// LookupDomain returns the index entry for an exact domain, if any.
func (d *Directory) LookupDomain(dom string) (DomainEntry, bool) {
	d.mu.RLock()
	snap := d.snap
	d.mu.RUnlock()

	if snap == nil {
		return DomainEntry{}, false
	}
	entry, ok := snap.byDomain[strings.ToLower(dom)]
	return entry, ok
}

// DomainEntries returns all indexed domains. The slice belongs to the
// current snapshot and must not be mutated.
func (d *Directory) DomainEntries() []DomainEntry {
	d.mu.RLock()
	snap := d.snap
	d.mu.RUnlock()

	if snap == nil {
		return nil
	}
	return snap.domains
}

// ListTenants returns every profile in the current snapshot.
func (d *Directory) ListTenants() []*domain.TenantProfile {
	d.mu.RLock()
	snap := d.snap
	d.mu.RUnlock()

	if snap == nil {
		return nil
	}
	tenants := make([]*domain.TenantProfile, 0, len(snap.byID))
	for _, p := range snap.byID {
		tenants = append(tenants, p)
	}
	return tenants
}

// LoadedAt returns when the current snapshot was built.
func (d *Directory) LoadedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.snap == nil {
		return time.Time{}
	}
	return d.snap.loadedAt
}
