package directory

import (
	"context"
	"errors"
	"testing"

	"triage_server/core/domain"
)

type fakeProvider struct {
	profiles []*domain.TenantProfile
	err      error
	getCalls int
}

func (f *fakeProvider) Get(_ context.Context, tenantID string) (*domain.TenantProfile, error) {
	f.getCalls++
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.profiles {
		if p.ID == tenantID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeProvider) ListAll(_ context.Context) ([]*domain.TenantProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles, nil
}

func sampleProfiles() []*domain.TenantProfile {
	return []*domain.TenantProfile{
		{
			ID:            "acme",
			PrimaryDomain: "acme.com",
			DomainAliases: []string{"acme-corp.com", "ACME.com"},
		},
		{
			ID:            "globex",
			PrimaryDomain: "globex.io",
		},
	}
}

func TestDirectoryLoadAndLookup(t *testing.T) {
	provider := &fakeProvider{profiles: sampleProfiles()}
	d := New(provider)

	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		domain     string
		wantTenant string
		wantKind   domain.MatchKind
		wantFound  bool
	}{
		{"acme.com", "acme", domain.MatchExactPrimary, true},
		{"ACME.COM", "acme", domain.MatchExactPrimary, true},
		{"acme-corp.com", "acme", domain.MatchAlias, true},
		{"globex.io", "globex", domain.MatchExactPrimary, true},
		{"nowhere.example", "", "", false},
	}

	for _, tt := range tests {
		entry, ok := d.LookupDomain(tt.domain)
		if ok != tt.wantFound {
			t.Errorf("LookupDomain(%q) found = %v, want %v", tt.domain, ok, tt.wantFound)
			continue
		}
		if !ok {
			continue
		}
		if entry.TenantID != tt.wantTenant {
			t.Errorf("LookupDomain(%q) tenant = %q, want %q", tt.domain, entry.TenantID, tt.wantTenant)
		}
		if entry.Kind != tt.wantKind {
			t.Errorf("LookupDomain(%q) kind = %v, want %v", tt.domain, entry.Kind, tt.wantKind)
		}
	}
}

func TestDirectoryPrimaryWinsOverAlias(t *testing.T) {
	// "acme.com" appears both as acme's primary domain and as one of
	// its aliases (differing only in case); the primary entry wins.
	provider := &fakeProvider{profiles: sampleProfiles()}
	d := New(provider)

	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	entry, ok := d.LookupDomain("acme.com")
	if !ok {
		t.Fatal("acme.com not indexed")
	}
	if entry.Kind != domain.MatchExactPrimary {
		t.Errorf("kind = %v, want %v", entry.Kind, domain.MatchExactPrimary)
	}
}

func TestDirectoryTenant(t *testing.T) {
	provider := &fakeProvider{profiles: sampleProfiles()}
	d := New(provider)

	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	t.Run("snapshot hit", func(t *testing.T) {
		p, err := d.Tenant(context.Background(), "acme")
		if err != nil {
			t.Fatalf("Tenant() error = %v", err)
		}
		if p == nil || p.ID != "acme" {
			t.Fatalf("Tenant() = %+v, want acme", p)
		}
		if provider.getCalls != 0 {
			t.Errorf("provider Get called %d times for a snapshot hit", provider.getCalls)
		}
	})

	t.Run("unknown tenant is nil nil", func(t *testing.T) {
		p, err := d.Tenant(context.Background(), "ghost")
		if err != nil {
			t.Fatalf("Tenant() error = %v", err)
		}
		if p != nil {
			t.Fatalf("Tenant() = %+v, want nil", p)
		}
	})

	t.Run("empty id is nil nil", func(t *testing.T) {
		p, err := d.Tenant(context.Background(), "")
		if err != nil || p != nil {
			t.Fatalf("Tenant(\"\") = %v, %v, want nil, nil", p, err)
		}
	})
}

func TestDirectoryLazyFetch(t *testing.T) {
	// Snapshot is loaded with acme only; initech arrives later and is
	// fetched lazily, then served from the per-key cache.
	provider := &fakeProvider{profiles: sampleProfiles()[:1]}
	d := New(provider)

	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	provider.profiles = append(provider.profiles, &domain.TenantProfile{
		ID:            "initech",
		PrimaryDomain: "initech.net",
	})

	p, err := d.Tenant(context.Background(), "initech")
	if err != nil {
		t.Fatalf("Tenant() error = %v", err)
	}
	if p == nil || p.ID != "initech" {
		t.Fatalf("Tenant() = %+v, want initech", p)
	}

	calls := provider.getCalls
	if _, err := d.Tenant(context.Background(), "initech"); err != nil {
		t.Fatalf("Tenant() error = %v", err)
	}
	if provider.getCalls != calls {
		t.Errorf("provider Get called again for a cached tenant")
	}
}

func TestDirectoryLoadFailure(t *testing.T) {
	t.Run("without snapshot", func(t *testing.T) {
		provider := &fakeProvider{err: errors.New("store down")}
		d := New(provider)

		if err := d.Load(context.Background()); err == nil {
			t.Fatal("Load() error = nil, want error")
		}
		if entries := d.DomainEntries(); entries != nil {
			t.Errorf("DomainEntries() = %v, want nil", entries)
		}
	})

	t.Run("keeps previous snapshot", func(t *testing.T) {
		provider := &fakeProvider{profiles: sampleProfiles()}
		d := New(provider)

		if err := d.Load(context.Background()); err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		provider.err = errors.New("store down")
		if err := d.Reload(context.Background()); err == nil {
			t.Fatal("Reload() error = nil, want error")
		}

		if _, ok := d.LookupDomain("acme.com"); !ok {
			t.Error("previous snapshot lost after failed reload")
		}
	})
}

func TestDirectoryReloadReplacesWholesale(t *testing.T) {
	provider := &fakeProvider{profiles: sampleProfiles()}
	d := New(provider)

	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	provider.profiles = []*domain.TenantProfile{
		{ID: "initech", PrimaryDomain: "initech.net"},
	}
	if err := d.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if _, ok := d.LookupDomain("acme.com"); ok {
		t.Error("removed domain still indexed after reload")
	}
	if _, ok := d.LookupDomain("initech.net"); !ok {
		t.Error("new domain not indexed after reload")
	}

	tenants := d.ListTenants()
	if len(tenants) != 1 || tenants[0].ID != "initech" {
		t.Errorf("ListTenants() = %v, want [initech]", tenants)
	}
}
