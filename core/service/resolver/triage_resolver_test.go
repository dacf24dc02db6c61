package resolver

import (
	"context"
	"testing"

	"triage_server/core/domain"
	"triage_server/core/service/directory"
)

type fakeProvider struct {
	profiles []*domain.TenantProfile
}

func (f *fakeProvider) Get(_ context.Context, tenantID string) (*domain.TenantProfile, error) {
	for _, p := range f.profiles {
		if p.ID == tenantID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeProvider) ListAll(_ context.Context) ([]*domain.TenantProfile, error) {
	return f.profiles, nil
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()

	provider := &fakeProvider{profiles: []*domain.TenantProfile{
		{
			ID:            "acme",
			PrimaryDomain: "acme.com",
			DomainAliases: []string{"acme-corp.com"},
		},
		{
			ID:            "globex",
			PrimaryDomain: "globex.io",
		},
	}}

	dir := directory.New(provider)
	if err := dir.Load(context.Background()); err != nil {
		t.Fatalf("directory load: %v", err)
	}
	return New(dir)
}

func TestResolve(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name           string
		address        string
		wantMatched    bool
		wantTenant     string
		wantKind       domain.MatchKind
		wantConfidence float64
	}{
		{
			name:           "exact primary domain",
			address:        "user@acme.com",
			wantMatched:    true,
			wantTenant:     "acme",
			wantKind:       domain.MatchExactPrimary,
			wantConfidence: 1.0,
		},
		{
			name:           "alias domain",
			address:        "user@acme-corp.com",
			wantMatched:    true,
			wantTenant:     "acme",
			wantKind:       domain.MatchAlias,
			wantConfidence: 1.0,
		},
		{
			name:           "case and subaddress are normalized",
			address:        "User+newsletter@ACME.COM",
			wantMatched:    true,
			wantTenant:     "acme",
			wantKind:       domain.MatchExactPrimary,
			wantConfidence: 1.0,
		},
		{
			name:           "bare domain is accepted",
			address:        "globex.io",
			wantMatched:    true,
			wantTenant:     "globex",
			wantKind:       domain.MatchExactPrimary,
			wantConfidence: 1.0,
		},
		{
			name:        "close typo matches fuzzily",
			address:     "user@acme.co",
			wantMatched: true,
			wantTenant:  "acme",
			wantKind:    domain.MatchFuzzy,
		},
		{
			name:        "distant domain misses",
			address:     "user@wholly-unrelated.example",
			wantMatched: false,
			wantKind:    domain.MatchNone,
		},
		{
			name:        "empty address misses",
			address:     "",
			wantMatched: false,
			wantKind:    domain.MatchNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.address)

			if got.Matched != tt.wantMatched {
				t.Fatalf("Matched = %v, want %v", got.Matched, tt.wantMatched)
			}
			if got.TenantID != tt.wantTenant {
				t.Errorf("TenantID = %q, want %q", got.TenantID, tt.wantTenant)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if tt.wantConfidence != 0 && got.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestResolveFuzzyConfidence(t *testing.T) {
	r := newTestResolver(t)

	// acme.co vs acme.com: one edit over eight characters.
	got := r.Resolve("user@acme.co")
	if !got.Matched || got.Kind != domain.MatchFuzzy {
		t.Fatalf("match = %+v, want fuzzy match", got)
	}
	if got.Confidence < DefaultFuzzyThreshold || got.Confidence >= 1.0 {
		t.Errorf("Confidence = %v, want within [%v, 1.0)", got.Confidence, DefaultFuzzyThreshold)
	}
}

func TestResolveMissCarriesCandidates(t *testing.T) {
	r := newTestResolver(t)

	got := r.Resolve("user@acne.org")
	if got.Matched {
		t.Fatalf("Matched = true, want miss: %+v", got)
	}
	if len(got.Candidates) == 0 {
		t.Fatal("no candidates on miss")
	}
	if len(got.Candidates) > DefaultCandidateCount {
		t.Errorf("candidates = %d, want at most %d", len(got.Candidates), DefaultCandidateCount)
	}
	for i := 1; i < len(got.Candidates); i++ {
		if got.Candidates[i].Similarity > got.Candidates[i-1].Similarity {
			t.Errorf("candidates not sorted by similarity: %v", got.Candidates)
		}
	}
	if got.Candidates[0].Domain != "acme.com" && got.Candidates[0].Domain != "acme-corp.com" {
		t.Errorf("nearest candidate = %q, want an acme domain", got.Candidates[0].Domain)
	}
}

func TestResolveMessage(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name        string
		sender      string
		recipient   string
		wantMatched bool
		wantTenant  string
	}{
		{
			name:        "recipient wins over sender",
			sender:      "user@globex.io",
			recipient:   "support@acme.com",
			wantMatched: true,
			wantTenant:  "acme",
		},
		{
			name:        "sender matched when recipient misses",
			sender:      "user@globex.io",
			recipient:   "triage@unrelated.example",
			wantMatched: true,
			wantTenant:  "globex",
		},
		{
			name:        "double miss",
			sender:      "user@nowhere.example",
			recipient:   "triage@unrelated.example",
			wantMatched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ResolveMessage(&domain.InboundMessage{
				Sender:    tt.sender,
				Recipient: tt.recipient,
			})

			if got.Matched != tt.wantMatched {
				t.Fatalf("Matched = %v, want %v", got.Matched, tt.wantMatched)
			}
			if got.TenantID != tt.wantTenant {
				t.Errorf("TenantID = %q, want %q", got.TenantID, tt.wantTenant)
			}
			if !tt.wantMatched && len(got.Candidates) == 0 {
				t.Error("double miss carries no candidates")
			}
		})
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"User@ACME.com", "acme.com"},
		{"user+tag@acme.com", "acme.com"},
		{"acme.com", "acme.com"},
		{"  user@acme.com  ", "acme.com"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeDomain(tt.address); got != tt.want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", tt.address, got, tt.want)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"User+news@ACME.com", "user@acme.com"},
		{"user@acme.com", "user@acme.com"},
		{"bare-string", "bare-string"},
	}

	for _, tt := range tests {
		if got := NormalizeAddress(tt.address); got != tt.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.address, got, tt.want)
		}
	}
}
