// Package resolver maps sender/recipient addresses to tenants.
package resolver

import (
	"sort"
	"strings"

	"triage_server/core/domain"
	"triage_server/core/service/directory"
	"triage_server/pkg/logger"

	"github.com/agnivade/levenshtein"
)

const (
	// DefaultFuzzyThreshold is the minimum similarity for an accepted
	// fuzzy match.
	DefaultFuzzyThreshold = 0.8

	// DefaultCandidateCount is how many near-miss domains an
	// unsuccessful match carries for diagnostics.
	DefaultCandidateCount = 5
)

// Resolver resolves addresses against the tenant directory snapshot.
// Resolution is a pure function of the snapshot; it never errors.
type Resolver struct {
	dir       *directory.Directory
	threshold float64
	topN      int
}

// Config holds resolver tuning knobs.
type Config struct {
	FuzzyThreshold float64
	CandidateCount int
}

// New creates a Resolver with default thresholds.
func New(dir *directory.Directory) *Resolver {
	return NewWithConfig(dir, Config{})
}

// NewWithConfig creates a Resolver with explicit thresholds.
func NewWithConfig(dir *directory.Directory, cfg Config) *Resolver {
	threshold := cfg.FuzzyThreshold
	if threshold == 0 {
		threshold = DefaultFuzzyThreshold
	}
	topN := cfg.CandidateCount
	if topN == 0 {
		topN = DefaultCandidateCount
	}
	return &Resolver{dir: dir, threshold: threshold, topN: topN}
}

// Resolve resolves a single address. Order: exact primary domain,
// alias domain, fuzzy similarity over all known domains. A miss is a
// valid outcome carrying the nearest candidates, never an error.
func (r *Resolver) Resolve(address string) *domain.DomainMatch {
	dom := NormalizeDomain(address)
	if dom == "" {
		return &domain.DomainMatch{Matched: false, Kind: domain.MatchNone}
	}

	if entry, ok := r.dir.LookupDomain(dom); ok {
		return &domain.DomainMatch{
			Matched:    true,
			Domain:     dom,
			TenantID:   entry.TenantID,
			Kind:       entry.Kind,
			Confidence: 1.0,
		}
	}

	return r.resolveFuzzy(dom)
}

// ResolveMessage resolves the recipient address first, then the
// sender. The first successful match wins; on a double miss the
// recipient's candidate list is returned.
func (r *Resolver) ResolveMessage(msg *domain.InboundMessage) *domain.DomainMatch {
	byRecipient := r.Resolve(msg.Recipient)
	if byRecipient.Matched {
		return byRecipient
	}

	bySender := r.Resolve(msg.Sender)
	if bySender.Matched {
		return bySender
	}

	logger.WithFields(map[string]any{
		"recipient": msg.Recipient,
		"sender":    msg.Sender,
	}).Debug("no tenant resolved for message")

	return byRecipient
}

func (r *Resolver) resolveFuzzy(dom string) *domain.DomainMatch {
	entries := r.dir.DomainEntries()

	candidates := make([]domain.DomainCandidate, 0, len(entries))
	for _, entry := range entries {
		candidates = append(candidates, domain.DomainCandidate{
			Domain:     entry.Domain,
			TenantID:   entry.TenantID,
			Similarity: similarity(dom, entry.Domain),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	if len(candidates) > 0 && candidates[0].Similarity >= r.threshold {
		best := candidates[0]
		return &domain.DomainMatch{
			Matched:    true,
			Domain:     dom,
			TenantID:   best.TenantID,
			Kind:       domain.MatchFuzzy,
			Confidence: best.Similarity,
		}
	}

	if len(candidates) > r.topN {
		candidates = candidates[:r.topN]
	}

	return &domain.DomainMatch{
		Matched:    false,
		Domain:     dom,
		Kind:       domain.MatchNone,
		Candidates: candidates,
	}
}

// similarity is a Levenshtein-based score in [0,1]; 1.0 means equal.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

// NormalizeDomain lower-cases an address, strips any +subaddress from
// the local part, and returns the domain portion. A bare domain is
// accepted as-is.
func NormalizeDomain(address string) string {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return ""
	}

	at := strings.LastIndex(address, "@")
	if at < 0 {
		return address
	}
	return address[at+1:]
}

// NormalizeAddress lower-cases an address and strips +subaddressing,
// keeping the full local@domain form.
func NormalizeAddress(address string) string {
	address = strings.ToLower(strings.TrimSpace(address))
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return address
	}

	local, dom := address[:at], address[at+1:]
	if plus := strings.Index(local, "+"); plus >= 0 {
		local = local[:plus]
	}
	return local + "@" + dom
}
