package domain

import (
	"time"

	"github.com/google/uuid"
)

// InboundMessage is a message received from a tenant's end user,
// normalized by the transport layer before entering the pipeline.
type InboundMessage struct {
	ID         uuid.UUID         `json:"id"`
	Sender     string            `json:"sender"`
	Recipient  string            `json:"recipient"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	Headers    map[string]string `json:"headers,omitempty"`
	ReceivedAt time.Time         `json:"received_at"`
}

// MatchKind identifies how a domain was matched to a tenant.
type MatchKind string

const (
	MatchExactPrimary MatchKind = "exact_primary"
	MatchAlias        MatchKind = "alias"
	MatchFuzzy        MatchKind = "fuzzy"
	MatchNone         MatchKind = "none"
)

// DomainCandidate is a near-miss domain carried for diagnostics.
type DomainCandidate struct {
	Domain     string  `json:"domain"`
	TenantID   string  `json:"tenant_id"`
	Similarity float64 `json:"similarity"`
}

// DomainMatch is the unified result of resolving an address to a
// tenant. Matched=false results carry the nearest candidates instead.
type DomainMatch struct {
	Matched    bool              `json:"matched"`
	Domain     string            `json:"domain"`
	TenantID   string            `json:"tenant_id,omitempty"`
	Kind       MatchKind         `json:"kind"`
	Confidence float64           `json:"confidence"`
	Candidates []DomainCandidate `json:"candidates,omitempty"`
}
