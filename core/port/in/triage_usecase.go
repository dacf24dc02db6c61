// Package in defines inbound ports implemented by core services.
package in

import (
	"context"

	"triage_server/core/domain"
)

// TriageResult bundles everything one inbound message produces.
type TriageResult struct {
	Match          *domain.DomainMatch     `json:"match"`
	Classification *domain.Classification  `json:"classification"`
	Decision       *domain.RoutingDecision `json:"decision"`
	DurationMs     int64                   `json:"duration_ms"`
}

// TriageUseCase runs the full resolve -> classify -> route pipeline.
type TriageUseCase interface {
	Process(ctx context.Context, msg *domain.InboundMessage) (*TriageResult, error)
}

// ResolveUseCase resolves a single address for diagnostics.
type ResolveUseCase interface {
	Resolve(address string) *domain.DomainMatch
}

// DirectoryAdmin exposes tenant directory management.
type DirectoryAdmin interface {
	Reload(ctx context.Context) error
	ListTenants() []*domain.TenantProfile
}
