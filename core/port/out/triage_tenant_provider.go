// Package out defines outbound ports consumed by core services.
package out

import (
	"context"

	"triage_server/core/domain"
)

// TenantConfigProvider loads tenant profiles from a backing store.
// Implementations must be safe for concurrent use.
type TenantConfigProvider interface {
	// Get returns the profile for a tenant, or (nil, nil) if unknown.
	Get(ctx context.Context, tenantID string) (*domain.TenantProfile, error)

	// ListAll returns every active tenant profile.
	ListAll(ctx context.Context) ([]*domain.TenantProfile, error)
}
