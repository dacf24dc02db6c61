package persistence

import (
	"context"
	"fmt"
	"os"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/goccy/go-json"
)

// FileTenantProvider implements out.TenantConfigProvider from a JSON
// file on disk. Intended for local development and small deployments;
// the file is re-read on every ListAll, so a directory reload picks up
// edits without a restart.
type FileTenantProvider struct {
	path string
}

// NewFileTenantProvider creates a provider reading from path.
func NewFileTenantProvider(path string) *FileTenantProvider {
	return &FileTenantProvider{path: path}
}

// tenantFile is the on-disk shape.
type tenantFile struct {
	Tenants []*domain.TenantProfile `json:"tenants"`
}

// Get returns one tenant by scanning the file, or (nil, nil) if absent.
func (p *FileTenantProvider) Get(ctx context.Context, tenantID string) (*domain.TenantProfile, error) {
	profiles, err := p.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, profile := range profiles {
		if profile.ID == tenantID {
			return profile, nil
		}
	}
	return nil, nil
}

// ListAll reads and parses the tenant file.
func (p *FileTenantProvider) ListAll(_ context.Context) ([]*domain.TenantProfile, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant file %s: %w", p.path, err)
	}

	var file tenantFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tenant file %s: %w", p.path, err)
	}

	for _, profile := range file.Tenants {
		if profile == nil || profile.ID == "" {
			return nil, fmt.Errorf("tenant file %s contains an entry without an id", p.path)
		}
	}

	return file.Tenants, nil
}

var _ out.TenantConfigProvider = (*FileTenantProvider)(nil)
