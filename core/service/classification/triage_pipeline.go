// Package classification implements the cascading message
// classification pipeline.
package classification

import (
	"context"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/directory"
	"triage_server/pkg/logger"
)

// Pipeline orchestrates the ordered classification strategies. Each
// stage either produces a result or fails into the next one; the final
// stage always succeeds, so Classify never returns an error.
//
// Stage 1: tenant AI       (tenant resolved, AI flag enabled) -> ai_client_specific
// Stage 2: keyword table   (tenant resolved)                  -> keyword_fallback
// Stage 3: generic AI      (no tenant)                        -> ai_generic_fallback
// Stage 4: hard default    (always)                           -> default_fallback
type Pipeline struct {
	dir     *directory.Directory
	ai      *AIClassifier
	keyword *KeywordClassifier
}

// NewPipeline creates a Pipeline. A nil completer disables both AI
// stages; the deterministic stages carry the load alone.
func NewPipeline(dir *directory.Directory, completer out.TextCompleter) *Pipeline {
	p := &Pipeline{
		dir:     dir,
		keyword: NewKeywordClassifier(),
	}
	if completer != nil {
		p.ai = NewAIClassifier(completer)
	}
	return p
}

// Classify runs a message through the strategy cascade. tenantID may
// be empty when resolution missed.
func (p *Pipeline) Classify(ctx context.Context, msg *domain.InboundMessage, tenantID string) *domain.Classification {
	log := logger.WithFields(map[string]any{
		"message_id": msg.ID.String(),
		"tenant_id":  tenantID,
	})

	var tenant *domain.TenantProfile
	if tenantID != "" {
		var err error
		tenant, err = p.dir.Tenant(ctx, tenantID)
		if err != nil {
			// Keyword fallback still runs on the default table.
			log.WithError(err).Warn("tenant lookup failed, continuing with defaults")
			tenant = nil
		}
	}

	// Stage 1: tenant-context AI.
	if tenant != nil && tenant.Features.AIClassification && p.ai != nil {
		result, err := p.ai.ClassifyForTenant(ctx, msg, tenant)
		if err == nil {
			log.WithField("category", string(result.Category)).
				Info("classified via tenant AI")
			return result
		}
		log.WithError(err).Info("tenant AI failed, falling back to keywords")
	}

	// Stage 2: deterministic keyword table. Always succeeds when a
	// tenant id is present, even if the profile could not be loaded.
	if tenantID != "" {
		result := p.keyword.Classify(msg, tenant)
		if result.TenantID == "" {
			result.TenantID = tenantID
		}
		log.WithField("category", string(result.Category)).
			Info("classified via keyword table")
		return result
	}

	// Stage 3: generic AI for unresolved tenants.
	if p.ai != nil {
		result, err := p.ai.ClassifyGeneric(ctx, msg)
		if err == nil {
			log.WithField("category", string(result.Category)).
				Info("classified via generic AI")
			return result
		}
		log.WithError(err).Info("generic AI failed, using hard default")
	}

	// Stage 4: hard default. Never fails.
	log.Info("classified via hard default")
	return domain.DefaultClassification(tenantID)
}
