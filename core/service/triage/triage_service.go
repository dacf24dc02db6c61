// Package triage composes resolution, classification and routing into
// the single pipeline both transports invoke.
package triage

import (
	"context"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/service/classification"
	"triage_server/core/service/resolver"
	"triage_server/core/service/routing"
	"triage_server/pkg/logger"

	"github.com/google/uuid"
)

// Service implements in.TriageUseCase and in.ResolveUseCase.
type Service struct {
	resolver *resolver.Resolver
	pipeline *classification.Pipeline
	engine   *routing.Engine
}

// NewService creates the triage service.
func NewService(res *resolver.Resolver, pipeline *classification.Pipeline, engine *routing.Engine) *Service {
	return &Service{
		resolver: res,
		pipeline: pipeline,
		engine:   engine,
	}
}

// Process runs one message through resolve -> classify -> route.
// Every message yields exactly one Classification and exactly one
// RoutingDecision; the pipeline never fails part-way.
func (s *Service) Process(ctx context.Context, msg *domain.InboundMessage) (*in.TriageResult, error) {
	started := time.Now()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	match := s.resolver.ResolveMessage(msg)

	tenantID := ""
	if match.Matched {
		tenantID = match.TenantID
	}

	cls := s.pipeline.Classify(ctx, msg, tenantID)
	decision := s.engine.Route(ctx, tenantID, cls, msg)

	elapsed := time.Since(started)
	logger.WithFields(map[string]any{
		"message_id": msg.ID.String(),
		"tenant_id":  tenantID,
		"category":   string(cls.Category),
		"method":     string(cls.Method),
		"primary":    decision.PrimaryDestination,
	}).WithDuration(elapsed).Info("message triaged")

	return &in.TriageResult{
		Match:          match,
		Classification: cls,
		Decision:       decision,
		DurationMs:     elapsed.Milliseconds(),
	}, nil
}

// Resolve resolves one address for diagnostics.
func (s *Service) Resolve(address string) *domain.DomainMatch {
	return s.resolver.Resolve(address)
}

var (
	_ in.TriageUseCase  = (*Service)(nil)
	_ in.ResolveUseCase = (*Service)(nil)
)
