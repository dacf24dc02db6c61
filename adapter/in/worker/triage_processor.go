// Package worker processes queued triage jobs from Redis Streams.
package worker

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"triage_server/adapter/out/messaging"
	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/pkg/logger"
)

// TriageProcessor consumes inbound messages from the triage stream and
// runs them through the pipeline. It implements messaging.JobHandler.
type TriageProcessor struct {
	triage in.TriageUseCase
}

// NewTriageProcessor creates a new triage processor.
func NewTriageProcessor(triage in.TriageUseCase) *TriageProcessor {
	return &TriageProcessor{triage: triage}
}

// Handle dispatches one job by stream name. A processing error is
// returned so the consumer leaves the message pending for retry.
func (p *TriageProcessor) Handle(ctx context.Context, stream string, data []byte) error {
	switch stream {
	case messaging.StreamTriageInbound:
		return p.processInbound(ctx, data)
	default:
		// Unknown streams are acknowledged, not retried.
		logger.WithField("stream", stream).Warn("ignoring job from unknown stream")
		return nil
	}
}

func (p *TriageProcessor) processInbound(ctx context.Context, data []byte) error {
	var msg domain.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse inbound message: %w", err)
	}

	result, err := p.triage.Process(ctx, &msg)
	if err != nil {
		return fmt.Errorf("failed to triage message %s: %w", msg.ID, err)
	}

	logger.WithFields(map[string]any{
		"job":        "triage.inbound",
		"message_id": msg.ID.String(),
		"tenant_id":  result.Classification.TenantID,
		"category":   string(result.Classification.Category),
		"primary":    result.Decision.PrimaryDestination,
	}).Info("queued message triaged")

	return nil
}

var _ messaging.JobHandler = (*TriageProcessor)(nil)
