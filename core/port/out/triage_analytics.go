package out

import (
	"context"
	"time"

	"triage_server/core/domain"

	"github.com/google/uuid"
)

// RoutingEvent is the analytics payload emitted after each decision.
type RoutingEvent struct {
	EventID        uuid.UUID              `json:"event_id" bson:"event_id"`
	TenantID       string                 `json:"tenant_id,omitempty" bson:"tenant_id,omitempty"`
	MessageID      uuid.UUID              `json:"message_id" bson:"message_id"`
	Sender         string                 `json:"sender" bson:"sender"`
	Recipient      string                 `json:"recipient" bson:"recipient"`
	Subject        string                 `json:"subject" bson:"subject"`
	Classification *domain.Classification `json:"classification" bson:"classification"`
	Decision       *domain.RoutingDecision `json:"decision" bson:"decision"`
	DurationMs     int64                  `json:"duration_ms" bson:"duration_ms"`
	Timestamp      time.Time              `json:"timestamp" bson:"timestamp"`
}

// AnalyticsSink records routing events. Calls are fire-and-forget from
// the caller's perspective; errors are logged, never surfaced.
type AnalyticsSink interface {
	Record(ctx context.Context, event *RoutingEvent) error
}
