package out

import (
	"context"

	"triage_server/core/domain"
)

// MessageQueue enqueues inbound messages for asynchronous triage.
type MessageQueue interface {
	EnqueueInbound(ctx context.Context, msg *domain.InboundMessage) error
}
