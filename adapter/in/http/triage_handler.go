// Package http provides the Fiber HTTP handlers.
package http

import (
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// TriageHandler handles triage requests.
type TriageHandler struct {
	triage in.TriageUseCase
	queue  out.MessageQueue
}

// NewTriageHandler creates a new triage handler. A nil queue disables
// the async endpoint.
func NewTriageHandler(triage in.TriageUseCase, queue out.MessageQueue) *TriageHandler {
	return &TriageHandler{
		triage: triage,
		queue:  queue,
	}
}

// Register registers triage routes.
func (h *TriageHandler) Register(router fiber.Router) {
	router.Post("/triage", h.Triage)
	router.Post("/triage/async", h.TriageAsync)
}

// TriageRequest is the inbound message payload.
type TriageRequest struct {
	Sender    string            `json:"sender"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Headers   map[string]string `json:"headers,omitempty"`
}

func (r *TriageRequest) toMessage() (*domain.InboundMessage, error) {
	if r.Sender == "" {
		return nil, apperr.BadRequest("sender is required")
	}
	if r.Recipient == "" {
		return nil, apperr.BadRequest("recipient is required")
	}

	return &domain.InboundMessage{
		ID:         uuid.New(),
		Sender:     r.Sender,
		Recipient:  r.Recipient,
		Subject:    r.Subject,
		Body:       r.Body,
		Headers:    r.Headers,
		ReceivedAt: time.Now().UTC(),
	}, nil
}

// Triage classifies and routes one message synchronously.
func (h *TriageHandler) Triage(c *fiber.Ctx) error {
	var req TriageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	msg, err := req.toMessage()
	if err != nil {
		return err
	}

	result, err := h.triage.Process(c.Context(), msg)
	if err != nil {
		return err
	}

	return response.OK(c, result)
}

// TriageAsync enqueues one message for background triage.
func (h *TriageHandler) TriageAsync(c *fiber.Ctx) error {
	if h.queue == nil {
		return apperr.ServiceUnavailable("triage queue", nil)
	}

	var req TriageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	msg, err := req.toMessage()
	if err != nil {
		return err
	}

	if err := h.queue.EnqueueInbound(c.Context(), msg); err != nil {
		return apperr.ServiceUnavailable("triage queue", err)
	}

	return response.Accepted(c, fiber.Map{
		"message_id": msg.ID.String(),
		"status":     "queued",
	})
}
