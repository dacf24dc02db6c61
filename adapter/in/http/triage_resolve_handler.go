package http

import (
	"triage_server/core/port/in"
	"triage_server/pkg/apperr"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ResolveHandler exposes address-to-tenant resolution for diagnostics.
type ResolveHandler struct {
	resolver in.ResolveUseCase
}

// NewResolveHandler creates a new resolve handler.
func NewResolveHandler(resolver in.ResolveUseCase) *ResolveHandler {
	return &ResolveHandler{resolver: resolver}
}

// Register registers resolve routes.
func (h *ResolveHandler) Register(router fiber.Router) {
	router.Get("/resolve", h.Resolve)
}

// Resolve resolves one address. A non-match is a 200 with
// matched=false and the nearest candidates, not an error.
func (h *ResolveHandler) Resolve(c *fiber.Ctx) error {
	address := c.Query("address")
	if address == "" {
		return apperr.MissingField("address")
	}

	return response.OK(c, h.resolver.Resolve(address))
}
