package http

import (
	"context"

	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuditReader reads recent routing events for a tenant.
type AuditReader interface {
	RecentByTenant(ctx context.Context, tenantID string, limit int64) ([]*out.RoutingEvent, error)
}

// StatsReader reads per-tenant triage counters.
type StatsReader interface {
	TenantStats(ctx context.Context, tenantID string) (map[string]string, error)
}

// TenantHandler handles tenant directory administration.
type TenantHandler struct {
	admin in.DirectoryAdmin
	audit AuditReader
	stats StatsReader
}

// NewTenantHandler creates a new tenant handler. audit and stats are
// optional; their endpoints return 503 when absent.
func NewTenantHandler(admin in.DirectoryAdmin, audit AuditReader, stats StatsReader) *TenantHandler {
	return &TenantHandler{
		admin: admin,
		audit: audit,
		stats: stats,
	}
}

// Register registers tenant routes.
func (h *TenantHandler) Register(router fiber.Router) {
	tenants := router.Group("/tenants")

	tenants.Get("/", h.List)
	tenants.Post("/reload", h.Reload)
	tenants.Get("/:id/events", h.Events)
	tenants.Get("/:id/stats", h.Stats)
}

// List returns every tenant in the current directory snapshot.
func (h *TenantHandler) List(c *fiber.Ctx) error {
	tenants := h.admin.ListTenants()
	return response.OKWithMeta(c, tenants, &response.Meta{Total: len(tenants)})
}

// Reload rebuilds the tenant directory from the backing store.
func (h *TenantHandler) Reload(c *fiber.Ctx) error {
	if err := h.admin.Reload(c.Context()); err != nil {
		logger.WithError(err).Error("tenant directory reload failed")
		return err
	}

	tenants := h.admin.ListTenants()
	return response.OK(c, fiber.Map{
		"status":  "reloaded",
		"tenants": len(tenants),
	})
}

// Events returns the newest routing events for a tenant.
func (h *TenantHandler) Events(c *fiber.Ctx) error {
	if h.audit == nil {
		return apperr.ServiceUnavailable("routing audit", nil)
	}

	tenantID := c.Params("id")
	limit := int64(c.QueryInt("limit", 50))

	events, err := h.audit.RecentByTenant(c.Context(), tenantID, limit)
	if err != nil {
		return apperr.DatabaseError("list routing events", err)
	}

	return response.OKWithMeta(c, events, &response.Meta{Total: len(events)})
}

// Stats returns the per-tenant triage counters.
func (h *TenantHandler) Stats(c *fiber.Ctx) error {
	if h.stats == nil {
		return apperr.ServiceUnavailable("triage stats", nil)
	}

	stats, err := h.stats.TenantStats(c.Context(), c.Params("id"))
	if err != nil {
		return apperr.ExternalError("triage stats", err)
	}

	return response.OK(c, stats)
}
