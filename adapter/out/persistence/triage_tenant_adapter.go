// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// TenantAdapter implements out.TenantConfigProvider using PostgreSQL.
type TenantAdapter struct {
	db *sqlx.DB
}

// NewTenantAdapter creates a new TenantAdapter.
func NewTenantAdapter(db *sqlx.DB) *TenantAdapter {
	return &TenantAdapter{db: db}
}

// tenantRow represents the database row for a tenant profile. The
// structured rule sets live in JSONB columns.
type tenantRow struct {
	ID                string         `db:"id"`
	Name              string         `db:"name"`
	PrimaryDomain     string         `db:"primary_domain"`
	DomainAliases     pq.StringArray `db:"domain_aliases"`
	Timezone          sql.NullString `db:"timezone"`
	BusinessHours     []byte         `db:"business_hours"`
	AfterHoursContact sql.NullString `db:"after_hours_contact"`
	PrimaryContact    string         `db:"primary_contact"`
	EscalationContact sql.NullString `db:"escalation_contact"`
	RoutingRules      []byte         `db:"routing_rules"`
	EscalationRules   []byte         `db:"escalation_rules"`
	KeywordRules      []byte         `db:"keyword_rules"`
	Features          []byte         `db:"features"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (r *tenantRow) toEntity() (*domain.TenantProfile, error) {
	profile := &domain.TenantProfile{
		ID:             r.ID,
		Name:           r.Name,
		PrimaryDomain:  r.PrimaryDomain,
		DomainAliases:  r.DomainAliases,
		PrimaryContact: r.PrimaryContact,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}

	if r.Timezone.Valid {
		profile.Timezone = r.Timezone.String
	}
	if r.AfterHoursContact.Valid {
		profile.AfterHoursContact = r.AfterHoursContact.String
	}
	if r.EscalationContact.Valid {
		profile.EscalationContact = r.EscalationContact.String
	}

	if len(r.BusinessHours) > 0 {
		if err := json.Unmarshal(r.BusinessHours, &profile.BusinessHours); err != nil {
			return nil, fmt.Errorf("tenant %s: invalid business_hours: %w", r.ID, err)
		}
	}
	if len(r.RoutingRules) > 0 {
		if err := json.Unmarshal(r.RoutingRules, &profile.RoutingRules); err != nil {
			return nil, fmt.Errorf("tenant %s: invalid routing_rules: %w", r.ID, err)
		}
	}
	if len(r.EscalationRules) > 0 {
		if err := json.Unmarshal(r.EscalationRules, &profile.EscalationRules); err != nil {
			return nil, fmt.Errorf("tenant %s: invalid escalation_rules: %w", r.ID, err)
		}
	}
	if len(r.KeywordRules) > 0 {
		if err := json.Unmarshal(r.KeywordRules, &profile.KeywordRules); err != nil {
			return nil, fmt.Errorf("tenant %s: invalid keyword_rules: %w", r.ID, err)
		}
	}
	if len(r.Features) > 0 {
		if err := json.Unmarshal(r.Features, &profile.Features); err != nil {
			return nil, fmt.Errorf("tenant %s: invalid features: %w", r.ID, err)
		}
	}

	return profile, nil
}

const tenantColumns = `
	id, name, primary_domain, domain_aliases, timezone, business_hours,
	after_hours_contact, primary_contact, escalation_contact,
	routing_rules, escalation_rules, keyword_rules, features,
	created_at, updated_at
`

// Get retrieves one active tenant profile, or (nil, nil) if unknown.
func (a *TenantAdapter) Get(ctx context.Context, tenantID string) (*domain.TenantProfile, error) {
	const query = `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE id = $1 AND active = TRUE
	`

	var row tenantRow
	if err := a.db.GetContext(ctx, &row, query, tenantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return row.toEntity()
}

// ListAll retrieves every active tenant profile.
func (a *TenantAdapter) ListAll(ctx context.Context) ([]*domain.TenantProfile, error) {
	const query = `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE active = TRUE
		ORDER BY id
	`

	var rows []tenantRow
	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	profiles := make([]*domain.TenantProfile, 0, len(rows))
	for i := range rows {
		profile, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}

	return profiles, nil
}

// Upsert creates or updates a tenant profile.
func (a *TenantAdapter) Upsert(ctx context.Context, profile *domain.TenantProfile) error {
	businessHours, err := json.Marshal(profile.BusinessHours)
	if err != nil {
		return err
	}
	routingRules, err := json.Marshal(profile.RoutingRules)
	if err != nil {
		return err
	}
	escalationRules, err := json.Marshal(profile.EscalationRules)
	if err != nil {
		return err
	}
	keywordRules, err := json.Marshal(profile.KeywordRules)
	if err != nil {
		return err
	}
	features, err := json.Marshal(profile.Features)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO tenants (
			id, name, primary_domain, domain_aliases, timezone,
			business_hours, after_hours_contact, primary_contact,
			escalation_contact, routing_rules, escalation_rules,
			keyword_rules, features, active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			TRUE, NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			primary_domain = EXCLUDED.primary_domain,
			domain_aliases = EXCLUDED.domain_aliases,
			timezone = EXCLUDED.timezone,
			business_hours = EXCLUDED.business_hours,
			after_hours_contact = EXCLUDED.after_hours_contact,
			primary_contact = EXCLUDED.primary_contact,
			escalation_contact = EXCLUDED.escalation_contact,
			routing_rules = EXCLUDED.routing_rules,
			escalation_rules = EXCLUDED.escalation_rules,
			keyword_rules = EXCLUDED.keyword_rules,
			features = EXCLUDED.features,
			active = TRUE,
			updated_at = NOW()
	`

	_, err = a.db.ExecContext(ctx, query,
		profile.ID,
		profile.Name,
		profile.PrimaryDomain,
		pq.Array(profile.DomainAliases),
		nullString(profile.Timezone),
		businessHours,
		nullString(profile.AfterHoursContact),
		profile.PrimaryContact,
		nullString(profile.EscalationContact),
		routingRules,
		escalationRules,
		keywordRules,
		features,
	)
	return err
}

// Deactivate soft-deletes a tenant; it disappears from the directory
// on the next reload.
func (a *TenantAdapter) Deactivate(ctx context.Context, tenantID string) error {
	const query = `
		UPDATE tenants
		SET active = FALSE, updated_at = NOW()
		WHERE id = $1
	`

	_, err := a.db.ExecContext(ctx, query, tenantID)
	return err
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ out.TenantConfigProvider = (*TenantAdapter)(nil)
