// Package domain contains the core entities of the triage server.
package domain

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// EscalationTrigger identifies what fires an escalation rule.
type EscalationTrigger string

const (
	TriggerTimeElapsed   EscalationTrigger = "time_elapsed"
	TriggerKeyword       EscalationTrigger = "keyword"
	TriggerLowConfidence EscalationTrigger = "low_confidence"
)

// RoutingRule maps a category to delivery addresses for one tenant.
type RoutingRule struct {
	Category   Category `json:"category"`
	Primary    string   `json:"primary"`
	Backup     string   `json:"backup,omitempty"`
	AfterHours string   `json:"after_hours,omitempty"`
	Enabled    bool     `json:"enabled"`
}

// EscalationRule describes when and where an unresolved message is
// forwarded beyond its primary destination.
type EscalationRule struct {
	Name          string            `json:"name"`
	Trigger       EscalationTrigger `json:"trigger"`
	After         time.Duration     `json:"after,omitempty"`          // time_elapsed
	Keywords      []string          `json:"keywords,omitempty"`       // keyword
	MaxConfidence float64           `json:"max_confidence,omitempty"` // low_confidence: fire when confidence < value
	Target        string            `json:"target"`
	Enabled       bool              `json:"enabled"`
}

// MarshalJSON renders After as a duration string ("30m", "4h").
func (r EscalationRule) MarshalJSON() ([]byte, error) {
	type alias EscalationRule
	aux := struct {
		alias
		After string `json:"after,omitempty"`
	}{alias: alias(r)}
	if r.After > 0 {
		aux.After = r.After.String()
	}
	return json.Marshal(aux)
}

// UnmarshalJSON accepts After as a duration string.
func (r *EscalationRule) UnmarshalJSON(data []byte) error {
	type alias EscalationRule
	aux := struct {
		*alias
		After string `json:"after,omitempty"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.After != "" {
		d, err := time.ParseDuration(aux.After)
		if err != nil {
			return fmt.Errorf("invalid escalation duration %q: %w", aux.After, err)
		}
		r.After = d
	}
	return nil
}

// BusinessWindow is one weekly recurring window of business hours,
// expressed in the tenant's local timezone as HH:MM strings.
type BusinessWindow struct {
	Days  []time.Weekday `json:"days"`
	Start string         `json:"start"`
	End   string         `json:"end"`
}

// FeatureFlags toggles optional tenant behavior.
type FeatureFlags struct {
	AIClassification bool `json:"ai_classification"`
}

// TenantProfile is the full configuration of one tenant. Profiles are
// immutable once loaded; the directory replaces them wholesale on reload.
type TenantProfile struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	PrimaryDomain string   `json:"primary_domain"`
	DomainAliases []string `json:"domain_aliases,omitempty"`

	Timezone          string           `json:"timezone"`
	BusinessHours     []BusinessWindow `json:"business_hours,omitempty"`
	AfterHoursContact string           `json:"after_hours_contact,omitempty"`

	PrimaryContact    string `json:"primary_contact"`
	EscalationContact string `json:"escalation_contact,omitempty"`

	RoutingRules    map[Category]*RoutingRule `json:"routing_rules,omitempty"`
	EscalationRules []EscalationRule          `json:"escalation_rules,omitempty"`

	// KeywordRules overrides the default keyword-to-category table.
	KeywordRules map[Category][]string `json:"keyword_rules,omitempty"`

	Features FeatureFlags `json:"features"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Rule returns the enabled routing rule for a category, or nil.
func (t *TenantProfile) Rule(category Category) *RoutingRule {
	if t == nil || t.RoutingRules == nil {
		return nil
	}
	rule, ok := t.RoutingRules[category]
	if !ok || rule == nil || !rule.Enabled {
		return nil
	}
	return rule
}

// Domains returns the primary domain followed by all aliases.
func (t *TenantProfile) Domains() []string {
	domains := make([]string, 0, 1+len(t.DomainAliases))
	if t.PrimaryDomain != "" {
		domains = append(domains, t.PrimaryDomain)
	}
	domains = append(domains, t.DomainAliases...)
	return domains
}
