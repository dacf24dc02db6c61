package domain

import "time"

// ConfidenceBucket is a coarse grouping of classification confidence.
type ConfidenceBucket string

const (
	BucketVeryHigh ConfidenceBucket = "very_high"
	BucketHigh     ConfidenceBucket = "high"
	BucketMedium   ConfidenceBucket = "medium"
	BucketLow      ConfidenceBucket = "low"
	BucketVeryLow  ConfidenceBucket = "very_low"
)

// BucketForConfidence maps a confidence to its bucket.
// Lower bounds are inclusive.
func BucketForConfidence(confidence float64) ConfidenceBucket {
	switch {
	case confidence >= 0.9:
		return BucketVeryHigh
	case confidence >= 0.7:
		return BucketHigh
	case confidence >= 0.5:
		return BucketMedium
	case confidence >= 0.3:
		return BucketLow
	default:
		return BucketVeryLow
	}
}

// Special-handling flags.
const (
	FlagUrgentKeywords      = "urgent_keywords"
	FlagComplaintIndicators = "complaint_indicators"
	FlagFallbackRouting     = "fallback_routing"
	FlagHardFallback        = "hard_fallback"
	FlagImmediateEscalation = "immediate_escalation"
)

// EscalationStep is one scheduled forward of an unresolved message.
// Steps are ordered by FireAt ascending; immediate escalations carry
// FireAt equal to the decision timestamp.
type EscalationStep struct {
	Step     int       `json:"step"`
	FireAt   time.Time `json:"fire_at"`
	Target   string    `json:"target"`
	Category Category  `json:"category"`
	Reason   string    `json:"reason,omitempty"`
}

// RoutingDecision is the delivery decision for one classified message.
// Created once per classification, never mutated.
type RoutingDecision struct {
	TenantID             string           `json:"tenant_id,omitempty"`
	Category             Category         `json:"category"`
	PrimaryDestination   string           `json:"primary_destination"`
	BackupDestinations   []string         `json:"backup_destinations,omitempty"`
	Escalations          []EscalationStep `json:"escalations,omitempty"`
	BusinessHoursApplied bool             `json:"business_hours_applied"`
	Bucket               ConfidenceBucket `json:"confidence_bucket"`
	SpecialHandling      []string         `json:"special_handling,omitempty"`
	Timestamp            time.Time        `json:"timestamp"`
}

// HasFlag reports whether a special-handling flag is present.
func (d *RoutingDecision) HasFlag(flag string) bool {
	for _, f := range d.SpecialHandling {
		if f == flag {
			return true
		}
	}
	return false
}
