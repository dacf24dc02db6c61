package domain

import "time"

// Category is a message intent category. Tenants may define their own
// category names; the default set below governs keyword fallback
// priority and the hard default only.
type Category string

const (
	CategorySupport Category = "support"
	CategoryBilling Category = "billing"
	CategorySales   Category = "sales"
	CategoryGeneral Category = "general"
)

// ClassificationMethod tags which pipeline stage produced a result.
type ClassificationMethod string

const (
	MethodAIClientSpecific  ClassificationMethod = "ai_client_specific"
	MethodKeywordFallback   ClassificationMethod = "keyword_fallback"
	MethodAIGenericFallback ClassificationMethod = "ai_generic_fallback"
	MethodDefaultFallback   ClassificationMethod = "default_fallback"
)

// DefaultConfidence is used when an AI response omits a confidence.
const DefaultConfidence = 0.5

// FallbackConfidence is the confidence of the hard default result.
const FallbackConfidence = 0.3

// Classification is the outcome of the classification pipeline.
// Exactly one is produced per inbound message.
type Classification struct {
	Category         Category             `json:"category"`
	Confidence       float64              `json:"confidence"`
	Reasoning        string               `json:"reasoning,omitempty"`
	Method           ClassificationMethod `json:"method"`
	TenantID         string               `json:"tenant_id,omitempty"`
	SuggestedActions []string             `json:"suggested_actions,omitempty"`
	Timestamp        time.Time            `json:"timestamp"`
}

// ClampConfidence clamps a confidence score to [0, 1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DefaultClassification is the hard fallback result: always succeeds.
func DefaultClassification(tenantID string) *Classification {
	return &Classification{
		Category:   CategoryGeneral,
		Confidence: FallbackConfidence,
		Reasoning:  "no classification strategy succeeded",
		Method:     MethodDefaultFallback,
		TenantID:   tenantID,
		Timestamp:  time.Now().UTC(),
	}
}
