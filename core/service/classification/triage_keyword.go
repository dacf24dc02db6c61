package classification

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"triage_server/core/domain"
)

// Keyword match confidences.
const (
	keywordMatchConfidence = 0.75
	keywordMissConfidence  = 0.4
)

// defaultKeywordTable is used when a tenant defines no keyword rules.
var defaultKeywordTable = map[domain.Category][]string{
	domain.CategoryBilling: {
		"invoice", "payment", "refund", "charge", "billing",
		"subscription", "receipt", "credit card",
	},
	domain.CategorySupport: {
		"error", "bug", "broken", "crash", "help", "issue",
		"problem", "not working", "failed", "cannot", "can't",
	},
	domain.CategorySales: {
		"pricing", "quote", "demo", "purchase", "upgrade",
		"trial", "plan", "enterprise",
	},
}

// keywordPriority is the fixed evaluation order; the first category
// with any keyword hit wins. Custom tenant categories are checked
// after these, in name order for determinism.
var keywordPriority = []domain.Category{
	domain.CategoryBilling,
	domain.CategorySupport,
	domain.CategorySales,
}

// KeywordClassifier is the deterministic fallback stage. It always
// succeeds: no keyword hit yields the general category.
type KeywordClassifier struct{}

// NewKeywordClassifier creates a KeywordClassifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify matches subject+body tokens against the tenant's (or
// default) keyword-to-category table.
func (c *KeywordClassifier) Classify(msg *domain.InboundMessage, tenant *domain.TenantProfile) *domain.Classification {
	table := defaultKeywordTable
	if tenant != nil && len(tenant.KeywordRules) > 0 {
		table = tenant.KeywordRules
	}

	tenantID := ""
	if tenant != nil {
		tenantID = tenant.ID
	}

	text := strings.ToLower(msg.Subject + " " + msg.Body)

	for _, category := range categoryOrder(table) {
		for _, keyword := range table[category] {
			if keyword == "" {
				continue
			}
			if strings.Contains(text, strings.ToLower(keyword)) {
				return &domain.Classification{
					Category:   category,
					Confidence: keywordMatchConfidence,
					Reasoning:  fmt.Sprintf("keyword match: %q", keyword),
					Method:     domain.MethodKeywordFallback,
					TenantID:   tenantID,
					Timestamp:  time.Now().UTC(),
				}
			}
		}
	}

	return &domain.Classification{
		Category:   domain.CategoryGeneral,
		Confidence: keywordMissConfidence,
		Reasoning:  "no keyword matched",
		Method:     domain.MethodKeywordFallback,
		TenantID:   tenantID,
		Timestamp:  time.Now().UTC(),
	}
}

// categoryOrder returns the fixed priority categories present in the
// table, then any remaining custom categories sorted by name.
func categoryOrder(table map[domain.Category][]string) []domain.Category {
	order := make([]domain.Category, 0, len(table))
	seen := make(map[domain.Category]bool, len(table))

	for _, category := range keywordPriority {
		if _, ok := table[category]; ok {
			order = append(order, category)
			seen[category] = true
		}
	}

	var rest []domain.Category
	for category := range table {
		if !seen[category] && category != domain.CategoryGeneral {
			rest = append(rest, category)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })

	return append(order, rest...)
}
