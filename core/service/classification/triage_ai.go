package classification

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

const maxBodyChars = 2000

// aiResponse is the JSON shape the model is instructed to return. A
// missing confidence defaults to 0.5; a missing category is a failure.
type aiResponse struct {
	Category         string   `json:"category"`
	Confidence       *float64 `json:"confidence"`
	Reasoning        string   `json:"reasoning"`
	SuggestedActions []string `json:"suggested_actions"`
}

// AIClassifier runs the tenant-context and generic AI strategies. Any
// failure (transport error, timeout, malformed response, missing
// category) is returned to the pipeline, which falls through to the
// next strategy.
type AIClassifier struct {
	llm out.TextCompleter
}

// NewAIClassifier creates an AIClassifier.
func NewAIClassifier(llm out.TextCompleter) *AIClassifier {
	return &AIClassifier{llm: llm}
}

// ClassifyForTenant attempts a tenant-context classification.
func (c *AIClassifier) ClassifyForTenant(ctx context.Context, msg *domain.InboundMessage, tenant *domain.TenantProfile) (*domain.Classification, error) {
	resp, err := c.llm.CompleteWithSystem(ctx, tenantSystemPrompt(tenant), userPrompt(msg))
	if err != nil {
		return nil, err
	}
	return parseAIResponse(resp, domain.MethodAIClientSpecific, tenant.ID)
}

// ClassifyGeneric attempts a tenant-less classification.
func (c *AIClassifier) ClassifyGeneric(ctx context.Context, msg *domain.InboundMessage) (*domain.Classification, error) {
	resp, err := c.llm.CompleteWithSystem(ctx, genericSystemPrompt(), userPrompt(msg))
	if err != nil {
		return nil, err
	}
	return parseAIResponse(resp, domain.MethodAIGenericFallback, "")
}

func tenantSystemPrompt(tenant *domain.TenantProfile) string {
	categories := tenantCategories(tenant)

	var b strings.Builder
	fmt.Fprintf(&b, `You are a message triage AI for the company %q. Analyze the inbound message and respond with JSON only.

Categories (pick ONE): %s
`, tenant.Name, strings.Join(categories, ", "))

	if len(tenant.KeywordRules) > 0 {
		b.WriteString("\nCompany category hints:\n")
		for _, category := range categoryOrder(tenant.KeywordRules) {
			fmt.Fprintf(&b, "- %s: %s\n", category, strings.Join(tenant.KeywordRules[category], ", "))
		}
	}

	b.WriteString(`
Respond with this exact JSON format:
{
  "category": "<one of the categories above>",
  "confidence": 0.0-1.0,
  "reasoning": "brief 1-2 sentence explanation",
  "suggested_actions": ["action1", "action2"]
}`)

	return b.String()
}

func genericSystemPrompt() string {
	return `You are a message triage AI. Analyze the inbound message and respond with JSON only.

Categories (pick ONE): support, billing, sales, general

Respond with this exact JSON format:
{
  "category": "support|billing|sales|general",
  "confidence": 0.0-1.0,
  "reasoning": "brief 1-2 sentence explanation",
  "suggested_actions": ["action1", "action2"]
}`
}

func userPrompt(msg *domain.InboundMessage) string {
	return fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\n\nBody:\n%s",
		msg.Sender, msg.Recipient, msg.Subject, truncateBody(msg.Body, maxBodyChars))
}

// tenantCategories collects the tenant's rule categories plus the
// default set, deduplicated and sorted.
func tenantCategories(tenant *domain.TenantProfile) []string {
	seen := map[string]bool{
		string(domain.CategorySupport): true,
		string(domain.CategoryBilling): true,
		string(domain.CategorySales):   true,
		string(domain.CategoryGeneral): true,
	}
	for category := range tenant.RoutingRules {
		seen[string(category)] = true
	}
	for category := range tenant.KeywordRules {
		seen[string(category)] = true
	}

	categories := make([]string, 0, len(seen))
	for category := range seen {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

// parseAIResponse parses the model output. Markdown code fences are
// tolerated; anything else malformed is a strategy failure.
func parseAIResponse(raw string, method domain.ClassificationMethod, tenantID string) (*domain.Classification, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var resp aiResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse classification response: %w", err)
	}

	category := strings.ToLower(strings.TrimSpace(resp.Category))
	if category == "" {
		return nil, fmt.Errorf("classification response missing category")
	}

	confidence := domain.DefaultConfidence
	if resp.Confidence != nil {
		confidence = domain.ClampConfidence(*resp.Confidence)
	}

	return &domain.Classification{
		Category:         domain.Category(category),
		Confidence:       confidence,
		Reasoning:        resp.Reasoning,
		Method:           method,
		TenantID:         tenantID,
		SuggestedActions: resp.SuggestedActions,
		Timestamp:        time.Now().UTC(),
	}, nil
}

func truncateBody(body string, maxChars int) string {
	if len(body) <= maxChars {
		return body
	}
	return body[:maxChars] + "..."
}
