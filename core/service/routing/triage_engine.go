// Package routing turns classifications into delivery decisions.
package routing

import (
	"context"
	"sort"
	"strings"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/directory"
	"triage_server/pkg/logger"

	"github.com/google/uuid"
)

// DefaultOperatorAddress is the hard-coded last-resort destination.
// Every decision chain terminates here, so a primary destination can
// never be empty.
const DefaultOperatorAddress = "operator@triage.internal"

const analyticsTimeout = 5 * time.Second

// Default special-handling keyword sets, overridable via Config.
var (
	defaultUrgentKeywords = []string{
		"urgent", "asap", "immediately", "emergency", "critical",
		"right away", "time sensitive",
	}
	defaultComplaintKeywords = []string{
		"complaint", "unacceptable", "disappointed", "terrible",
		"worst", "furious", "refund or", "cancel my account",
	}
)

// Config holds routing engine knobs.
type Config struct {
	OperatorAddress   string
	UrgentKeywords    []string
	ComplaintKeywords []string

	// Now injects the clock; defaults to time.Now.
	Now func() time.Time
}

// Engine builds RoutingDecisions. Route never fails: every internal
// error degrades to the hard operator fallback.
type Engine struct {
	dir               *directory.Directory
	sinks             []out.AnalyticsSink
	operatorAddress   string
	urgentKeywords    []string
	complaintKeywords []string
	now               func() time.Time
}

// New creates an Engine. Sinks receive a fire-and-forget analytics
// event per decision; sink failures are logged, never surfaced.
func New(dir *directory.Directory, cfg Config, sinks ...out.AnalyticsSink) *Engine {
	operator := cfg.OperatorAddress
	if operator == "" {
		operator = DefaultOperatorAddress
	}
	urgent := cfg.UrgentKeywords
	if len(urgent) == 0 {
		urgent = defaultUrgentKeywords
	}
	complaint := cfg.ComplaintKeywords
	if len(complaint) == 0 {
		complaint = defaultComplaintKeywords
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		dir:               dir,
		sinks:             sinks,
		operatorAddress:   operator,
		urgentKeywords:    urgent,
		complaintKeywords: complaint,
		now:               now,
	}
}

// Route builds the delivery decision for one classified message.
func (e *Engine) Route(ctx context.Context, tenantID string, cls *domain.Classification, msg *domain.InboundMessage) *domain.RoutingDecision {
	started := e.now()
	now := started.UTC()

	flags := make(map[string]bool)
	e.scanSpecialHandling(msg, flags)

	var tenant *domain.TenantProfile
	if tenantID != "" {
		var err error
		tenant, err = e.dir.Tenant(ctx, tenantID)
		if err != nil {
			logger.WithError(err).
				WithField("tenant_id", tenantID).
				Error("tenant configuration unavailable, using hard fallback")
			flags[domain.FlagHardFallback] = true
			tenant = nil
		}
	}

	decision := e.buildDecision(tenant, tenantID, cls, msg, now, flags)

	e.emitAnalytics(tenantID, cls, decision, msg, time.Since(started))

	return decision
}

func (e *Engine) buildDecision(tenant *domain.TenantProfile, tenantID string, cls *domain.Classification, msg *domain.InboundMessage, now time.Time, flags map[string]bool) *domain.RoutingDecision {
	decision := &domain.RoutingDecision{
		TenantID:  tenantID,
		Category:  cls.Category,
		Bucket:    domain.BucketForConfidence(cls.Confidence),
		Timestamp: now,
	}

	if tenant == nil {
		if !flags[domain.FlagHardFallback] {
			flags[domain.FlagFallbackRouting] = true
		}
		decision.PrimaryDestination = e.operatorAddress
		decision.SpecialHandling = sortedFlags(flags)
		return decision
	}

	primary, backups := e.destinationChain(tenant, cls.Category)
	decision.PrimaryDestination = primary
	decision.BackupDestinations = backups

	// After-hours substitution. Applied only when it actually changes
	// the destination.
	within, err := IsWithinBusinessHours(now, tenant.Timezone, tenant.BusinessHours)
	if err != nil {
		logger.WithError(err).
			WithField("tenant_id", tenant.ID).
			Warn("business hours check inconclusive, keeping primary destination")
	}
	if !within {
		afterHours := e.afterHoursDestination(tenant, cls.Category)
		if afterHours != "" && afterHours != decision.PrimaryDestination {
			decision.BackupDestinations = prependUnique(decision.BackupDestinations, decision.PrimaryDestination)
			decision.PrimaryDestination = afterHours
			decision.BusinessHoursApplied = true
		}
	}

	decision.Escalations = e.escalationSchedule(tenant, cls, msg, now, flags)
	decision.SpecialHandling = sortedFlags(flags)

	return decision
}

// destinationChain resolves the ordered destination list for a
// category: enabled rule primary, rule backup, the general rule,
// tenant primary contact, operator address. The first value becomes
// the primary destination.
func (e *Engine) destinationChain(tenant *domain.TenantProfile, category domain.Category) (string, []string) {
	var chain []string

	if rule := tenant.Rule(category); rule != nil {
		chain = append(chain, rule.Primary, rule.Backup)
	}
	if category != domain.CategoryGeneral {
		if general := tenant.Rule(domain.CategoryGeneral); general != nil {
			chain = append(chain, general.Primary)
		}
	}
	chain = append(chain, tenant.PrimaryContact, e.operatorAddress)

	var primary string
	var backups []string
	seen := make(map[string]bool)
	for _, dest := range chain {
		if dest == "" || seen[dest] {
			continue
		}
		seen[dest] = true
		if primary == "" {
			primary = dest
		} else {
			backups = append(backups, dest)
		}
	}

	return primary, backups
}

func (e *Engine) afterHoursDestination(tenant *domain.TenantProfile, category domain.Category) string {
	if rule := tenant.Rule(category); rule != nil && rule.AfterHours != "" {
		return rule.AfterHours
	}
	return tenant.AfterHoursContact
}

// escalationSchedule emits one step per enabled time-triggered rule,
// fire_at = now + trigger duration, in ascending trigger order.
// Keyword- and confidence-triggered rules are evaluated immediately
// and, when satisfied, escalate at once instead of being scheduled.
func (e *Engine) escalationSchedule(tenant *domain.TenantProfile, cls *domain.Classification, msg *domain.InboundMessage, now time.Time, flags map[string]bool) []domain.EscalationStep {
	text := strings.ToLower(msg.Subject + " " + msg.Body)

	var immediate []domain.EscalationStep
	var timed []domain.EscalationRule

	for _, rule := range tenant.EscalationRules {
		if !rule.Enabled {
			continue
		}
		target := rule.Target
		if target == "" {
			target = tenant.EscalationContact
		}
		if target == "" {
			logger.WithField("tenant_id", tenant.ID).
				WithField("rule", rule.Name).
				Warn("escalation rule has no target, skipping")
			continue
		}

		switch rule.Trigger {
		case domain.TriggerTimeElapsed:
			if rule.After > 0 {
				timed = append(timed, rule)
			}

		case domain.TriggerKeyword:
			if keyword, ok := matchAnyKeyword(text, rule.Keywords); ok {
				immediate = append(immediate, domain.EscalationStep{
					FireAt:   now,
					Target:   target,
					Category: cls.Category,
					Reason:   "keyword trigger: " + keyword,
				})
			}

		case domain.TriggerLowConfidence:
			if cls.Confidence < rule.MaxConfidence {
				immediate = append(immediate, domain.EscalationStep{
					FireAt:   now,
					Target:   target,
					Category: cls.Category,
					Reason:   "low classification confidence",
				})
			}
		}
	}

	if len(immediate) > 0 {
		flags[domain.FlagImmediateEscalation] = true
	}

	sort.SliceStable(timed, func(i, j int) bool { return timed[i].After < timed[j].After })

	steps := immediate
	for _, rule := range timed {
		target := rule.Target
		if target == "" {
			target = tenant.EscalationContact
		}
		steps = append(steps, domain.EscalationStep{
			FireAt:   now.Add(rule.After),
			Target:   target,
			Category: cls.Category,
			Reason:   "unresolved after " + rule.After.String(),
		})
	}

	for i := range steps {
		steps[i].Step = i + 1
	}

	return steps
}

func (e *Engine) scanSpecialHandling(msg *domain.InboundMessage, flags map[string]bool) {
	text := strings.ToLower(msg.Subject + " " + msg.Body)

	if _, ok := matchAnyKeyword(text, e.urgentKeywords); ok {
		flags[domain.FlagUrgentKeywords] = true
	}
	if _, ok := matchAnyKeyword(text, e.complaintKeywords); ok {
		flags[domain.FlagComplaintIndicators] = true
	}
}

// emitAnalytics dispatches the routing event without awaiting
// completion. Sink failures are logged only.
func (e *Engine) emitAnalytics(tenantID string, cls *domain.Classification, decision *domain.RoutingDecision, msg *domain.InboundMessage, elapsed time.Duration) {
	if len(e.sinks) == 0 {
		return
	}

	event := &out.RoutingEvent{
		EventID:        uuid.New(),
		TenantID:       tenantID,
		MessageID:      msg.ID,
		Sender:         msg.Sender,
		Recipient:      msg.Recipient,
		Subject:        msg.Subject,
		Classification: cls,
		Decision:       decision,
		DurationMs:     elapsed.Milliseconds(),
		Timestamp:      time.Now().UTC(),
	}

	for _, sink := range e.sinks {
		go func(s out.AnalyticsSink) {
			ctx, cancel := context.WithTimeout(context.Background(), analyticsTimeout)
			defer cancel()

			if err := s.Record(ctx, event); err != nil {
				logger.WithError(err).
					WithField("event_id", event.EventID.String()).
					Warn("failed to record routing event")
			}
		}(sink)
	}
}

func matchAnyKeyword(text string, keywords []string) (string, bool) {
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(keyword)) {
			return keyword, true
		}
	}
	return "", false
}

func prependUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append([]string{value}, list...)
}

func sortedFlags(flags map[string]bool) []string {
	if len(flags) == 0 {
		return nil
	}
	out := make([]string, 0, len(flags))
	for flag := range flags {
		out = append(out, flag)
	}
	sort.Strings(out)
	return out
}
