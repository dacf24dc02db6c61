package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/directory"

	"github.com/google/uuid"
)

type fakeProvider struct {
	profiles []*domain.TenantProfile
	err      error
}

func (f *fakeProvider) Get(_ context.Context, tenantID string) (*domain.TenantProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.profiles {
		if p.ID == tenantID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeProvider) ListAll(_ context.Context) ([]*domain.TenantProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles, nil
}

type captureSink struct {
	events chan *out.RoutingEvent
}

func (s *captureSink) Record(_ context.Context, event *out.RoutingEvent) error {
	s.events <- event
	return nil
}

func acmeProfile() *domain.TenantProfile {
	return &domain.TenantProfile{
		ID:            "acme",
		Name:          "Acme Corp",
		PrimaryDomain: "acme.com",
		Timezone:      "UTC",
		BusinessHours: []domain.BusinessWindow{
			{
				Days: []time.Weekday{
					time.Monday, time.Tuesday, time.Wednesday,
					time.Thursday, time.Friday,
				},
				Start: "09:00",
				End:   "17:00",
			},
		},
		AfterHoursContact: "oncall@acme.com",
		PrimaryContact:    "office@acme.com",
		EscalationContact: "managers@acme.com",
		RoutingRules: map[domain.Category]*domain.RoutingRule{
			domain.CategoryBilling: {
				Category: domain.CategoryBilling,
				Primary:  "billing@acme.com",
				Backup:   "finance@acme.com",
				Enabled:  true,
			},
			domain.CategorySupport: {
				Category:   domain.CategorySupport,
				Primary:    "support@acme.com",
				AfterHours: "support-night@acme.com",
				Enabled:    true,
			},
			domain.CategorySales: {
				Category: domain.CategorySales,
				Primary:  "sales@acme.com",
				Enabled:  false,
			},
			domain.CategoryGeneral: {
				Category: domain.CategoryGeneral,
				Primary:  "inbox@acme.com",
				Enabled:  true,
			},
		},
	}
}

func newTestEngine(t *testing.T, provider *fakeProvider, cfg Config, sinks ...out.AnalyticsSink) *Engine {
	t.Helper()

	dir := directory.New(provider)
	if err := dir.Load(context.Background()); err != nil {
		t.Fatalf("directory load: %v", err)
	}
	return New(dir, cfg, sinks...)
}

func testMessage(subject, body string) *domain.InboundMessage {
	return &domain.InboundMessage{
		ID:         uuid.New(),
		Sender:     "customer@example.com",
		Recipient:  "hello@acme.com",
		Subject:    subject,
		Body:       body,
		ReceivedAt: time.Now().UTC(),
	}
}

func classification(category domain.Category, confidence float64) *domain.Classification {
	return &domain.Classification{
		Category:   category,
		Confidence: confidence,
		Method:     domain.MethodKeywordFallback,
		TenantID:   "acme",
		Timestamp:  time.Now().UTC(),
	}
}

// 2024-03-04 12:00 UTC is a Monday inside Acme's business hours.
var mondayNoon = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

// 2024-03-09 12:00 UTC is a Saturday.
var saturdayNoon = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

func TestBucketForConfidence(t *testing.T) {
	tests := []struct {
		confidence float64
		want       domain.ConfidenceBucket
	}{
		{0.9, domain.BucketVeryHigh},
		{0.89, domain.BucketHigh},
		{0.7, domain.BucketHigh},
		{0.69, domain.BucketMedium},
		{0.5, domain.BucketMedium},
		{0.49, domain.BucketLow},
		{0.3, domain.BucketLow},
		{0.29, domain.BucketVeryLow},
		{0.0, domain.BucketVeryLow},
	}

	for _, tt := range tests {
		if got := domain.BucketForConfidence(tt.confidence); got != tt.want {
			t.Errorf("BucketForConfidence(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}

func TestRouteDestinationChain(t *testing.T) {
	provider := &fakeProvider{profiles: []*domain.TenantProfile{acmeProfile()}}
	engine := newTestEngine(t, provider, Config{Now: func() time.Time { return mondayNoon }})

	tests := []struct {
		name        string
		category    domain.Category
		wantPrimary string
		wantBackups []string
	}{
		{
			name:        "rule primary with backups",
			category:    domain.CategoryBilling,
			wantPrimary: "billing@acme.com",
			wantBackups: []string{"finance@acme.com", "inbox@acme.com", "office@acme.com", DefaultOperatorAddress},
		},
		{
			name:        "disabled rule falls through to general",
			category:    domain.CategorySales,
			wantPrimary: "inbox@acme.com",
			wantBackups: []string{"office@acme.com", DefaultOperatorAddress},
		},
		{
			name:        "unknown category falls through to general",
			category:    domain.Category("legal"),
			wantPrimary: "inbox@acme.com",
			wantBackups: []string{"office@acme.com", DefaultOperatorAddress},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := engine.Route(context.Background(), "acme", classification(tt.category, 0.8), testMessage("hello", "plain message"))

			if decision.PrimaryDestination != tt.wantPrimary {
				t.Errorf("primary = %q, want %q", decision.PrimaryDestination, tt.wantPrimary)
			}
			if len(decision.BackupDestinations) != len(tt.wantBackups) {
				t.Fatalf("backups = %v, want %v", decision.BackupDestinations, tt.wantBackups)
			}
			for i, want := range tt.wantBackups {
				if decision.BackupDestinations[i] != want {
					t.Errorf("backups[%d] = %q, want %q", i, decision.BackupDestinations[i], want)
				}
			}
			if decision.BusinessHoursApplied {
				t.Error("BusinessHoursApplied = true during business hours")
			}
		})
	}
}

func TestRouteAfterHoursSubstitution(t *testing.T) {
	provider := &fakeProvider{profiles: []*domain.TenantProfile{acmeProfile()}}
	engine := newTestEngine(t, provider, Config{Now: func() time.Time { return saturdayNoon }})

	t.Run("rule level after hours wins", func(t *testing.T) {
		decision := engine.Route(context.Background(), "acme", classification(domain.CategorySupport, 0.8), testMessage("hello", "plain message"))

		if decision.PrimaryDestination != "support-night@acme.com" {
			t.Errorf("primary = %q, want support-night@acme.com", decision.PrimaryDestination)
		}
		if !decision.BusinessHoursApplied {
			t.Error("BusinessHoursApplied = false outside business hours")
		}
		// The daytime primary stays reachable as the first backup.
		if len(decision.BackupDestinations) == 0 || decision.BackupDestinations[0] != "support@acme.com" {
			t.Errorf("backups = %v, want support@acme.com first", decision.BackupDestinations)
		}
	})

	t.Run("tenant level after hours fallback", func(t *testing.T) {
		decision := engine.Route(context.Background(), "acme", classification(domain.CategoryBilling, 0.8), testMessage("hello", "plain message"))

		if decision.PrimaryDestination != "oncall@acme.com" {
			t.Errorf("primary = %q, want oncall@acme.com", decision.PrimaryDestination)
		}
		if !decision.BusinessHoursApplied {
			t.Error("BusinessHoursApplied = false outside business hours")
		}
	})
}

func TestRouteUnresolvedTenant(t *testing.T) {
	provider := &fakeProvider{profiles: []*domain.TenantProfile{acmeProfile()}}
	engine := newTestEngine(t, provider, Config{Now: func() time.Time { return mondayNoon }})

	decision := engine.Route(context.Background(), "", classification(domain.CategoryGeneral, 0.3), testMessage("hello", "plain message"))

	if decision.PrimaryDestination != DefaultOperatorAddress {
		t.Errorf("primary = %q, want operator address", decision.PrimaryDestination)
	}
	if !decision.HasFlag(domain.FlagFallbackRouting) {
		t.Errorf("special handling %v missing %s", decision.SpecialHandling, domain.FlagFallbackRouting)
	}
	if decision.HasFlag(domain.FlagHardFallback) {
		t.Errorf("special handling %v should not include %s", decision.SpecialHandling, domain.FlagHardFallback)
	}
}

func TestRouteTenantLookupFailure(t *testing.T) {
	provider := &fakeProvider{profiles: []*domain.TenantProfile{acmeProfile()}}
	dir := directory.New(provider)
	if err := dir.Load(context.Background()); err != nil {
		t.Fatalf("directory load: %v", err)
	}
	// All later lookups fail; "ghost" is not in the snapshot, so its
	// lazy fetch hits the broken provider.
	provider.err = errors.New("store down")

	engine := New(dir, Config{Now: func() time.Time { return mondayNoon }})
	decision := engine.Route(context.Background(), "ghost", classification(domain.CategoryGeneral, 0.3), testMessage("hello", "plain message"))

	if decision.PrimaryDestination != DefaultOperatorAddress {
		t.Errorf("primary = %q, want operator address", decision.PrimaryDestination)
	}
	if !decision.HasFlag(domain.FlagHardFallback) {
		t.Errorf("special handling %v missing %s", decision.SpecialHandling, domain.FlagHardFallback)
	}
}

func TestRouteSpecialHandlingFlags(t *testing.T) {
	provider := &fakeProvider{profiles: []*domain.TenantProfile{acmeProfile()}}
	engine := newTestEngine(t, provider, Config{Now: func() time.Time { return mondayNoon }})

	tests := []struct {
		name    string
		subject string
		body    string
		want    string
	}{
		{
			name:    "urgent keywords in subject",
			subject: "URGENT ASAP please look at this",
			body:    "plain message",
			want:    domain.FlagUrgentKeywords,
		},
		{
			name:    "complaint indicators in body",
			subject: "feedback",
			body:    "this is unacceptable and I am disappointed",
			want:    domain.FlagComplaintIndicators,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := engine.Route(context.Background(), "acme", classification(domain.CategorySupport, 0.8), testMessage(tt.subject, tt.body))
			if !decision.HasFlag(tt.want) {
				t.Errorf("special handling %v missing %s", decision.SpecialHandling, tt.want)
			}
		})
	}
}

func TestRouteEscalationSchedule(t *testing.T) {
	profile := acmeProfile()
	profile.EscalationRules = []domain.EscalationRule{
		{
			Name:    "slow-burn",
			Trigger: domain.TriggerTimeElapsed,
			After:   4 * time.Hour,
			Target:  "managers@acme.com",
			Enabled: true,
		},
		{
			Name:    "first-reminder",
			Trigger: domain.TriggerTimeElapsed,
			After:   time.Hour,
			Enabled: true, // empty target falls back to escalation contact
		},
		{
			Name:     "angry-customer",
			Trigger:  domain.TriggerKeyword,
			Keywords: []string{"lawsuit"},
			Target:   "legal@acme.com",
			Enabled:  true,
		},
		{
			Name:          "shaky-classification",
			Trigger:       domain.TriggerLowConfidence,
			MaxConfidence: 0.5,
			Target:        "review@acme.com",
			Enabled:       true,
		},
		{
			Name:    "disabled-rule",
			Trigger: domain.TriggerTimeElapsed,
			After:   time.Minute,
			Target:  "nobody@acme.com",
			Enabled: false,
		},
	}
	provider := &fakeProvider{profiles: []*domain.TenantProfile{profile}}
	engine := newTestEngine(t, provider, Config{Now: func() time.Time { return mondayNoon }})

	t.Run("timed steps ascending", func(t *testing.T) {
		decision := engine.Route(context.Background(), "acme", classification(domain.CategorySupport, 0.8), testMessage("hello", "plain message"))

		if len(decision.Escalations) != 2 {
			t.Fatalf("escalations = %d, want 2", len(decision.Escalations))
		}
		first, second := decision.Escalations[0], decision.Escalations[1]
		if first.Step != 1 || second.Step != 2 {
			t.Errorf("step numbers = %d, %d, want 1, 2", first.Step, second.Step)
		}
		if !first.FireAt.Equal(mondayNoon.Add(time.Hour)) {
			t.Errorf("first fire_at = %v, want now+1h", first.FireAt)
		}
		if first.Target != "managers@acme.com" {
			t.Errorf("first target = %q, want escalation contact fallback", first.Target)
		}
		if !second.FireAt.Equal(mondayNoon.Add(4 * time.Hour)) {
			t.Errorf("second fire_at = %v, want now+4h", second.FireAt)
		}
		if decision.HasFlag(domain.FlagImmediateEscalation) {
			t.Error("immediate escalation flagged without a trigger")
		}
	})

	t.Run("keyword trigger escalates immediately", func(t *testing.T) {
		decision := engine.Route(context.Background(), "acme", classification(domain.CategorySupport, 0.8), testMessage("hello", "I will file a lawsuit"))

		if len(decision.Escalations) != 3 {
			t.Fatalf("escalations = %d, want 3", len(decision.Escalations))
		}
		first := decision.Escalations[0]
		if first.Target != "legal@acme.com" {
			t.Errorf("first target = %q, want legal@acme.com", first.Target)
		}
		if !first.FireAt.Equal(mondayNoon) {
			t.Errorf("first fire_at = %v, want now", first.FireAt)
		}
		if !decision.HasFlag(domain.FlagImmediateEscalation) {
			t.Errorf("special handling %v missing %s", decision.SpecialHandling, domain.FlagImmediateEscalation)
		}
	})

	t.Run("low confidence trigger escalates immediately", func(t *testing.T) {
		decision := engine.Route(context.Background(), "acme", classification(domain.CategoryGeneral, 0.3), testMessage("hello", "plain message"))

		if len(decision.Escalations) != 3 {
			t.Fatalf("escalations = %d, want 3", len(decision.Escalations))
		}
		if decision.Escalations[0].Target != "review@acme.com" {
			t.Errorf("first target = %q, want review@acme.com", decision.Escalations[0].Target)
		}
		if !decision.HasFlag(domain.FlagImmediateEscalation) {
			t.Errorf("special handling %v missing %s", decision.SpecialHandling, domain.FlagImmediateEscalation)
		}
	})
}

func TestRouteEmitsAnalytics(t *testing.T) {
	provider := &fakeProvider{profiles: []*domain.TenantProfile{acmeProfile()}}
	sink := &captureSink{events: make(chan *out.RoutingEvent, 1)}
	engine := newTestEngine(t, provider, Config{Now: func() time.Time { return mondayNoon }}, sink)

	msg := testMessage("invoice question", "about my invoice")
	decision := engine.Route(context.Background(), "acme", classification(domain.CategoryBilling, 0.95), msg)

	select {
	case event := <-sink.events:
		if event.TenantID != "acme" {
			t.Errorf("event tenant = %q, want acme", event.TenantID)
		}
		if event.MessageID != msg.ID {
			t.Errorf("event message id = %v, want %v", event.MessageID, msg.ID)
		}
		if event.Decision.PrimaryDestination != decision.PrimaryDestination {
			t.Errorf("event primary = %q, want %q", event.Decision.PrimaryDestination, decision.PrimaryDestination)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no analytics event received")
	}
}
