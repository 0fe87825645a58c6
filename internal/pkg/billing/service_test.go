package billing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/LucasPerrin/Crealance/internal/pkg/entitlements"
)

func newTestServiceWithRepo() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	svc := NewService(repo, entitlements.Pricing{
		ProPriceIDs:    []string{"price_pro"},
		StudioPriceIDs: []string{"price_studio"},
	})
	return svc, repo
}

func TestUpsertFromProviderMapsPlan(t *testing.T) {
	svc, repo := newTestServiceWithRepo()
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	sub, err := svc.UpsertFromProvider(context.Background(), 7, ProviderSubscription{
		ID:               "sub_1",
		CustomerID:       "cus_1",
		Status:           "Active",
		PriceID:          "price_studio",
		CurrentPeriodEnd: end,
	})
	if err != nil {
		t.Fatalf("UpsertFromProvider: %v", err)
	}
	if sub.Plan != "studio" {
		t.Fatalf("plan = %q, want studio", sub.Plan)
	}
	if sub.Status != "active" {
		t.Fatalf("status must be lowercased, got %q", sub.Status)
	}
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(end) {
		t.Fatalf("period end = %v", sub.CurrentPeriodEnd)
	}
	if len(repo.upserts) != 1 {
		t.Fatalf("expected one upsert, got %d", len(repo.upserts))
	}
}

func TestUpsertFromProviderRequiresIDs(t *testing.T) {
	svc, _ := newTestServiceWithRepo()

	if _, err := svc.UpsertFromProvider(context.Background(), 0, ProviderSubscription{ID: "sub_1"}); err == nil {
		t.Fatalf("expected error for zero user id")
	}
	if _, err := svc.UpsertFromProvider(context.Background(), 7, ProviderSubscription{}); err == nil {
		t.Fatalf("expected error for empty subscription id")
	}
}

func TestCurrentPlanFallsBackToFree(t *testing.T) {
	svc, _ := newTestServiceWithRepo()

	plan, err := svc.CurrentPlan(context.Background(), 7, time.Now())
	if err != nil {
		t.Fatalf("CurrentPlan: %v", err)
	}
	if plan != entitlements.PlanFree {
		t.Fatalf("plan = %q, want free", plan)
	}
}

func TestRecordWebhookEventHashesMissingID(t *testing.T) {
	svc, _ := newTestServiceWithRepo()

	created, stored, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		EventType:      "customer.subscription.updated",
		PayloadJSON:    `{"id":"evt"}`,
		SignatureValid: true,
	})
	if err != nil {
		t.Fatalf("RecordWebhookEvent: %v", err)
	}
	if !created || stored == nil {
		t.Fatalf("expected a stored event")
	}
	if !strings.HasPrefix(stored.ProviderEventID, "hash:") {
		t.Fatalf("expected hashed fallback id, got %q", stored.ProviderEventID)
	}
}
