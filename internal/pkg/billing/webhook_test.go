package billing

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82"
)

func subscriptionEvent(t *testing.T, payload string) *stripe.Event {
	t.Helper()
	return &stripe.Event{
		Type: stripe.EventType(EventSubscriptionUpdated),
		Data: &stripe.EventData{Raw: json.RawMessage(payload)},
	}
}

func TestNormalizeSubscriptionEvent(t *testing.T) {
	periodEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	payload := `{
		"id": "sub_123",
		"status": "active",
		"cancel_at_period_end": true,
		"customer": {"id": "cus_123"},
		"metadata": {"user_id": "42"},
		"items": {"data": [{"current_period_end": ` + strconv.FormatInt(periodEnd.Unix(), 10) + `, "price": {"id": "price_pro"}}]}
	}`

	ps, userID, err := NormalizeSubscriptionEvent(subscriptionEvent(t, payload))
	if err != nil {
		t.Fatalf("NormalizeSubscriptionEvent: %v", err)
	}
	if ps.ID != "sub_123" || ps.CustomerID != "cus_123" || ps.PriceID != "price_pro" {
		t.Fatalf("unexpected projection: %+v", ps)
	}
	if !ps.CancelAtPeriodEnd {
		t.Fatalf("expected cancel_at_period_end to carry over")
	}
	if !ps.CurrentPeriodEnd.Equal(periodEnd) {
		t.Fatalf("period end = %v, want %v", ps.CurrentPeriodEnd, periodEnd)
	}
	if userID != 42 {
		t.Fatalf("user id = %d, want 42", userID)
	}
}

func TestNormalizeSubscriptionEventWithoutMetadata(t *testing.T) {
	payload := `{"id": "sub_456", "status": "trialing", "customer": {"id": "cus_456"}}`

	ps, userID, err := NormalizeSubscriptionEvent(subscriptionEvent(t, payload))
	if err != nil {
		t.Fatalf("NormalizeSubscriptionEvent: %v", err)
	}
	if userID != 0 {
		t.Fatalf("expected zero user id without metadata, got %d", userID)
	}
	if ps.CustomerID != "cus_456" {
		t.Fatalf("customer id = %q", ps.CustomerID)
	}
}

func TestNormalizeSubscriptionEventRejectsGarbage(t *testing.T) {
	if _, _, err := NormalizeSubscriptionEvent(subscriptionEvent(t, `{"id":`)); err == nil {
		t.Fatalf("expected a decode error")
	}
}

func TestNormalizeCheckoutEvent(t *testing.T) {
	event := &stripe.Event{
		Type: stripe.EventType(EventCheckoutCompleted),
		Data: &stripe.EventData{Raw: json.RawMessage(`{
			"id": "cs_123",
			"payment_status": "paid",
			"metadata": {"kind": "delivery_payment", "delivery_uuid": "d-uuid"}
		}`)},
	}

	co, err := NormalizeCheckoutEvent(event)
	if err != nil {
		t.Fatalf("NormalizeCheckoutEvent: %v", err)
	}
	if co.ID != "cs_123" || !co.Paid {
		t.Fatalf("unexpected checkout: %+v", co)
	}
	if co.Metadata["delivery_uuid"] != "d-uuid" {
		t.Fatalf("metadata missing: %+v", co.Metadata)
	}
}

func TestIsSubscriptionEvent(t *testing.T) {
	for _, et := range []string{EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted} {
		if !IsSubscriptionEvent(et) {
			t.Fatalf("expected %q to be a subscription event", et)
		}
	}
	if IsSubscriptionEvent(EventCheckoutCompleted) {
		t.Fatalf("checkout events are not subscription events")
	}
}
