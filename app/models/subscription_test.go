package models

import (
	"testing"
	"time"
)

func TestSubscriptionIsEntitling(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name      string
		status    string
		periodEnd *time.Time
		want      bool
	}{
		{name: "active with future end", status: SubscriptionStatusActive, periodEnd: &future, want: true},
		{name: "trialing with future end", status: SubscriptionStatusTrialing, periodEnd: &future, want: true},
		{name: "active but expired", status: SubscriptionStatusActive, periodEnd: &past, want: false},
		{name: "active without period end", status: SubscriptionStatusActive, periodEnd: nil, want: false},
		{name: "canceled", status: SubscriptionStatusCanceled, periodEnd: &future, want: false},
		{name: "past_due", status: SubscriptionStatusPastDue, periodEnd: &future, want: false},
		{name: "paused", status: SubscriptionStatusPaused, periodEnd: &future, want: false},
	}

	for _, tt := range tests {
		sub := &Subscription{Status: tt.status, CurrentPeriodEnd: tt.periodEnd}
		if got := sub.IsEntitling(now); got != tt.want {
			t.Fatalf("%s: IsEntitling = %v, want %v", tt.name, got, tt.want)
		}
	}
}
