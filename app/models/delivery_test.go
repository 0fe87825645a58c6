package models

import (
	"testing"
	"time"
)

func TestDeliveryIsParticipant(t *testing.T) {
	d := &Delivery{CreatorID: 1, FreelancerID: 2}

	if !d.IsParticipant(1) || !d.IsParticipant(2) {
		t.Fatalf("creator and freelancer must both be participants")
	}
	if d.IsParticipant(3) {
		t.Fatalf("strangers are not participants")
	}
	if d.IsParticipant(0) {
		t.Fatalf("the zero user id never matches")
	}
}

func TestDeliveryFinalDownloadable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	d := &Delivery{}
	if d.FinalDownloadable(now) {
		t.Fatalf("no asset, not downloadable")
	}

	d.FinalObjectKey = "deliveries/x/final/a.mp4"
	if d.FinalDownloadable(now) {
		t.Fatalf("no expiry set, not downloadable")
	}

	d.FinalExpiresAt = &future
	if !d.FinalDownloadable(now) {
		t.Fatalf("asset within its window must be downloadable")
	}

	d.FinalExpiresAt = &past
	if d.FinalDownloadable(now) {
		t.Fatalf("expired asset must not be downloadable")
	}
}
