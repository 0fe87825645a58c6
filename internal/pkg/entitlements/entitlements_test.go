package entitlements

import "testing"

func testPricing() Pricing {
	return Pricing{
		ProPriceIDs:    []string{"price_pro_monthly", "price_pro_yearly"},
		StudioPriceIDs: []string{"price_studio_monthly"},
	}
}

func TestPlanForPrice(t *testing.T) {
	p := testPricing()

	tests := []struct {
		in   string
		want Plan
	}{
		{in: "price_pro_monthly", want: PlanPro},
		{in: "price_pro_yearly", want: PlanPro},
		{in: "price_studio_monthly", want: PlanStudio},
		{in: " price_pro_monthly ", want: PlanPro},
		{in: "price_unknown", want: PlanFree},
		{in: "", want: PlanFree},
	}
	for _, tt := range tests {
		if got := p.PlanForPrice(tt.in); got != tt.want {
			t.Fatalf("PlanForPrice(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAllowList(t *testing.T) {
	set := testPricing().AllowList()
	if len(set) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(set))
	}
	if _, ok := set["price_studio_monthly"]; !ok {
		t.Fatalf("studio price missing from allow-list")
	}

	if len((Pricing{}).AllowList()) != 0 {
		t.Fatalf("empty pricing must yield an empty allow-list")
	}
}

func TestNormalizePlan(t *testing.T) {
	tests := []struct {
		in   string
		want Plan
	}{
		{in: "free", want: PlanFree},
		{in: "pro", want: PlanPro},
		{in: "STUDIO", want: PlanStudio},
		{in: "invalid", want: PlanFree},
		{in: "", want: PlanFree},
	}
	for _, tt := range tests {
		if got := NormalizePlan(tt.in); got != tt.want {
			t.Fatalf("NormalizePlan(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlanRank(t *testing.T) {
	if PlanRank(PlanFree) >= PlanRank(PlanPro) {
		t.Fatalf("expected pro to outrank free")
	}
	if PlanRank(PlanPro) >= PlanRank(PlanStudio) {
		t.Fatalf("expected studio to outrank pro")
	}
}

func TestQuotasGrowWithPlan(t *testing.T) {
	if !(MaxOpenMissions(PlanFree) < MaxOpenMissions(PlanPro) && MaxOpenMissions(PlanPro) < MaxOpenMissions(PlanStudio)) {
		t.Fatalf("open mission quota must grow with the plan")
	}
	if !(MaxProposalsPerDay(PlanFree) < MaxProposalsPerDay(PlanPro) && MaxProposalsPerDay(PlanPro) < MaxProposalsPerDay(PlanStudio)) {
		t.Fatalf("proposal quota must grow with the plan")
	}
}
