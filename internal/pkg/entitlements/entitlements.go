package entitlements

import (
	"strings"

	"github.com/LucasPerrin/Crealance/internal/pkg/env"
)

type Plan string

const (
	PlanFree   Plan = "free"
	PlanPro    Plan = "pro"
	PlanStudio Plan = "studio"
)

// Pricing maps Stripe price IDs to internal plans. The union of both lists is
// the allow-list used by the subscription reconciler to ignore unrelated
// subscriptions on a shared customer account.
type Pricing struct {
	ProPriceIDs    []string
	StudioPriceIDs []string
}

// PricingFromEnv reads the configured billable price IDs.
// STRIPE_PRICES_PRO / STRIPE_PRICES_STUDIO are comma separated.
func PricingFromEnv() Pricing {
	return Pricing{
		ProPriceIDs:    splitPriceList(env.GetEnv("STRIPE_PRICES_PRO", "")),
		StudioPriceIDs: splitPriceList(env.GetEnv("STRIPE_PRICES_STUDIO", "")),
	}
}

func splitPriceList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// PlanForPrice resolves a Stripe price ID to the internal plan it sells.
func (p Pricing) PlanForPrice(priceID string) Plan {
	id := strings.TrimSpace(priceID)
	for _, v := range p.StudioPriceIDs {
		if v == id {
			return PlanStudio
		}
	}
	for _, v := range p.ProPriceIDs {
		if v == id {
			return PlanPro
		}
	}
	return PlanFree
}

// AllowList returns the set of billable price IDs. An empty set means no
// filtering is applied.
func (p Pricing) AllowList() map[string]struct{} {
	set := make(map[string]struct{}, len(p.ProPriceIDs)+len(p.StudioPriceIDs))
	for _, v := range p.ProPriceIDs {
		set[v] = struct{}{}
	}
	for _, v := range p.StudioPriceIDs {
		set[v] = struct{}{}
	}
	return set
}

func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPro):
		return PlanPro
	case string(PlanStudio):
		return PlanStudio
	default:
		return PlanFree
	}
}

func PlanRank(plan Plan) int {
	switch plan {
	case PlanStudio:
		return 2
	case PlanPro:
		return 1
	default:
		return 0
	}
}

// MaxOpenMissions returns how many missions a creator may keep open at once.
// Posting requires an entitling subscription, so the free plan gets zero.
func MaxOpenMissions(plan Plan) int {
	switch plan {
	case PlanStudio:
		return 25
	case PlanPro:
		return 5
	default:
		return 0
	}
}

// MaxProposalsPerDay returns the daily proposal quota for a freelancer.
func MaxProposalsPerDay(plan Plan) int {
	switch plan {
	case PlanStudio:
		return 50
	case PlanPro:
		return 10
	default:
		return 0
	}
}
