package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LucasPerrin/Crealance/app/models"
)

// ErrUpstream wraps Stripe call failures. Reconciliation aborts before any
// local write when this is returned, so a retry is always safe.
var ErrUpstream = errors.New("stripe call failed")

// Reconciler pulls authoritative subscription state from Stripe and merges
// the single "best" subscription into local storage. Stripe is the system of
// record; the local row is an eventually consistent projection.
type Reconciler struct {
	gw  Gateway
	svc *Service

	// allowList restricts reconciliation to known billable price IDs.
	// Empty means any price is accepted.
	allowList map[string]struct{}

	now func() time.Time
}

// NewReconciler builds a reconciler around an injected gateway and service.
func NewReconciler(gw Gateway, svc *Service, allowList map[string]struct{}) *Reconciler {
	return &Reconciler{
		gw:        gw,
		svc:       svc,
		allowList: allowList,
		now:       time.Now,
	}
}

// ReconcileUser determines the single subscription that should be considered
// active for the user and upserts it. A nil subscription with a nil error
// means "no active subscription"; that is a result, not a failure.
//
// Any Stripe call failure aborts the whole invocation before local writes,
// so a retry is always safe.
func (r *Reconciler) ReconcileUser(ctx context.Context, user *models.User) (*models.Subscription, error) {
	if user == nil || user.ID == 0 {
		return nil, errors.New("user is required")
	}

	customerIDs, err := r.candidateCustomerIDs(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(customerIDs) == 0 {
		return nil, nil
	}

	winner, found, err := r.selectBest(ctx, customerIDs)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	sub, err := r.svc.UpsertFromProvider(ctx, user.ID, winner)
	if err != nil {
		return nil, err
	}

	// Persist the winning customer reference when the user had none stored,
	// so later reconciliations skip the email lookup.
	if user.StripeCustomerID == "" && winner.CustomerID != "" {
		if err := r.svc.Repo().SetUserStripeCustomerID(user.ID, winner.CustomerID); err != nil {
			return nil, err
		}
		user.StripeCustomerID = winner.CustomerID
	}

	return sub, nil
}

// candidateCustomerIDs resolves the external customer references to inspect.
// A stored customer ID wins; otherwise fall back to an email lookup, which
// may legitimately return zero or multiple matches.
func (r *Reconciler) candidateCustomerIDs(ctx context.Context, user *models.User) ([]string, error) {
	if id := strings.TrimSpace(user.StripeCustomerID); id != "" {
		return []string{id}, nil
	}
	ids, err := r.gw.CustomerIDsByEmail(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("resolving stripe customers for user %d: %w: %v", user.ID, ErrUpstream, err)
	}
	return ids, nil
}

// selectBest fetches all subscriptions for every candidate customer and
// picks the global survivor with the latest period end.
func (r *Reconciler) selectBest(ctx context.Context, customerIDs []string) (ProviderSubscription, bool, error) {
	var best ProviderSubscription
	found := false
	now := r.now()

	for _, customerID := range customerIDs {
		subs, err := r.gw.ListSubscriptions(ctx, customerID)
		if err != nil {
			return ProviderSubscription{}, false, fmt.Errorf("listing subscriptions for customer %s: %w: %v", customerID, ErrUpstream, err)
		}
		for _, sub := range subs {
			if !r.survives(sub, now) {
				continue
			}
			if !found || sub.CurrentPeriodEnd.After(best.CurrentPeriodEnd) {
				best = sub
				found = true
			}
		}
	}

	return best, found, nil
}

// survives applies the selection filter: entitling status, period end in
// the future, and (when an allow-list is configured) a known price ID.
func (r *Reconciler) survives(sub ProviderSubscription, now time.Time) bool {
	switch strings.ToLower(sub.Status) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing:
	default:
		return false
	}
	if !sub.CurrentPeriodEnd.After(now) {
		return false
	}
	if len(r.allowList) > 0 {
		if _, ok := r.allowList[sub.PriceID]; !ok {
			return false
		}
	}
	return true
}
