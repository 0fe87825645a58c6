package billing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v82"
)

// Webhook event types the billing surface consumes. Everything else is
// recorded and acknowledged without processing.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventCheckoutCompleted   = "checkout.session.completed"
)

// IsSubscriptionEvent reports whether the event carries subscription state.
func IsSubscriptionEvent(eventType string) bool {
	switch eventType {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return true
	default:
		return false
	}
}

// NormalizeSubscriptionEvent extracts the provider subscription and the
// local user reference (from the subscription metadata written at checkout)
// out of a customer.subscription.* event payload. A zero user ID means the
// metadata was absent and the caller must resolve the customer instead.
func NormalizeSubscriptionEvent(event *stripe.Event) (ProviderSubscription, uint, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return ProviderSubscription{}, 0, fmt.Errorf("decoding subscription event payload: %w", err)
	}

	ps := fromStripeSubscription(&sub)

	var userID uint
	if raw, ok := sub.Metadata["user_id"]; ok {
		if v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64); err == nil {
			userID = uint(v)
		}
	}
	return ps, userID, nil
}

// NormalizeCheckoutEvent extracts the checkout session out of a
// checkout.session.completed event payload.
func NormalizeCheckoutEvent(event *stripe.Event) (*ProviderCheckout, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decoding checkout event payload: %w", err)
	}
	return &ProviderCheckout{
		ID:       sess.ID,
		Paid:     sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Metadata: sess.Metadata,
	}, nil
}
