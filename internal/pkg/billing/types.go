package billing

import "time"

// ProviderSubscription is the provider-agnostic shape of a Stripe
// subscription as seen by the reconciler and the webhook handler.
type ProviderSubscription struct {
	ID                string
	CustomerID        string
	Status            string
	PriceID           string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
}

// ProviderCheckout is the slice of a Stripe Checkout session the delivery
// state machine cares about.
type ProviderCheckout struct {
	ID       string
	Paid     bool
	Metadata map[string]string
}

// PaymentCheckoutInput describes a one-off payment Checkout session for a
// delivery.
type PaymentCheckoutInput struct {
	AmountCents   int64
	Currency      string
	ProductName   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
