package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/LucasPerrin/Crealance/internal/pkg/env"
)

const subscriptionPageLimit = 100

// Gateway abstracts the Stripe API surface the reconciler and the delivery
// state machine consume, so both can be tested with fakes.
type Gateway interface {
	CustomerIDsByEmail(ctx context.Context, email string) ([]string, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]ProviderSubscription, error)
	NewSubscriptionCheckout(ctx context.Context, userID uint, customerEmail, priceID, successURL, cancelURL string) (string, error)
	NewPaymentCheckout(ctx context.Context, in PaymentCheckoutInput) (string, string, error)
	GetCheckout(ctx context.Context, sessionID string) (*ProviderCheckout, error)
	NewPortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	ParseWebhookEvent(payload []byte, signatureHeader string) (*stripe.Event, error)
}

type stripeGateway struct {
	webhookSecret string
}

// NewStripeGatewayFromEnv wires the stripe-go client with the configured
// secret key. The key is process wide; the gateway is constructed once at
// startup and injected into handlers.
func NewStripeGatewayFromEnv() Gateway {
	stripe.Key = strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", ""))
	return &stripeGateway{
		webhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
	}
}

func (g *stripeGateway) CustomerIDsByEmail(ctx context.Context, email string) ([]string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("email is required")
	}

	params := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(subscriptionPageLimit)

	var ids []string
	iter := customer.List(params)
	for iter.Next() {
		ids = append(ids, iter.Customer().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe customer lookup failed: %w", err)
	}
	return ids, nil
}

func (g *stripeGateway) ListSubscriptions(ctx context.Context, customerID string) ([]ProviderSubscription, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("customer id is required")
	}

	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(subscriptionPageLimit)

	var subs []ProviderSubscription
	iter := subscription.List(params)
	for iter.Next() {
		subs = append(subs, fromStripeSubscription(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe subscription listing failed: %w", err)
	}
	return subs, nil
}

// fromStripeSubscription flattens a Stripe subscription. Period end and price
// live on the subscription item since the 2025 Stripe API.
func fromStripeSubscription(sub *stripe.Subscription) ProviderSubscription {
	ps := ProviderSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		ps.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			ps.PriceID = item.Price.ID
		}
		if item.CurrentPeriodEnd > 0 {
			ps.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0)
		}
	}
	return ps
}

func (g *stripeGateway) NewSubscriptionCheckout(ctx context.Context, userID uint, customerEmail, priceID, successURL, cancelURL string) (string, error) {
	if strings.TrimSpace(priceID) == "" {
		return "", errors.New("price id is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail:     stripe.String(customerEmail),
		ClientReferenceID: stripe.String(fmt.Sprintf("%d", userID)),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": fmt.Sprintf("%d", userID)},
		},
	}
	params.Context = ctx

	s, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe checkout session failed: %w", err)
	}
	return s.URL, nil
}

func (g *stripeGateway) NewPaymentCheckout(ctx context.Context, in PaymentCheckoutInput) (string, string, error) {
	if in.AmountCents <= 0 {
		return "", "", errors.New("amount must be positive")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(in.Currency),
					UnitAmount: stripe.Int64(in.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(in.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(in.CustomerEmail),
		Metadata:      in.Metadata,
	}
	params.Context = ctx

	s, err := checkoutsession.New(params)
	if err != nil {
		return "", "", fmt.Errorf("stripe checkout session failed: %w", err)
	}
	return s.ID, s.URL, nil
}

func (g *stripeGateway) GetCheckout(ctx context.Context, sessionID string) (*ProviderCheckout, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("session id is required")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := checkoutsession.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout lookup failed: %w", err)
	}
	return &ProviderCheckout{
		ID:       s.ID,
		Paid:     s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Metadata: s.Metadata,
	}, nil
}

func (g *stripeGateway) NewPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if strings.TrimSpace(customerID) == "" {
		return "", errors.New("customer id is required")
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe portal session failed: %w", err)
	}
	return s.URL, nil
}

func (g *stripeGateway) ParseWebhookEvent(payload []byte, signatureHeader string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
	if err != nil {
		return nil, err
	}
	return &event, nil
}
