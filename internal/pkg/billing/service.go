package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/LucasPerrin/Crealance/app/models"
	"github.com/LucasPerrin/Crealance/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// Service provides billing synchronization primitives shared by the
// reconciler, the webhook receiver and the user-facing sync endpoints.
type Service struct {
	repo    Repository
	pricing entitlements.Pricing
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, pricing entitlements.Pricing) *Service {
	return &Service{repo: repo, pricing: pricing}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, pricing entitlements.Pricing) *Service {
	return NewService(NewRepository(db), pricing)
}

// Repo exposes the underlying repository to collaborators constructed from
// the same service.
func (s *Service) Repo() Repository {
	return s.repo
}

// UpsertFromProvider projects provider subscription state into the local
// store. At most one row exists per external subscription ID.
func (s *Service) UpsertFromProvider(ctx context.Context, userID uint, in ProviderSubscription) (*models.Subscription, error) {
	_ = ctx
	if userID == 0 || strings.TrimSpace(in.ID) == "" {
		return nil, errors.New("user_id and subscription id are required")
	}

	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = models.SubscriptionStatusActive
	}

	sub := &models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: strings.TrimSpace(in.ID),
		StripeCustomerID:     strings.TrimSpace(in.CustomerID),
		PriceID:              strings.TrimSpace(in.PriceID),
		Plan:                 string(s.pricing.PlanForPrice(in.PriceID)),
		Status:               status,
		CancelAtPeriodEnd:    in.CancelAtPeriodEnd,
	}
	if !in.CurrentPeriodEnd.IsZero() {
		end := in.CurrentPeriodEnd
		sub.CurrentPeriodEnd = &end
	}

	if err := s.repo.UpsertSubscription(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// CurrentPlan resolves the user's effective plan from the local projection.
// Free when no entitling subscription row exists.
func (s *Service) CurrentPlan(ctx context.Context, userID uint, now time.Time) (entitlements.Plan, error) {
	_ = ctx
	sub, err := s.repo.LatestEntitlingSubscription(userID, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entitlements.PlanFree, nil
		}
		return entitlements.PlanFree, err
	}
	return entitlements.NormalizePlan(sub.Plan), nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// ResolveUserForCustomer maps a Stripe customer reference to a local user.
func (s *Service) ResolveUserForCustomer(ctx context.Context, customerID string) (uint, error) {
	_ = ctx
	if strings.TrimSpace(customerID) == "" {
		return 0, errors.New("customer id is required")
	}
	return s.repo.UserIDForStripeCustomer(customerID)
}
