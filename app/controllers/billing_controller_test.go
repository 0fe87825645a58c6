package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/LucasPerrin/Crealance/app/models"
	"github.com/LucasPerrin/Crealance/internal/pkg/billing"
	"github.com/LucasPerrin/Crealance/internal/pkg/entitlements"
)

type stubBillingGateway struct {
	parseEvent *stripe.Event
	parseErr   error
}

func (g *stubBillingGateway) CustomerIDsByEmail(context.Context, string) ([]string, error) {
	return nil, errors.New("not implemented")
}

func (g *stubBillingGateway) ListSubscriptions(context.Context, string) ([]billing.ProviderSubscription, error) {
	return nil, errors.New("not implemented")
}

func (g *stubBillingGateway) NewSubscriptionCheckout(context.Context, uint, string, string, string, string) (string, error) {
	return "", errors.New("not implemented")
}

func (g *stubBillingGateway) NewPaymentCheckout(context.Context, billing.PaymentCheckoutInput) (string, string, error) {
	return "", "", errors.New("not implemented")
}

func (g *stubBillingGateway) GetCheckout(context.Context, string) (*billing.ProviderCheckout, error) {
	return nil, errors.New("not implemented")
}

func (g *stubBillingGateway) NewPortalSession(context.Context, string, string) (string, error) {
	return "", errors.New("not implemented")
}

func (g *stubBillingGateway) ParseWebhookEvent([]byte, string) (*stripe.Event, error) {
	return g.parseEvent, g.parseErr
}

type stubBillingRepo struct {
	created         bool
	markedProcessed []string
}

func (r *stubBillingRepo) UpsertSubscription(*models.Subscription) error { return nil }

func (r *stubBillingRepo) ListSubscriptionsByUser(uint) ([]models.Subscription, error) {
	return nil, nil
}

func (r *stubBillingRepo) LatestEntitlingSubscription(uint, time.Time) (*models.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubBillingRepo) SetUserStripeCustomerID(uint, string) error { return nil }

func (r *stubBillingRepo) UserIDForStripeCustomer(string) (uint, error) {
	return 0, gorm.ErrRecordNotFound
}

func (r *stubBillingRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	event.ID = 7
	return r.created, event, nil
}

func (r *stubBillingRepo) MarkWebhookProcessed(_ uint, processingError string) error {
	r.markedProcessed = append(r.markedProcessed, processingError)
	return nil
}

func newWebhookTestApp(gw billing.Gateway, repo billing.Repository) *fiber.App {
	bc := &BillingController{
		gw:  gw,
		svc: billing.NewService(repo, entitlements.Pricing{}),
	}
	app := fiber.New()
	app.Post("/billing/webhook", bc.HandleStripeWebhook)
	return app
}

func TestStripeWebhookBadSignatureIsRejected(t *testing.T) {
	gw := &stubBillingGateway{parseErr: errors.New("signature mismatch")}
	repo := &stubBillingRepo{created: true}
	app := newWebhookTestApp(gw, repo)

	req := httptest.NewRequest("POST", "/billing/webhook", strings.NewReader(`{"id":"evt_1"}`))
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Len(t, repo.markedProcessed, 1)
}

func TestStripeWebhookBadSignatureReplayStillRejected(t *testing.T) {
	gw := &stubBillingGateway{parseErr: errors.New("signature mismatch")}
	// The payload was already recorded by an earlier attempt.
	repo := &stubBillingRepo{created: false}
	app := newWebhookTestApp(gw, repo)

	req := httptest.NewRequest("POST", "/billing/webhook", strings.NewReader(`{"id":"evt_1"}`))
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestStripeWebhookDuplicateEventIsAcknowledged(t *testing.T) {
	gw := &stubBillingGateway{parseEvent: &stripe.Event{ID: "evt_1", Type: "customer.subscription.updated"}}
	repo := &stubBillingRepo{created: false}
	app := newWebhookTestApp(gw, repo)

	req := httptest.NewRequest("POST", "/billing/webhook", strings.NewReader(`{"id":"evt_1"}`))
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]any
	raw, _ := io.ReadAll(resp.Body)
	assert.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, true, body["duplicate"])
}

func newReconcileTestApp() *fiber.App {
	bc := &BillingController{}
	app := fiber.New()
	app.Post("/billing/reconcile", bc.HandleAdminReconcile)
	return app
}

func TestAdminReconcileRejectsNonNumericUserID(t *testing.T) {
	t.Setenv("BILLING_RECONCILE_SECRET", "reconcile-secret")
	app := newReconcileTestApp()

	for _, raw := range []string{"1 OR 1=1", "abc", "1;DROP TABLE users", "-5", "0"} {
		req := httptest.NewRequest("POST", "/billing/reconcile?user_id="+url.QueryEscape(raw), nil)
		req.Header.Set("X-Reconcile-Secret", "reconcile-secret")
		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "user_id=%q must be rejected", raw)
	}
}

func TestAdminReconcileRequiresSecretOrAdmin(t *testing.T) {
	t.Setenv("BILLING_RECONCILE_SECRET", "reconcile-secret")
	app := newReconcileTestApp()

	req := httptest.NewRequest("POST", "/billing/reconcile", nil)
	req.Header.Set("X-Reconcile-Secret", "wrong")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
