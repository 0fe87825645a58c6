package controllers

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/LucasPerrin/Crealance/app/models"
	"github.com/LucasPerrin/Crealance/app/repository"
	"github.com/LucasPerrin/Crealance/internal/pkg/billing"
	"github.com/LucasPerrin/Crealance/internal/pkg/database"
	"github.com/LucasPerrin/Crealance/internal/pkg/entitlements"
	"github.com/LucasPerrin/Crealance/internal/pkg/env"
	"github.com/LucasPerrin/Crealance/internal/pkg/session"
	"github.com/LucasPerrin/Crealance/internal/pkg/usercontext"
)

const billingCallTimeout = 20 * time.Second

// BillingController exposes the Stripe surface: subscription checkout,
// customer portal, user sync, the webhook receiver and the admin reconcile.
type BillingController struct {
	gw         billing.Gateway
	svc        *billing.Service
	reconciler *billing.Reconciler
	pricing    entitlements.Pricing
}

// NewBillingController creates a billing controller with its dependencies.
func NewBillingController(gw billing.Gateway, svc *billing.Service, reconciler *billing.Reconciler, pricing entitlements.Pricing) *BillingController {
	return &BillingController{gw: gw, svc: svc, reconciler: reconciler, pricing: pricing}
}

// Global billing controller instance
var billingController *BillingController

// InitializeBillingController wires the global billing controller against
// the shared DB handle and the Stripe gateway.
func InitializeBillingController(gw billing.Gateway) {
	pricing := entitlements.PricingFromEnv()
	svc := billing.NewServiceFromDB(database.GetDB(), pricing)
	reconciler := billing.NewReconciler(gw, svc, pricing.AllowList())
	billingController = NewBillingController(gw, svc, reconciler, pricing)
}

// GetBillingController returns the global billing controller instance
func GetBillingController() *BillingController {
	return billingController
}

// HandleSubscriptionCheckout opens a Stripe subscription checkout for one
// of the configured plan prices.
func (bc *BillingController) HandleSubscriptionCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req struct {
		PriceID string `json:"price_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", "request body must be JSON")
	}
	priceID := strings.TrimSpace(req.PriceID)
	if bc.pricing.PlanForPrice(priceID) == entitlements.PlanFree {
		return jsonError(c, fiber.StatusBadRequest, "unknown_price", "price id is not a configured plan")
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not load user")
	}

	base := publicBaseURL()
	ctx, cancel := context.WithTimeout(context.Background(), billingCallTimeout)
	defer cancel()

	url, err := bc.gw.NewSubscriptionCheckout(ctx, user.ID, user.Email, priceID,
		base+"/billing?checkout=success", base+"/billing?checkout=canceled")
	if err != nil {
		return jsonError(c, fiber.StatusBadGateway, "upstream_unavailable", "could not open checkout, retry later")
	}
	return c.JSON(fiber.Map{"checkout_url": url})
}

// HandlePortal opens the Stripe customer portal for subscription management.
func (bc *BillingController) HandlePortal(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not load user")
	}
	if user.StripeCustomerID == "" {
		return jsonError(c, fiber.StatusConflict, "no_customer", "no billing history for this account yet")
	}

	ctx, cancel := context.WithTimeout(context.Background(), billingCallTimeout)
	defer cancel()

	url, err := bc.gw.NewPortalSession(ctx, user.StripeCustomerID, publicBaseURL()+"/billing")
	if err != nil {
		return jsonError(c, fiber.StatusBadGateway, "upstream_unavailable", "could not open portal, retry later")
	}
	return c.JSON(fiber.Map{"portal_url": url})
}

// HandleUserSync reconciles the caller's subscription state against Stripe
// and refreshes the cached plan.
func (bc *BillingController) HandleUserSync(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not load user")
	}

	ctx, cancel := context.WithTimeout(context.Background(), billingCallTimeout)
	defer cancel()

	sub, err := bc.reconciler.ReconcileUser(ctx, user)
	if err != nil {
		if errors.Is(err, billing.ErrUpstream) {
			return jsonError(c, fiber.StatusBadGateway, "upstream_unavailable", "subscription sync failed, retry later")
		}
		return jsonError(c, fiber.StatusInternalServerError, "store_failed", "could not persist subscription state")
	}

	plan := entitlements.PlanFree
	if sub != nil {
		plan = entitlements.NormalizePlan(sub.Plan)
	}
	_ = session.SetSessionValue(c, usercontext.KeyUserPlan, string(plan))

	resp := fiber.Map{"plan": plan}
	if sub != nil {
		resp["subscription"] = sub
	}
	return c.JSON(resp)
}

// HandleGetSubscription returns the local subscription projection and the
// effective plan without touching Stripe.
func (bc *BillingController) HandleGetSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	plan, err := bc.svc.CurrentPlan(c.Context(), userCtx.UserID, time.Now())
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not resolve plan")
	}
	subs, err := bc.svc.Repo().ListSubscriptionsByUser(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not list subscriptions")
	}

	return c.JSON(fiber.Map{
		"plan":          plan,
		"subscriptions": subs,
	})
}

// HandleStripeWebhook receives Stripe events. Every payload is recorded
// first (idempotent on the provider event ID), then processed. Events that
// cannot be mapped to a local user are acknowledged so Stripe stops
// retrying; the stored row keeps the reason.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	ctx, cancel := context.WithTimeout(context.Background(), billingCallTimeout)
	defer cancel()

	event, parseErr := bc.gw.ParseWebhookEvent(rawBody, signature)

	eventID := ""
	eventType := ""
	if event != nil {
		eventID = event.ID
		eventType = string(event.Type)
	}
	created, stored, err := bc.svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  parseErr == nil,
	})
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "webhook_persist_failed", "could not record event")
	}
	if parseErr != nil {
		// Replays of an unverifiable payload still get 401, never the
		// duplicate acknowledgement.
		if created {
			_ = bc.svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		}
		return jsonError(c, fiber.StatusUnauthorized, "invalid_signature", "signature verification failed")
	}
	if !created {
		return c.JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	processErr := bc.processWebhookEvent(ctx, event)
	_ = bc.svc.MarkWebhookProcessed(ctx, stored.ID, processErr)
	if processErr != nil {
		// Acknowledged anyway: the event is stored and a later reconcile
		// or sync-now converges the state.
		return c.JSON(fiber.Map{"ok": true, "deferred": true})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (bc *BillingController) processWebhookEvent(ctx context.Context, event *stripe.Event) error {
	eventType := string(event.Type)

	switch {
	case billing.IsSubscriptionEvent(eventType):
		ps, userID, err := billing.NormalizeSubscriptionEvent(event)
		if err != nil {
			return err
		}
		if userID == 0 && ps.CustomerID != "" {
			resolved, err := bc.svc.ResolveUserForCustomer(ctx, ps.CustomerID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("no local user for stripe customer %s", ps.CustomerID)
				}
				return err
			}
			userID = resolved
		}
		if userID == 0 {
			return errors.New("subscription event carries no resolvable user reference")
		}
		if _, err := bc.svc.UpsertFromProvider(ctx, userID, ps); err != nil {
			return err
		}
		if ps.CustomerID != "" {
			return bc.svc.Repo().SetUserStripeCustomerID(userID, ps.CustomerID)
		}
		return nil

	case eventType == billing.EventCheckoutCompleted:
		co, err := billing.NormalizeCheckoutEvent(event)
		if err != nil {
			return err
		}
		if co.Metadata["kind"] != "delivery_payment" {
			// Subscription checkouts are projected through the
			// customer.subscription.* events instead.
			return nil
		}
		if !co.Paid {
			return nil
		}
		dc := GetDeliveryController()
		if dc == nil {
			return errors.New("delivery controller not initialized")
		}
		res, err := dc.svc.ConfirmPayment(ctx, co.Metadata["delivery_uuid"])
		if err != nil {
			return err
		}
		if res.PaymentConfirmed {
			if d, derr := dc.store.GetByUUID(co.Metadata["delivery_uuid"]); derr == nil {
				notifyDeliveryMail(d.FreelancerID, "Payment received",
					fmt.Sprintf("The delivery for mission %s has been paid. You can now upload the final asset.\n", d.UUID))
			}
		}
		return nil

	default:
		// Recorded, acknowledged, not processed.
		return nil
	}
}

// HandleAdminReconcile runs the reconciler for one user or for every user
// with a Stripe reference. Guarded by a shared secret so it can be driven
// from cron without a session.
func (bc *BillingController) HandleAdminReconcile(c *fiber.Ctx) error {
	secret := strings.TrimSpace(env.GetEnv("BILLING_RECONCILE_SECRET", ""))
	provided := strings.TrimSpace(c.Get("X-Reconcile-Secret"))
	if provided == "" {
		provided = strings.TrimSpace(c.Query("secret"))
	}
	authorized := secret != "" && subtle.ConstantTimeCompare([]byte(secret), []byte(provided)) == 1
	if !authorized && !usercontext.IsAdmin(c) {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "admin session or reconcile secret required")
	}

	var singleUserID uint64
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		id, perr := strconv.ParseUint(raw, 10, 64)
		if perr != nil || id == 0 {
			return jsonError(c, fiber.StatusBadRequest, "invalid_user_id", "user_id must be a positive integer")
		}
		singleUserID = id
	}

	db := database.GetDB()
	if db == nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "database unavailable")
	}

	var users []models.User
	if singleUserID != 0 {
		var user models.User
		if err := db.First(&user, uint(singleUserID)).Error; err != nil {
			return jsonError(c, fiber.StatusNotFound, "not_found", "user not found")
		}
		users = []models.User{user}
	} else {
		if err := db.Where("stripe_customer_id <> ''").Find(&users).Error; err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not list users")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	synced := 0
	failed := 0
	for i := range users {
		if _, err := bc.reconciler.ReconcileUser(ctx, &users[i]); err != nil {
			failed++
			continue
		}
		synced++
	}

	return c.JSON(fiber.Map{
		"users":  len(users),
		"synced": synced,
		"failed": failed,
	})
}
