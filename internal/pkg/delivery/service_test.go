package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/LucasPerrin/Crealance/app/models"
	"github.com/LucasPerrin/Crealance/internal/pkg/billing"
)

const (
	creatorID    = uint(10)
	freelancerID = uint(20)
	strangerID   = uint(99)
)

// memStore mirrors the conditional-update guards of the SQL store in memory.
type memStore struct {
	delivery models.Delivery
	mission  models.Mission
}

func newMemStore(status, paymentStatus string) *memStore {
	return &memStore{
		delivery: models.Delivery{
			ID:            1,
			UUID:          "d-1",
			MissionID:     5,
			CreatorID:     creatorID,
			FreelancerID:  freelancerID,
			AmountCents:   15000,
			Currency:      "eur",
			Status:        status,
			PaymentStatus: paymentStatus,
		},
		mission: models.Mission{ID: 5, Status: models.MissionStatusInProgress},
	}
}

func (s *memStore) GetByUUID(uuid string) (*models.Delivery, error) {
	if uuid != s.delivery.UUID {
		return nil, gorm.ErrRecordNotFound
	}
	d := s.delivery
	return &d, nil
}

func (s *memStore) GetByMissionID(missionID uint) (*models.Delivery, error) {
	if missionID != s.delivery.MissionID {
		return nil, gorm.ErrRecordNotFound
	}
	d := s.delivery
	return &d, nil
}

func (s *memStore) ListForUser(userID uint) ([]models.Delivery, error) {
	if s.delivery.IsParticipant(userID) {
		return []models.Delivery{s.delivery}, nil
	}
	return nil, nil
}

func (s *memStore) SetPreviewObject(deliveryID uint, objectKey string) (bool, error) {
	if deliveryID != s.delivery.ID || s.delivery.Status != models.DeliveryStatusCreated {
		return false, nil
	}
	s.delivery.PreviewObjectKey = objectKey
	return true, nil
}

func (s *memStore) MarkValidated(deliveryID uint) (bool, error) {
	if deliveryID != s.delivery.ID || s.delivery.Status != models.DeliveryStatusCreated || s.delivery.PreviewObjectKey == "" {
		return false, nil
	}
	s.delivery.Status = models.DeliveryStatusValidated
	return true, nil
}

func (s *memStore) SetPaymentPending(deliveryID uint, checkoutSessionID string) (bool, error) {
	if deliveryID != s.delivery.ID || s.delivery.PaymentStatus == models.PaymentStatusPaid {
		return false, nil
	}
	s.delivery.PaymentStatus = models.PaymentStatusPending
	s.delivery.CheckoutSessionID = checkoutSessionID
	return true, nil
}

func (s *memStore) MarkPaid(deliveryID uint, paidAt time.Time) (bool, error) {
	if deliveryID != s.delivery.ID || s.delivery.PaymentStatus == models.PaymentStatusPaid {
		return false, nil
	}
	s.delivery.PaymentStatus = models.PaymentStatusPaid
	s.delivery.PaidAt = &paidAt
	return true, nil
}

func (s *memStore) SetFinalObject(deliveryID uint, objectKey string) (bool, error) {
	if deliveryID != s.delivery.ID ||
		s.delivery.PaymentStatus != models.PaymentStatusPaid ||
		s.delivery.Status == models.DeliveryStatusCompleted {
		return false, nil
	}
	s.delivery.FinalObjectKey = objectKey
	return true, nil
}

func (s *memStore) AdvanceToFinalSent(deliveryID uint, expiresAt time.Time) (bool, error) {
	if deliveryID != s.delivery.ID ||
		s.delivery.PaymentStatus != models.PaymentStatusPaid ||
		s.delivery.FinalObjectKey == "" ||
		s.delivery.Status == models.DeliveryStatusFinalSent ||
		s.delivery.Status == models.DeliveryStatusCompleted {
		return false, nil
	}
	s.delivery.Status = models.DeliveryStatusFinalSent
	s.delivery.FinalExpiresAt = &expiresAt
	s.mission.Status = models.MissionStatusCompleted
	return true, nil
}

func (s *memStore) Complete(deliveryID uint) (bool, error) {
	if deliveryID != s.delivery.ID || s.delivery.Status != models.DeliveryStatusFinalSent {
		return false, nil
	}
	s.delivery.Status = models.DeliveryStatusCompleted
	return true, nil
}

type stubGateway struct {
	checkoutID  string
	checkoutURL string
	checkout    *billing.ProviderCheckout
	err         error
	calls       int
}

func (g *stubGateway) CustomerIDsByEmail(context.Context, string) ([]string, error) {
	return nil, errors.New("not implemented")
}

func (g *stubGateway) ListSubscriptions(context.Context, string) ([]billing.ProviderSubscription, error) {
	return nil, errors.New("not implemented")
}

func (g *stubGateway) NewSubscriptionCheckout(context.Context, uint, string, string, string, string) (string, error) {
	return "", errors.New("not implemented")
}

func (g *stubGateway) NewPaymentCheckout(context.Context, billing.PaymentCheckoutInput) (string, string, error) {
	g.calls++
	if g.err != nil {
		return "", "", g.err
	}
	return g.checkoutID, g.checkoutURL, nil
}

func (g *stubGateway) GetCheckout(context.Context, string) (*billing.ProviderCheckout, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.checkout, nil
}

func (g *stubGateway) NewPortalSession(context.Context, string, string) (string, error) {
	return "", errors.New("not implemented")
}

func (g *stubGateway) ParseWebhookEvent([]byte, string) (*stripe.Event, error) {
	return nil, errors.New("not implemented")
}

func newTestService(store Store, gw billing.Gateway, now time.Time) *Service {
	svc := NewService(store, gw)
	svc.now = func() time.Time { return now }
	return svc
}

func TestCreatePaymentSessionRequiresValidatedState(t *testing.T) {
	gw := &stubGateway{checkoutID: "cs_1", checkoutURL: "https://stripe.test/cs_1"}

	for _, status := range []string{
		models.DeliveryStatusCreated,
		models.DeliveryStatusFinalSent,
		models.DeliveryStatusCompleted,
	} {
		store := newMemStore(status, "")
		svc := newTestService(store, gw, time.Now())

		_, err := svc.CreatePaymentSession(context.Background(), creatorID, "c@example.com", "d-1", "s", "c")
		if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("status %s: expected ErrInvalidState, got %v", status, err)
		}
	}
	if gw.calls != 0 {
		t.Fatalf("gateway must not be called when guards fail, got %d calls", gw.calls)
	}
}

func TestCreatePaymentSessionRejectsAlreadyPaid(t *testing.T) {
	store := newMemStore(models.DeliveryStatusValidated, models.PaymentStatusPaid)
	svc := newTestService(store, &stubGateway{}, time.Now())

	_, err := svc.CreatePaymentSession(context.Background(), creatorID, "c@example.com", "d-1", "s", "c")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestCreatePaymentSessionCreatorOnly(t *testing.T) {
	store := newMemStore(models.DeliveryStatusValidated, "")
	svc := newTestService(store, &stubGateway{}, time.Now())

	if _, err := svc.CreatePaymentSession(context.Background(), freelancerID, "f@example.com", "d-1", "s", "c"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("freelancer: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.CreatePaymentSession(context.Background(), strangerID, "x@example.com", "d-1", "s", "c"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger: expected ErrForbidden, got %v", err)
	}
}

func TestCreatePaymentSessionStoresPendingState(t *testing.T) {
	store := newMemStore(models.DeliveryStatusValidated, "")
	gw := &stubGateway{checkoutID: "cs_1", checkoutURL: "https://stripe.test/cs_1"}
	svc := newTestService(store, gw, time.Now())

	url, err := svc.CreatePaymentSession(context.Background(), creatorID, "c@example.com", "d-1", "s", "c")
	if err != nil {
		t.Fatalf("CreatePaymentSession: %v", err)
	}
	if url != "https://stripe.test/cs_1" {
		t.Fatalf("url = %q", url)
	}
	if store.delivery.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("payment status = %q, want PENDING", store.delivery.PaymentStatus)
	}
	if store.delivery.CheckoutSessionID != "cs_1" {
		t.Fatalf("checkout session id = %q", store.delivery.CheckoutSessionID)
	}
}

func TestCreatePaymentSessionUpstreamFailureLeavesStateUntouched(t *testing.T) {
	store := newMemStore(models.DeliveryStatusValidated, "")
	gw := &stubGateway{err: errors.New("stripe is down")}
	svc := newTestService(store, gw, time.Now())

	_, err := svc.CreatePaymentSession(context.Background(), creatorID, "c@example.com", "d-1", "s", "c")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if store.delivery.PaymentStatus != "" || store.delivery.CheckoutSessionID != "" {
		t.Fatalf("state changed after upstream failure: %+v", store.delivery)
	}
}

func TestSyncNowConfirmsPaymentAndAdvances(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore(models.DeliveryStatusValidated, models.PaymentStatusPending)
	store.delivery.CheckoutSessionID = "cs_1"
	store.delivery.FinalObjectKey = "deliveries/d-1/final/x.mp4"
	gw := &stubGateway{checkout: &billing.ProviderCheckout{ID: "cs_1", Paid: true}}
	svc := newTestService(store, gw, now)

	res, err := svc.SyncNow(context.Background(), freelancerID, "d-1")
	if err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if !res.PaymentConfirmed || !res.Advanced || !res.Updated() {
		t.Fatalf("unexpected result: %+v", res)
	}
	if store.delivery.Status != models.DeliveryStatusFinalSent {
		t.Fatalf("status = %q, want FINAL_SENT", store.delivery.Status)
	}
	if store.mission.Status != models.MissionStatusCompleted {
		t.Fatalf("mission status = %q, want COMPLETED", store.mission.Status)
	}
	wantExpiry := now.Add(FinalAssetTTL)
	if store.delivery.FinalExpiresAt == nil || !store.delivery.FinalExpiresAt.Equal(wantExpiry) {
		t.Fatalf("final expiry = %v, want %v", store.delivery.FinalExpiresAt, wantExpiry)
	}
}

func TestSyncNowIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore(models.DeliveryStatusFinalSent, models.PaymentStatusPaid)
	store.delivery.FinalObjectKey = "deliveries/d-1/final/x.mp4"
	svc := newTestService(store, &stubGateway{}, now)

	res, err := svc.SyncNow(context.Background(), creatorID, "d-1")
	if err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if res.Updated() {
		t.Fatalf("expected no update on an already advanced delivery, got %+v", res)
	}
}

func TestSyncNowUnpaidCheckoutChangesNothing(t *testing.T) {
	store := newMemStore(models.DeliveryStatusValidated, models.PaymentStatusPending)
	store.delivery.CheckoutSessionID = "cs_1"
	gw := &stubGateway{checkout: &billing.ProviderCheckout{ID: "cs_1", Paid: false}}
	svc := newTestService(store, gw, time.Now())

	res, err := svc.SyncNow(context.Background(), creatorID, "d-1")
	if err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if res.Updated() {
		t.Fatalf("expected no update, got %+v", res)
	}
	if store.delivery.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("payment status changed: %q", store.delivery.PaymentStatus)
	}
}

func TestSyncNowParticipantOnly(t *testing.T) {
	store := newMemStore(models.DeliveryStatusValidated, models.PaymentStatusPending)
	svc := newTestService(store, &stubGateway{}, time.Now())

	if _, err := svc.SyncNow(context.Background(), strangerID, "d-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.SyncNow(context.Background(), creatorID, "d-unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncNowUpstreamFailure(t *testing.T) {
	store := newMemStore(models.DeliveryStatusValidated, models.PaymentStatusPending)
	store.delivery.CheckoutSessionID = "cs_1"
	gw := &stubGateway{err: errors.New("stripe is down")}
	svc := newTestService(store, gw, time.Now())

	if _, err := svc.SyncNow(context.Background(), creatorID, "d-1"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if store.delivery.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("state changed after upstream failure")
	}
}

func TestValidateRequiresPreviewAndCreator(t *testing.T) {
	store := newMemStore(models.DeliveryStatusCreated, "")
	svc := newTestService(store, &stubGateway{}, time.Now())

	if _, err := svc.Validate(context.Background(), freelancerID, "d-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("freelancer validate: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Validate(context.Background(), creatorID, "d-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("validate without preview: expected ErrInvalidState, got %v", err)
	}

	if _, err := svc.AttachPreview(context.Background(), freelancerID, "d-1", "deliveries/d-1/preview/p.png"); err != nil {
		t.Fatalf("AttachPreview: %v", err)
	}
	d, err := svc.Validate(context.Background(), creatorID, "d-1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if d.Status != models.DeliveryStatusValidated {
		t.Fatalf("status = %q, want VALIDATED", d.Status)
	}
}

func TestAttachPreviewFreelancerOnlyBeforeValidation(t *testing.T) {
	store := newMemStore(models.DeliveryStatusValidated, "")
	svc := newTestService(store, &stubGateway{}, time.Now())

	if _, err := svc.AttachPreview(context.Background(), creatorID, "d-1", "k"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("creator upload: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.AttachPreview(context.Background(), freelancerID, "d-1", "k"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("post-validation upload: expected ErrInvalidState, got %v", err)
	}
}

func TestAttachFinalRequiresPayment(t *testing.T) {
	store := newMemStore(models.DeliveryStatusValidated, models.PaymentStatusPending)
	svc := newTestService(store, &stubGateway{}, time.Now())

	if _, err := svc.AttachFinal(context.Background(), freelancerID, "d-1", "k"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestAttachFinalAdvancesPaidDelivery(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore(models.DeliveryStatusValidated, models.PaymentStatusPaid)
	svc := newTestService(store, &stubGateway{}, now)

	res, err := svc.AttachFinal(context.Background(), freelancerID, "d-1", "deliveries/d-1/final/x.mp4")
	if err != nil {
		t.Fatalf("AttachFinal: %v", err)
	}
	if !res.Advanced {
		t.Fatalf("expected advancement, got %+v", res)
	}
	if store.delivery.Status != models.DeliveryStatusFinalSent {
		t.Fatalf("status = %q", store.delivery.Status)
	}
}

func TestConfirmClosesFinalSentOnly(t *testing.T) {
	store := newMemStore(models.DeliveryStatusFinalSent, models.PaymentStatusPaid)
	svc := newTestService(store, &stubGateway{}, time.Now())

	if _, err := svc.Confirm(context.Background(), freelancerID, "d-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("freelancer confirm: expected ErrForbidden, got %v", err)
	}

	d, err := svc.Confirm(context.Background(), creatorID, "d-1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if d.Status != models.DeliveryStatusCompleted {
		t.Fatalf("status = %q, want COMPLETED", d.Status)
	}

	if _, err := svc.Confirm(context.Background(), creatorID, "d-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double confirm: expected ErrInvalidState, got %v", err)
	}
}

func TestConfirmPaymentWebhookPath(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore(models.DeliveryStatusValidated, models.PaymentStatusPending)
	store.delivery.CheckoutSessionID = "cs_1"
	svc := newTestService(store, &stubGateway{}, now)

	res, err := svc.ConfirmPayment(context.Background(), "d-1")
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if !res.PaymentConfirmed {
		t.Fatalf("expected payment confirmation, got %+v", res)
	}
	// No final asset yet, so the state machine stays at VALIDATED.
	if res.Advanced || store.delivery.Status != models.DeliveryStatusValidated {
		t.Fatalf("unexpected advancement: %+v / %s", res, store.delivery.Status)
	}

	// A duplicate webhook delivery is a no-op.
	res, err = svc.ConfirmPayment(context.Background(), "d-1")
	if err != nil {
		t.Fatalf("ConfirmPayment (dup): %v", err)
	}
	if res.PaymentConfirmed {
		t.Fatalf("duplicate confirmation must not report an update")
	}
}
