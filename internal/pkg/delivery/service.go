package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LucasPerrin/Crealance/app/models"
	"github.com/LucasPerrin/Crealance/internal/pkg/billing"
	"gorm.io/gorm"
)

// FinalAssetTTL is how long the final asset stays downloadable after the
// delivery advances to FINAL_SENT.
const FinalAssetTTL = 7 * 24 * time.Hour

// SyncResult describes what a sync-now invocation changed.
type SyncResult struct {
	PaymentConfirmed bool `json:"payment_confirmed"`
	Advanced         bool `json:"advanced"`
}

// Updated reports whether the sync changed anything. False means "no update".
func (r SyncResult) Updated() bool {
	return r.PaymentConfirmed || r.Advanced
}

// Service drives the delivery payment state machine. All guards run before
// any outbound billing call, and local writes only happen after the upstream
// read succeeds, so a failed invocation leaves no partial state.
type Service struct {
	store Store
	gw    billing.Gateway

	now func() time.Time
}

// NewService builds a delivery service from injected dependencies.
func NewService(store Store, gw billing.Gateway) *Service {
	return &Service{store: store, gw: gw, now: time.Now}
}

// GetForParticipant loads a delivery, enforcing that the caller is either
// the creator or the assigned freelancer.
func (s *Service) GetForParticipant(callerID uint, uuid string) (*models.Delivery, error) {
	d, err := s.store.GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !d.IsParticipant(callerID) {
		return nil, ErrForbidden
	}
	return d, nil
}

// AttachPreview stores the watermarked preview object. Only the assigned
// freelancer may upload, and only before the creator validated.
func (s *Service) AttachPreview(ctx context.Context, callerID uint, uuid, objectKey string) (*models.Delivery, error) {
	_ = ctx
	d, err := s.GetForParticipant(callerID, uuid)
	if err != nil {
		return nil, err
	}
	if callerID != d.FreelancerID {
		return nil, ErrForbidden
	}
	ok, err := s.store.SetPreviewObject(d.ID, objectKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: preview can only be replaced before validation", ErrInvalidState)
	}
	d.PreviewObjectKey = objectKey
	return d, nil
}

// Validate advances CREATED -> VALIDATED. Only the creator may validate,
// and only once a preview exists.
func (s *Service) Validate(ctx context.Context, callerID uint, uuid string) (*models.Delivery, error) {
	_ = ctx
	d, err := s.GetForParticipant(callerID, uuid)
	if err != nil {
		return nil, err
	}
	if callerID != d.CreatorID {
		return nil, ErrForbidden
	}
	ok, err := s.store.MarkValidated(d.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: delivery must be CREATED with a preview attached", ErrInvalidState)
	}
	d.Status = models.DeliveryStatusValidated
	return d, nil
}

// CreatePaymentSession opens a Stripe Checkout session for the delivery
// amount. Guards: caller is the creator (only the paying party may
// initiate), status is VALIDATED, and the delivery is not already paid.
func (s *Service) CreatePaymentSession(ctx context.Context, callerID uint, callerEmail, uuid, successURL, cancelURL string) (string, error) {
	d, err := s.GetForParticipant(callerID, uuid)
	if err != nil {
		return "", err
	}
	if callerID != d.CreatorID {
		return "", ErrForbidden
	}
	if d.Status != models.DeliveryStatusValidated {
		return "", fmt.Errorf("%w: payment requires a validated delivery (status %s)", ErrInvalidState, d.Status)
	}
	if d.IsPaid() {
		return "", fmt.Errorf("%w: delivery is already paid", ErrInvalidState)
	}

	sessionID, url, err := s.gw.NewPaymentCheckout(ctx, billing.PaymentCheckoutInput{
		AmountCents:   d.AmountCents,
		Currency:      d.Currency,
		ProductName:   fmt.Sprintf("Delivery %s", d.UUID),
		CustomerEmail: callerEmail,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		Metadata: map[string]string{
			"kind":          "delivery_payment",
			"delivery_uuid": d.UUID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if _, err := s.store.SetPaymentPending(d.ID, sessionID); err != nil {
		return "", err
	}
	return url, nil
}

// ConfirmPayment marks a delivery paid from a completed checkout session
// (webhook path, no caller guard: the signature already authenticated the
// provider) and tries to advance it. Returns the sync outcome.
func (s *Service) ConfirmPayment(ctx context.Context, deliveryUUID string) (SyncResult, error) {
	_ = ctx
	var res SyncResult
	d, err := s.store.GetByUUID(deliveryUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return res, ErrNotFound
		}
		return res, err
	}

	confirmed, err := s.store.MarkPaid(d.ID, s.now())
	if err != nil {
		return res, err
	}
	res.PaymentConfirmed = confirmed

	advanced, err := s.tryAdvance(d.ID)
	if err != nil {
		return res, err
	}
	res.Advanced = advanced
	return res, nil
}

// SyncNow reconciles the delivery against Stripe on demand. Participant
// guarded. Repeated calls after a successful advancement are no-ops and
// report "no update".
func (s *Service) SyncNow(ctx context.Context, callerID uint, uuid string) (SyncResult, error) {
	var res SyncResult
	d, err := s.GetForParticipant(callerID, uuid)
	if err != nil {
		return res, err
	}

	if !d.IsPaid() && d.CheckoutSessionID != "" {
		co, err := s.gw.GetCheckout(ctx, d.CheckoutSessionID)
		if err != nil {
			return res, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		if co.Paid {
			confirmed, err := s.store.MarkPaid(d.ID, s.now())
			if err != nil {
				return res, err
			}
			res.PaymentConfirmed = confirmed
			d.PaymentStatus = models.PaymentStatusPaid
		}
	}

	if d.IsPaid() {
		advanced, err := s.tryAdvance(d.ID)
		if err != nil {
			return res, err
		}
		res.Advanced = advanced
	}

	return res, nil
}

// AttachFinal stores the final asset. Only the assigned freelancer may
// upload, and only after payment.
func (s *Service) AttachFinal(ctx context.Context, callerID uint, uuid, objectKey string) (SyncResult, error) {
	_ = ctx
	var res SyncResult
	d, err := s.GetForParticipant(callerID, uuid)
	if err != nil {
		return res, err
	}
	if callerID != d.FreelancerID {
		return res, ErrForbidden
	}
	if !d.IsPaid() {
		return res, fmt.Errorf("%w: final asset requires a paid delivery", ErrInvalidState)
	}

	ok, err := s.store.SetFinalObject(d.ID, objectKey)
	if err != nil {
		return res, err
	}
	if !ok {
		return res, fmt.Errorf("%w: delivery no longer accepts a final asset", ErrInvalidState)
	}

	advanced, err := s.tryAdvance(d.ID)
	if err != nil {
		return res, err
	}
	res.Advanced = advanced
	return res, nil
}

// Confirm closes the delivery: FINAL_SENT -> COMPLETED, creator only.
func (s *Service) Confirm(ctx context.Context, callerID uint, uuid string) (*models.Delivery, error) {
	_ = ctx
	d, err := s.GetForParticipant(callerID, uuid)
	if err != nil {
		return nil, err
	}
	if callerID != d.CreatorID {
		return nil, ErrForbidden
	}
	ok, err := s.store.Complete(d.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: delivery must be FINAL_SENT to confirm", ErrInvalidState)
	}
	d.Status = models.DeliveryStatusCompleted
	return d, nil
}

func (s *Service) tryAdvance(deliveryID uint) (bool, error) {
	return s.store.AdvanceToFinalSent(deliveryID, s.now().Add(FinalAssetTTL))
}
