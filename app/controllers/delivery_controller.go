package controllers

import (
	"bytes"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/LucasPerrin/Crealance/app/repository"
	"github.com/LucasPerrin/Crealance/internal/pkg/assets"
	"github.com/LucasPerrin/Crealance/internal/pkg/billing"
	"github.com/LucasPerrin/Crealance/internal/pkg/database"
	"github.com/LucasPerrin/Crealance/internal/pkg/delivery"
	"github.com/LucasPerrin/Crealance/internal/pkg/mail"
	"github.com/LucasPerrin/Crealance/internal/pkg/usercontext"
	"github.com/LucasPerrin/Crealance/internal/pkg/watermark"
)

const previewDownloadTTL = 15 * time.Minute
const finalDownloadTTL = 1 * time.Hour

// DeliveryController drives the delivery payment state machine over HTTP.
type DeliveryController struct {
	svc       *delivery.Service
	store     delivery.Store
	assets    *assets.Client
	watermark *watermark.Client
}

// NewDeliveryController creates a delivery controller with its dependencies.
func NewDeliveryController(svc *delivery.Service, store delivery.Store, assetClient *assets.Client, wm *watermark.Client) *DeliveryController {
	return &DeliveryController{svc: svc, store: store, assets: assetClient, watermark: wm}
}

// Global delivery controller instance
var deliveryController *DeliveryController

// InitializeDeliveryController wires the global delivery controller against
// the shared DB handle, the Stripe gateway and the asset/watermark clients.
// A failed asset storage setup degrades uploads/downloads to 503 instead of
// refusing to boot.
func InitializeDeliveryController(gw billing.Gateway) {
	store := delivery.NewStore(database.GetDB())
	svc := delivery.NewService(store, gw)

	var assetClient *assets.Client
	cfg := assets.NewConfigFromEnv()
	if cfg.IsEnabled() {
		var err error
		assetClient, err = assets.NewClient(cfg)
		if err != nil {
			log.Printf("asset storage setup failed: %v", err)
			assetClient = nil
		}
	}

	deliveryController = NewDeliveryController(svc, store, assetClient, watermark.NewClientFromEnv())
}

// GetDeliveryController returns the global delivery controller instance
func GetDeliveryController() *DeliveryController {
	return deliveryController
}

// HandleGet returns a delivery for one of its participants.
func (dc *DeliveryController) HandleGet(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	d, err := dc.svc.GetForParticipant(userCtx.UserID, c.Params("uuid"))
	if err != nil {
		return deliveryError(c, err)
	}
	return c.JSON(d)
}

// HandleList returns all deliveries the caller participates in.
func (dc *DeliveryController) HandleList(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	list, err := dc.store.ListForUser(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not list deliveries")
	}
	return c.JSON(fiber.Map{"deliveries": list})
}

// HandleUploadPreview accepts the freelancer's draft, watermarks it through
// the external render service and stores the result as the preview object.
func (dc *DeliveryController) HandleUploadPreview(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	if dc.assets == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "asset storage is not configured")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "missing_file", "multipart field 'file' is required")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_file", "could not read uploaded file")
	}
	defer src.Close()

	// Guard before paying for the watermark render.
	d, err := dc.svc.GetForParticipant(userCtx.UserID, c.Params("uuid"))
	if err != nil {
		return deliveryError(c, err)
	}
	if userCtx.UserID != d.FreelancerID {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "only the assigned freelancer can upload")
	}

	var previewBytes []byte
	if dc.watermark.IsConfigured() {
		previewBytes, err = dc.watermark.Render(c.Context(), fileHeader.Filename, src)
		if err != nil {
			return jsonError(c, fiber.StatusBadGateway, "watermark_failed", "watermark service unavailable, retry later")
		}
	} else {
		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(src); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid_file", "could not read uploaded file")
		}
		previewBytes = buf.Bytes()
	}

	objectKey := fmt.Sprintf("deliveries/%s/preview/%s%s", d.UUID, uuid.NewString(), filepath.Ext(fileHeader.Filename))
	contentType := fileHeader.Header.Get("Content-Type")
	if err := dc.assets.Upload(c.Context(), objectKey, contentType, bytes.NewReader(previewBytes)); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "storage_failed", "could not store preview")
	}

	updated, err := dc.svc.AttachPreview(c.Context(), userCtx.UserID, d.UUID, objectKey)
	if err != nil {
		return deliveryError(c, err)
	}
	return c.JSON(updated)
}

// HandleDownloadPreview returns a short-lived presigned URL for the preview.
func (dc *DeliveryController) HandleDownloadPreview(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	d, err := dc.svc.GetForParticipant(userCtx.UserID, c.Params("uuid"))
	if err != nil {
		return deliveryError(c, err)
	}
	if d.PreviewObjectKey == "" {
		return jsonError(c, fiber.StatusNotFound, "not_found", "no preview uploaded yet")
	}
	if dc.assets == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "asset storage is not configured")
	}

	url, err := dc.assets.PresignDownload(c.Context(), d.PreviewObjectKey, previewDownloadTTL)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "storage_failed", "could not sign download")
	}
	return c.JSON(fiber.Map{"url": url, "expires_in": int(previewDownloadTTL.Seconds())})
}

// HandleValidate advances CREATED -> VALIDATED (creator only).
func (dc *DeliveryController) HandleValidate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	d, err := dc.svc.Validate(c.Context(), userCtx.UserID, c.Params("uuid"))
	if err != nil {
		return deliveryError(c, err)
	}
	return c.JSON(d)
}

// HandleCreatePaymentSession opens a Stripe Checkout session for the
// delivery amount and returns its URL.
func (dc *DeliveryController) HandleCreatePaymentSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	email := ""
	if user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID); err == nil {
		email = user.Email
	}

	base := publicBaseURL()
	uuidParam := c.Params("uuid")
	successURL := fmt.Sprintf("%s/deliveries/%s?payment=success", base, uuidParam)
	cancelURL := fmt.Sprintf("%s/deliveries/%s?payment=canceled", base, uuidParam)

	url, err := dc.svc.CreatePaymentSession(c.Context(), userCtx.UserID, email, uuidParam, successURL, cancelURL)
	if err != nil {
		return deliveryError(c, err)
	}
	return c.JSON(fiber.Map{"checkout_url": url})
}

// notifyDeliveryMail sends a delivery lifecycle mail without blocking the
// request.
func notifyDeliveryMail(userID uint, subject, body string) {
	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userID)
	if err != nil || user == nil {
		return
	}
	go func(to string) {
		_ = mail.SendMail(to, subject, body)
	}(user.Email)
}

// HandleSyncNow reconciles the delivery against Stripe on demand.
func (dc *DeliveryController) HandleSyncNow(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	res, err := dc.svc.SyncNow(c.Context(), userCtx.UserID, c.Params("uuid"))
	if err != nil {
		return deliveryError(c, err)
	}
	if res.PaymentConfirmed {
		if d, derr := dc.svc.GetForParticipant(userCtx.UserID, c.Params("uuid")); derr == nil {
			notifyDeliveryMail(d.FreelancerID, "Payment received",
				fmt.Sprintf("The delivery for mission %s has been paid. You can now upload the final asset.\n", d.UUID))
		}
	}
	return c.JSON(fiber.Map{
		"updated":           res.Updated(),
		"payment_confirmed": res.PaymentConfirmed,
		"advanced":          res.Advanced,
	})
}

// HandleUploadFinal stores the unwatermarked final asset (freelancer, paid
// deliveries only) and advances the state machine.
func (dc *DeliveryController) HandleUploadFinal(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	if dc.assets == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "asset storage is not configured")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "missing_file", "multipart field 'file' is required")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_file", "could not read uploaded file")
	}
	defer src.Close()

	d, err := dc.svc.GetForParticipant(userCtx.UserID, c.Params("uuid"))
	if err != nil {
		return deliveryError(c, err)
	}
	if userCtx.UserID != d.FreelancerID {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "only the assigned freelancer can upload")
	}
	if !d.IsPaid() {
		return jsonError(c, fiber.StatusConflict, "invalid_state", "final asset requires a paid delivery")
	}

	objectKey := fmt.Sprintf("deliveries/%s/final/%s%s", d.UUID, uuid.NewString(), filepath.Ext(fileHeader.Filename))
	contentType := fileHeader.Header.Get("Content-Type")
	if err := dc.assets.Upload(c.Context(), objectKey, contentType, src); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "storage_failed", "could not store final asset")
	}

	res, err := dc.svc.AttachFinal(c.Context(), userCtx.UserID, d.UUID, objectKey)
	if err != nil {
		return deliveryError(c, err)
	}
	if res.Advanced {
		notifyDeliveryMail(d.CreatorID, "Final asset delivered",
			fmt.Sprintf("The final asset for mission %s is ready. The download stays available for %d days.\n",
				d.UUID, int(delivery.FinalAssetTTL.Hours()/24)))
	}
	return c.JSON(fiber.Map{"advanced": res.Advanced})
}

// HandleDownloadFinal returns a presigned URL for the final asset while it
// is still within its availability window.
func (dc *DeliveryController) HandleDownloadFinal(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	d, err := dc.svc.GetForParticipant(userCtx.UserID, c.Params("uuid"))
	if err != nil {
		return deliveryError(c, err)
	}
	if !d.FinalDownloadable(time.Now()) {
		return jsonError(c, fiber.StatusGone, "expired", "final asset is no longer available")
	}
	if dc.assets == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "asset storage is not configured")
	}

	url, err := dc.assets.PresignDownload(c.Context(), d.FinalObjectKey, finalDownloadTTL)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "storage_failed", "could not sign download")
	}
	return c.JSON(fiber.Map{"url": url, "expires_in": int(finalDownloadTTL.Seconds())})
}

// HandleConfirm closes the delivery (creator only, FINAL_SENT -> COMPLETED).
func (dc *DeliveryController) HandleConfirm(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	d, err := dc.svc.Confirm(c.Context(), userCtx.UserID, c.Params("uuid"))
	if err != nil {
		return deliveryError(c, err)
	}
	return c.JSON(d)
}
