package delivery

import (
	"time"

	"github.com/LucasPerrin/Crealance/app/models"
	"gorm.io/gorm"
)

// Store provides the conditional row operations the state machine relies on.
// Guards are re-checked inside the UPDATE itself, so concurrent calls
// converge: the loser of a race matches zero rows and becomes a no-op.
type Store interface {
	GetByUUID(uuid string) (*models.Delivery, error)
	GetByMissionID(missionID uint) (*models.Delivery, error)
	ListForUser(userID uint) ([]models.Delivery, error)
	SetPreviewObject(deliveryID uint, objectKey string) (bool, error)
	MarkValidated(deliveryID uint) (bool, error)
	SetPaymentPending(deliveryID uint, checkoutSessionID string) (bool, error)
	MarkPaid(deliveryID uint, paidAt time.Time) (bool, error)
	SetFinalObject(deliveryID uint, objectKey string) (bool, error)
	AdvanceToFinalSent(deliveryID uint, expiresAt time.Time) (bool, error)
	Complete(deliveryID uint) (bool, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a delivery store backed by GORM.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) GetByUUID(uuid string) (*models.Delivery, error) {
	var d models.Delivery
	if err := s.db.Where("uuid = ?", uuid).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *gormStore) GetByMissionID(missionID uint) (*models.Delivery, error) {
	var d models.Delivery
	if err := s.db.Where("mission_id = ?", missionID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *gormStore) ListForUser(userID uint) ([]models.Delivery, error) {
	var out []models.Delivery
	err := s.db.
		Where("creator_id = ? OR freelancer_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// SetPreviewObject stores the watermarked preview. Re-uploads are allowed
// until the creator validates.
func (s *gormStore) SetPreviewObject(deliveryID uint, objectKey string) (bool, error) {
	tx := s.db.Model(&models.Delivery{}).
		Where("id = ? AND status = ?", deliveryID, models.DeliveryStatusCreated).
		Update("preview_object_key", objectKey)
	return tx.RowsAffected > 0, tx.Error
}

func (s *gormStore) MarkValidated(deliveryID uint) (bool, error) {
	tx := s.db.Model(&models.Delivery{}).
		Where("id = ? AND status = ? AND preview_object_key <> ''", deliveryID, models.DeliveryStatusCreated).
		Update("status", models.DeliveryStatusValidated)
	return tx.RowsAffected > 0, tx.Error
}

func (s *gormStore) SetPaymentPending(deliveryID uint, checkoutSessionID string) (bool, error) {
	tx := s.db.Model(&models.Delivery{}).
		Where("id = ? AND payment_status <> ?", deliveryID, models.PaymentStatusPaid).
		Updates(map[string]interface{}{
			"payment_status":      models.PaymentStatusPending,
			"checkout_session_id": checkoutSessionID,
		})
	return tx.RowsAffected > 0, tx.Error
}

// MarkPaid never regresses: a second confirmation matches zero rows.
func (s *gormStore) MarkPaid(deliveryID uint, paidAt time.Time) (bool, error) {
	tx := s.db.Model(&models.Delivery{}).
		Where("id = ? AND payment_status <> ?", deliveryID, models.PaymentStatusPaid).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusPaid,
			"paid_at":        &paidAt,
		})
	return tx.RowsAffected > 0, tx.Error
}

func (s *gormStore) SetFinalObject(deliveryID uint, objectKey string) (bool, error) {
	tx := s.db.Model(&models.Delivery{}).
		Where("id = ? AND payment_status = ? AND status NOT IN ?",
			deliveryID, models.PaymentStatusPaid,
			[]string{models.DeliveryStatusCompleted}).
		Update("final_object_key", objectKey)
	return tx.RowsAffected > 0, tx.Error
}

// AdvanceToFinalSent moves the delivery to FINAL_SENT and the parent mission
// to COMPLETED in one transaction, so no intermediate state is ever visible.
// Returns false when the guard matched nothing (already advanced, unpaid, or
// no final asset stored).
func (s *gormStore) AdvanceToFinalSent(deliveryID uint, expiresAt time.Time) (bool, error) {
	advanced := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Delivery{}).
			Where("id = ? AND payment_status = ? AND final_object_key <> '' AND status NOT IN ?",
				deliveryID, models.PaymentStatusPaid,
				[]string{models.DeliveryStatusFinalSent, models.DeliveryStatusCompleted}).
			Updates(map[string]interface{}{
				"status":           models.DeliveryStatusFinalSent,
				"final_expires_at": &expiresAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var d models.Delivery
		if err := tx.Select("mission_id").First(&d, deliveryID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Mission{}).
			Where("id = ? AND status <> ?", d.MissionID, models.MissionStatusCompleted).
			Update("status", models.MissionStatusCompleted).Error; err != nil {
			return err
		}

		advanced = true
		return nil
	})
	return advanced, err
}

func (s *gormStore) Complete(deliveryID uint) (bool, error) {
	tx := s.db.Model(&models.Delivery{}).
		Where("id = ? AND status = ?", deliveryID, models.DeliveryStatusFinalSent).
		Update("status", models.DeliveryStatusCompleted)
	return tx.RowsAffected > 0, tx.Error
}
