package models

import "time"

// Delivery status progression is linear and never regresses:
// CREATED -> VALIDATED -> FINAL_SENT -> COMPLETED.
const (
	DeliveryStatusCreated   = "CREATED"
	DeliveryStatusValidated = "VALIDATED"
	DeliveryStatusFinalSent = "FINAL_SENT"
	DeliveryStatusCompleted = "COMPLETED"
)

// Payment status is an independent small state machine: "" -> PENDING -> PAID.
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
)

// Delivery binds a mission, its creator and the accepted freelancer to a
// paid piece of work. The preview object is the watermarked render shown
// before payment; the final object is released after payment and expires.
type Delivery struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UUID              string     `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	MissionID         uint       `gorm:"not null;uniqueIndex" json:"mission_id"`
	CreatorID         uint       `gorm:"not null;index" json:"creator_id"`
	FreelancerID      uint       `gorm:"not null;index" json:"freelancer_id"`
	AmountCents       int64      `gorm:"not null" json:"amount_cents"`
	Currency          string     `gorm:"type:varchar(3);not null;default:'eur'" json:"currency"`
	Status            string     `gorm:"type:varchar(20);not null;default:'CREATED';index" json:"status"`
	PaymentStatus     string     `gorm:"type:varchar(20);not null;default:''" json:"payment_status"`
	CheckoutSessionID string     `gorm:"type:varchar(191);default:'';index" json:"-"`
	PreviewObjectKey  string     `gorm:"type:varchar(255);default:''" json:"-"`
	FinalObjectKey    string     `gorm:"type:varchar(255);default:''" json:"-"`
	FinalExpiresAt    *time.Time `gorm:"type:timestamp;default:null" json:"final_expires_at,omitempty"`
	PaidAt            *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	Mission           *Mission   `gorm:"foreignKey:MissionID" json:"mission,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPaid reports whether the delivery's payment completed.
func (d *Delivery) IsPaid() bool {
	return d.PaymentStatus == PaymentStatusPaid
}

// HasFinalAsset reports whether the freelancer stored the final render.
func (d *Delivery) HasFinalAsset() bool {
	return d.FinalObjectKey != ""
}

// IsParticipant reports whether the given user is the delivery's creator or
// its assigned freelancer.
func (d *Delivery) IsParticipant(userID uint) bool {
	return userID != 0 && (userID == d.CreatorID || userID == d.FreelancerID)
}

// FinalDownloadable reports whether the final asset may still be fetched.
func (d *Delivery) FinalDownloadable(now time.Time) bool {
	if !d.HasFinalAsset() || d.FinalExpiresAt == nil {
		return false
	}
	return now.Before(*d.FinalExpiresAt)
}
