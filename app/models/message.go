package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Message is a direct message between the two participants of a mission.
type Message struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	MissionID   uint           `gorm:"not null;index:idx_messages_mission_created,priority:1" json:"mission_id"`
	SenderID    uint           `gorm:"not null;index" json:"sender_id"`
	RecipientID uint           `gorm:"not null;index" json:"recipient_id"`
	Body        string         `gorm:"type:text;not null" json:"body" validate:"required,min=1,max=5000"`
	ReadAt      *time.Time     `gorm:"type:timestamp;default:null" json:"read_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index:idx_messages_mission_created,priority:2" json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (m *Message) Validate() error {
	v := validator.New()

	return v.Struct(m)
}
