package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	MissionStatusOpen       = "OPEN"
	MissionStatusInProgress = "IN_PROGRESS"
	MissionStatusCompleted  = "COMPLETED"
	MissionStatusCanceled   = "CANCELED"
)

const (
	MissionCategoryGraphicDesign = "graphic_design"
	MissionCategoryVideoEditing  = "video_editing"
	MissionCategoryThumbnail     = "thumbnail"
	MissionCategoryMotionDesign  = "motion_design"
)

// Mission is a job posted by a content creator. Lifecycle is driven
// externally: proposal acceptance moves it to IN_PROGRESS, delivery
// completion moves it to COMPLETED.
type Mission struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	CreatorID   uint           `gorm:"not null;index" json:"creator_id"`
	Title       string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=5,max=200"`
	Description string         `gorm:"type:text;not null" json:"description" validate:"required,min=20,max=10000"`
	Category    string         `gorm:"type:varchar(50);not null;index" json:"category" validate:"oneof=graphic_design video_editing thumbnail motion_design"`
	BudgetCents int64          `gorm:"not null" json:"budget_cents" validate:"gte=500"`
	Currency    string         `gorm:"type:varchar(3);not null;default:'eur'" json:"currency"`
	Deadline    *time.Time     `gorm:"type:timestamp;default:null" json:"deadline,omitempty"`
	Status      string         `gorm:"type:varchar(20);not null;default:'OPEN';index" json:"status"`
	Creator     *User          `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (m *Mission) Validate() error {
	v := validator.New()

	return v.Struct(m)
}

// IsOpen reports whether the mission still accepts proposals.
func (m *Mission) IsOpen() bool {
	return m.Status == MissionStatusOpen
}
