package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ProposalStatusPending  = "PENDING"
	ProposalStatusAccepted = "ACCEPTED"
	ProposalStatusRejected = "REJECTED"
)

// Proposal is a freelancer's offer on an open mission. One proposal per
// freelancer per mission (unique index).
type Proposal struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	MissionID    uint           `gorm:"not null;index:ux_proposals_mission_freelancer,unique,priority:1" json:"mission_id"`
	FreelancerID uint           `gorm:"not null;index:ux_proposals_mission_freelancer,unique,priority:2" json:"freelancer_id"`
	Message      string         `gorm:"type:text;not null" json:"message" validate:"required,min=10,max=5000"`
	QuoteCents   int64          `gorm:"not null" json:"quote_cents" validate:"gte=500"`
	DeliveryDays int            `gorm:"not null;default:7" json:"delivery_days" validate:"gte=1,lte=90"`
	Status       string         `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Mission      *Mission       `gorm:"foreignKey:MissionID" json:"mission,omitempty"`
	Freelancer   *User          `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Proposal) Validate() error {
	v := validator.New()

	return v.Struct(p)
}
