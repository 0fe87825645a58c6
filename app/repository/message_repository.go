package repository

import (
	"time"

	"github.com/LucasPerrin/Crealance/app/models"
	"gorm.io/gorm"
)

// messageRepository implements the MessageRepository interface
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository instance
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(message *models.Message) error {
	return r.db.Create(message).Error
}

func (r *messageRepository) ListByMission(missionID uint, offset, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("mission_id = ?", missionID).
		Order("created_at ASC").Offset(offset).Limit(limit).Find(&messages).Error
	return messages, err
}

func (r *messageRepository) MarkRead(missionID, recipientID uint) error {
	now := time.Now()
	return r.db.Model(&models.Message{}).
		Where("mission_id = ? AND recipient_id = ? AND read_at IS NULL", missionID, recipientID).
		Update("read_at", &now).Error
}

func (r *messageRepository) CountUnread(recipientID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Message{}).
		Where("recipient_id = ? AND read_at IS NULL", recipientID).
		Count(&count).Error
	return count, err
}
