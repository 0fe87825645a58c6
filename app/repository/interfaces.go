package repository

import (
	"time"

	"github.com/LucasPerrin/Crealance/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	Update(user *models.User) error
}

// MissionFilters narrows mission listings.
type MissionFilters struct {
	Status         string
	Category       string
	Query          string
	MinBudgetCents int64
	MaxBudgetCents int64
}

// MissionRepository defines the interface for mission-related database operations
type MissionRepository interface {
	Create(mission *models.Mission) error
	GetByID(id uint) (*models.Mission, error)
	GetByUUID(uuid string) (*models.Mission, error)
	Update(mission *models.Mission) error
	List(filters MissionFilters, offset, limit int) ([]models.Mission, error)
	Count(filters MissionFilters) (int64, error)
	ListByCreator(creatorID uint, offset, limit int) ([]models.Mission, error)
	CountOpenByCreator(creatorID uint) (int64, error)
	Cancel(missionID, creatorID uint) (bool, error)
}

// ProposalRepository defines the interface for proposal-related database operations
type ProposalRepository interface {
	Create(proposal *models.Proposal) error
	GetByID(id uint) (*models.Proposal, error)
	ListByMission(missionID uint) ([]models.Proposal, error)
	ListByFreelancer(freelancerID uint, offset, limit int) ([]models.Proposal, error)
	CountByFreelancerSince(freelancerID uint, since time.Time) (int64, error)
	Accept(proposalID uint) (*models.Delivery, error)
}

// MessageRepository defines the interface for message-related database operations
type MessageRepository interface {
	Create(message *models.Message) error
	ListByMission(missionID uint, offset, limit int) ([]models.Message, error)
	MarkRead(missionID, recipientID uint) error
	CountUnread(userID uint) (int64, error)
}
