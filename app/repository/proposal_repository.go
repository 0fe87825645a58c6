package repository

import (
	"errors"
	"time"

	"github.com/LucasPerrin/Crealance/app/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrProposalNotAcceptable is returned by Accept when the proposal is no
// longer PENDING or its mission is no longer OPEN.
var ErrProposalNotAcceptable = errors.New("proposal can no longer be accepted")

// proposalRepository implements the ProposalRepository interface
type proposalRepository struct {
	db *gorm.DB
}

// NewProposalRepository creates a new proposal repository instance
func NewProposalRepository(db *gorm.DB) ProposalRepository {
	return &proposalRepository{db: db}
}

func (r *proposalRepository) Create(proposal *models.Proposal) error {
	return r.db.Create(proposal).Error
}

func (r *proposalRepository) GetByID(id uint) (*models.Proposal, error) {
	var proposal models.Proposal
	if err := r.db.Preload("Mission").Preload("Freelancer").First(&proposal, id).Error; err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (r *proposalRepository) ListByMission(missionID uint) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := r.db.Preload("Freelancer").
		Where("mission_id = ?", missionID).
		Order("created_at ASC").Find(&proposals).Error
	return proposals, err
}

func (r *proposalRepository) ListByFreelancer(freelancerID uint, offset, limit int) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := r.db.Preload("Mission").
		Where("freelancer_id = ?", freelancerID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&proposals).Error
	return proposals, err
}

func (r *proposalRepository) CountByFreelancerSince(freelancerID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Proposal{}).
		Where("freelancer_id = ? AND created_at >= ?", freelancerID, since).
		Count(&count).Error
	return count, err
}

// Accept turns a pending proposal into the mission's contract, in one
// transaction: the proposal becomes ACCEPTED, sibling proposals are
// REJECTED, the mission moves to IN_PROGRESS and a delivery row is created
// from the accepted quote.
func (r *proposalRepository) Accept(proposalID uint) (*models.Delivery, error) {
	var delivery *models.Delivery

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var proposal models.Proposal
		if err := tx.First(&proposal, proposalID).Error; err != nil {
			return err
		}

		// Guards are re-checked as conditions on the UPDATEs so a
		// concurrent accept matches zero rows instead of double-firing.
		res := tx.Model(&models.Proposal{}).
			Where("id = ? AND status = ?", proposal.ID, models.ProposalStatusPending).
			Update("status", models.ProposalStatusAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrProposalNotAcceptable
		}

		res = tx.Model(&models.Mission{}).
			Where("id = ? AND status = ?", proposal.MissionID, models.MissionStatusOpen).
			Update("status", models.MissionStatusInProgress)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrProposalNotAcceptable
		}

		if err := tx.Model(&models.Proposal{}).
			Where("mission_id = ? AND id <> ? AND status = ?",
				proposal.MissionID, proposal.ID, models.ProposalStatusPending).
			Update("status", models.ProposalStatusRejected).Error; err != nil {
			return err
		}

		var mission models.Mission
		if err := tx.First(&mission, proposal.MissionID).Error; err != nil {
			return err
		}

		delivery = &models.Delivery{
			UUID:         uuid.NewString(),
			MissionID:    mission.ID,
			CreatorID:    mission.CreatorID,
			FreelancerID: proposal.FreelancerID,
			AmountCents:  proposal.QuoteCents,
			Currency:     mission.Currency,
			Status:       models.DeliveryStatusCreated,
		}

		return tx.Create(delivery).Error
	})
	if err != nil {
		return nil, err
	}

	return delivery, nil
}
