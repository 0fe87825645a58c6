package repository

import (
	"strings"

	"github.com/LucasPerrin/Crealance/app/models"
	"gorm.io/gorm"
)

// missionRepository implements the MissionRepository interface
type missionRepository struct {
	db *gorm.DB
}

// NewMissionRepository creates a new mission repository instance
func NewMissionRepository(db *gorm.DB) MissionRepository {
	return &missionRepository{db: db}
}

func (r *missionRepository) Create(mission *models.Mission) error {
	return r.db.Create(mission).Error
}

func (r *missionRepository) GetByID(id uint) (*models.Mission, error) {
	var mission models.Mission
	if err := r.db.Preload("Creator").First(&mission, id).Error; err != nil {
		return nil, err
	}
	return &mission, nil
}

func (r *missionRepository) GetByUUID(uuid string) (*models.Mission, error) {
	var mission models.Mission
	if err := r.db.Preload("Creator").Where("uuid = ?", uuid).First(&mission).Error; err != nil {
		return nil, err
	}
	return &mission, nil
}

func (r *missionRepository) Update(mission *models.Mission) error {
	return r.db.Save(mission).Error
}

func (r *missionRepository) applyFilters(q *gorm.DB, filters MissionFilters) *gorm.DB {
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Category != "" {
		q = q.Where("category = ?", filters.Category)
	}
	if filters.MinBudgetCents > 0 {
		q = q.Where("budget_cents >= ?", filters.MinBudgetCents)
	}
	if filters.MaxBudgetCents > 0 {
		q = q.Where("budget_cents <= ?", filters.MaxBudgetCents)
	}
	if term := strings.TrimSpace(filters.Query); term != "" {
		like := "%" + term + "%"
		q = q.Where("title LIKE ? OR description LIKE ?", like, like)
	}
	return q
}

func (r *missionRepository) List(filters MissionFilters, offset, limit int) ([]models.Mission, error) {
	var missions []models.Mission
	q := r.applyFilters(r.db.Model(&models.Mission{}), filters)
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&missions).Error
	return missions, err
}

func (r *missionRepository) Count(filters MissionFilters) (int64, error) {
	var count int64
	q := r.applyFilters(r.db.Model(&models.Mission{}), filters)
	err := q.Count(&count).Error
	return count, err
}

func (r *missionRepository) ListByCreator(creatorID uint, offset, limit int) ([]models.Mission, error) {
	var missions []models.Mission
	err := r.db.Where("creator_id = ?", creatorID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&missions).Error
	return missions, err
}

func (r *missionRepository) CountOpenByCreator(creatorID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Mission{}).
		Where("creator_id = ? AND status = ?", creatorID, models.MissionStatusOpen).
		Count(&count).Error
	return count, err
}

// Cancel withdraws a mission. Only OPEN missions owned by the caller can be
// canceled; anything else matches zero rows.
func (r *missionRepository) Cancel(missionID, creatorID uint) (bool, error) {
	tx := r.db.Model(&models.Mission{}).
		Where("id = ? AND creator_id = ? AND status = ?", missionID, creatorID, models.MissionStatusOpen).
		Update("status", models.MissionStatusCanceled)
	return tx.RowsAffected > 0, tx.Error
}
