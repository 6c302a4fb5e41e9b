package repository

import (
	"github.com/ngophuc/toeic-exam-api/internal/model"
	"gorm.io/gorm"
)

type PartRepository interface {
	FindByID(id uint) (*model.Part, error)
	FindByIDs(ids []uint) ([]model.Part, error)
}

type partRepository struct {
	db *gorm.DB
}

func NewPartRepository(db *gorm.DB) PartRepository {
	return &partRepository{db: db}
}

func (r *partRepository) FindByID(id uint) (*model.Part, error) {
	var part model.Part
	err := r.db.First(&part, id).Error
	return &part, err
}

func (r *partRepository) FindByIDs(ids []uint) ([]model.Part, error) {
	var parts []model.Part
	err := r.db.Where("id IN ?", ids).Order("order_index ASC").Find(&parts).Error
	return parts, err
}
