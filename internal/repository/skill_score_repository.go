package repository

import (
	"github.com/ngophuc/toeic-exam-api/internal/model"
	"gorm.io/gorm"
)

type SkillScoreRepository interface {
	Create(score *model.UserTestSkillScore) error
	FindByTestResultID(testResultID uint) ([]model.UserTestSkillScore, error)
}

type skillScoreRepository struct {
	db *gorm.DB
}

func NewSkillScoreRepository(db *gorm.DB) SkillScoreRepository {
	return &skillScoreRepository{db: db}
}

func (r *skillScoreRepository) Create(score *model.UserTestSkillScore) error {
	return r.db.Create(score).Error
}

func (r *skillScoreRepository) FindByTestResultID(testResultID uint) ([]model.UserTestSkillScore, error) {
	var scores []model.UserTestSkillScore
	err := r.db.Where("test_result_id = ?", testResultID).Find(&scores).Error
	return scores, err
}
