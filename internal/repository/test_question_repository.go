package repository

import (
	"github.com/ngophuc/toeic-exam-api/internal/model"
	"gorm.io/gorm"
)

type TestQuestionRepository interface {
	FindByTestID(testID uint) ([]model.TestQuestion, error)
	FindByIDs(ids []uint) ([]model.TestQuestion, error)
}

type testQuestionRepository struct {
	db *gorm.DB
}

func NewTestQuestionRepository(db *gorm.DB) TestQuestionRepository {
	return &testQuestionRepository{db: db}
}

func (r *testQuestionRepository) FindByTestID(testID uint) ([]model.TestQuestion, error) {
	var questions []model.TestQuestion
	err := r.db.
		Where("test_id = ?", testID).
		Order("order_in_test ASC").
		Find(&questions).Error
	return questions, err
}

func (r *testQuestionRepository) FindByIDs(ids []uint) ([]model.TestQuestion, error) {
	var questions []model.TestQuestion
	err := r.db.Where("id IN ?", ids).Find(&questions).Error
	return questions, err
}
