package repository

import (
	"github.com/ngophuc/toeic-exam-api/internal/model"
	"gorm.io/gorm"
)

type AIFeedbackRepository interface {
	Create(feedback *model.AIFeedback) error
	FindByUserAnswerIDs(answerIDs []uint) ([]model.AIFeedback, error)
}

type aiFeedbackRepository struct {
	db *gorm.DB
}

func NewAIFeedbackRepository(db *gorm.DB) AIFeedbackRepository {
	return &aiFeedbackRepository{db: db}
}

func (r *aiFeedbackRepository) Create(feedback *model.AIFeedback) error {
	return r.db.Create(feedback).Error
}

func (r *aiFeedbackRepository) FindByUserAnswerIDs(answerIDs []uint) ([]model.AIFeedback, error) {
	var feedbacks []model.AIFeedback
	if len(answerIDs) == 0 {
		return feedbacks, nil
	}
	err := r.db.Where("user_answer_id IN ?", answerIDs).Find(&feedbacks).Error
	return feedbacks, err
}
