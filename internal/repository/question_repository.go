package repository

import (
	"github.com/ngophuc/toeic-exam-api/internal/model"
	"gorm.io/gorm"
)

type QuestionRepository interface {
	FindByIDWithOptions(id uint) (*model.Question, error)
	FindGroupByIDWithQuestions(id uint) (*model.QuestionGroup, error)
}

type questionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) FindByIDWithOptions(id uint) (*model.Question, error) {
	var question model.Question
	err := r.db.Preload("Options").First(&question, id).Error
	return &question, err
}

func (r *questionRepository) FindGroupByIDWithQuestions(id uint) (*model.QuestionGroup, error) {
	var group model.QuestionGroup
	err := r.db.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_in_group ASC")
		}).
		Preload("Questions.Options").
		First(&group, id).Error
	return &group, err
}
