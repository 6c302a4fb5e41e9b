package repository

import (
	"github.com/ngophuc/toeic-exam-api/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserAnswerRepository interface {
	Upsert(answers []model.UserAnswer) error
	UpsertTx(tx *gorm.DB, answers []model.UserAnswer) error
	FindByTestResultID(testResultID uint) ([]model.UserAnswer, error)
}

type userAnswerRepository struct {
	db *gorm.DB
}

func NewUserAnswerRepository(db *gorm.DB) UserAnswerRepository {
	return &userAnswerRepository{db: db}
}

// Upsert writes answers idempotently: one row per
// (test_result_id, test_question_id, sub_question_index), the latest write
// winning. Repeated saves of the same slot never produce duplicate rows.
func (r *userAnswerRepository) Upsert(answers []model.UserAnswer) error {
	return r.UpsertTx(r.db, answers)
}

func (r *userAnswerRepository) UpsertTx(tx *gorm.DB, answers []model.UserAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "test_result_id"},
			{Name: "test_question_id"},
			{Name: "sub_question_index"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"chosen_option_label", "answer_text", "answer_audio_url", "is_correct", "updated_at",
		}),
	}).Create(&answers).Error
}

func (r *userAnswerRepository) FindByTestResultID(testResultID uint) ([]model.UserAnswer, error) {
	var answers []model.UserAnswer
	err := r.db.
		Where("test_result_id = ?", testResultID).
		Order("updated_at ASC").
		Find(&answers).Error
	return answers, err
}
