package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/ngophuc/toeic-exam-api/internal/model"
	"gorm.io/gorm"
)

type TestResultRepository interface {
	Create(result *model.TestResult) error
	Update(result *model.TestResult) error
	FindByID(id uint) (*model.TestResult, error)
	FindByIDWithAnswers(id uint) (*model.TestResult, error)
	FindInProgress(userID uuid.UUID, testID uint) (*model.TestResult, error)
	FindAllByUser(userID uuid.UUID) ([]model.TestResult, error)
	FindExpiredInProgress(now time.Time, grace time.Duration) ([]model.TestResult, error)
}

type testResultRepository struct {
	db *gorm.DB
}

func NewTestResultRepository(db *gorm.DB) TestResultRepository {
	return &testResultRepository{db: db}
}

func (r *testResultRepository) Create(result *model.TestResult) error {
	return r.db.Create(result).Error
}

func (r *testResultRepository) Update(result *model.TestResult) error {
	return r.db.Save(result).Error
}

func (r *testResultRepository) FindByID(id uint) (*model.TestResult, error) {
	var result model.TestResult
	err := r.db.First(&result, id).Error
	return &result, err
}

func (r *testResultRepository) FindByIDWithAnswers(id uint) (*model.TestResult, error) {
	var result model.TestResult
	err := r.db.
		Preload("Answers").
		Preload("Answers.AIFeedbacks").
		Preload("Test").
		First(&result, id).Error
	return &result, err
}

func (r *testResultRepository) FindInProgress(userID uuid.UUID, testID uint) (*model.TestResult, error) {
	var result model.TestResult
	err := r.db.
		Where("user_id = ? AND test_id = ? AND status = ?", userID, testID, model.TestResultInProgress).
		Order("created_at DESC").
		First(&result).Error
	return &result, err
}

func (r *testResultRepository) FindAllByUser(userID uuid.UUID) ([]model.TestResult, error) {
	var results []model.TestResult
	err := r.db.
		Preload("Test").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error
	return results, err
}

// FindExpiredInProgress returns in_progress results whose countdown ran out
// more than the grace window ago. Only timed tests qualify: a zero-duration
// test has no countdown to expire.
func (r *testResultRepository) FindExpiredInProgress(now time.Time, grace time.Duration) ([]model.TestResult, error) {
	var results []model.TestResult
	err := r.db.
		Preload("Test").
		Joins("JOIN tests ON tests.id = test_results.test_id").
		Where("test_results.status = ?", model.TestResultInProgress).
		Where("tests.duration > 0").
		Where("test_results.created_at + (tests.duration * interval '1 minute') < ?", now.Add(-grace)).
		Find(&results).Error
	return results, err
}
