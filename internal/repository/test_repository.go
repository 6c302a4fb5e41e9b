package repository

import (
	"github.com/ngophuc/toeic-exam-api/internal/model"
	"gorm.io/gorm"
)

type TestRepository interface {
	Create(test *model.Test) error
	Update(test *model.Test) error
	FindByID(id uint) (*model.Test, error)
	FindPublishedByID(id uint) (*model.Test, error)
	FindByIDWithQuestions(id uint) (*model.Test, error)
	FindAllPublishedWithQuestionCount() ([]TestWithQuestionCount, error)
	FindVersions(parentID uint) ([]model.Test, error)
	CountSessions(testID uint) (int64, error)
}

type TestWithQuestionCount struct {
	model.Test
	QuestionCount int
}

type testRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (r *testRepository) Create(test *model.Test) error {
	// Create with associations also persists test.Questions snapshot rows.
	return r.db.Create(test).Error
}

func (r *testRepository) Update(test *model.Test) error {
	return r.db.Save(test).Error
}

func (r *testRepository) FindByID(id uint) (*model.Test, error) {
	var test model.Test
	err := r.db.First(&test, id).Error
	return &test, err
}

func (r *testRepository) FindPublishedByID(id uint) (*model.Test, error) {
	var test model.Test
	err := r.db.
		Where("visibility_status = ?", model.TestVisibilityPublished).
		First(&test, id).Error
	return &test, err
}

func (r *testRepository) FindByIDWithQuestions(id uint) (*model.Test, error) {
	var test model.Test
	err := r.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("test_questions.order_in_test ASC")
	}).First(&test, id).Error
	return &test, err
}

func (r *testRepository) FindAllPublishedWithQuestionCount() ([]TestWithQuestionCount, error) {
	var results []TestWithQuestionCount
	err := r.db.Model(&model.Test{}).
		Select("tests.*, (SELECT COUNT(*) FROM test_questions WHERE test_questions.test_id = tests.id AND test_questions.deleted_at IS NULL) as question_count").
		Where("tests.visibility_status = ?", model.TestVisibilityPublished).
		Where("tests.deleted_at IS NULL").
		Order("tests.created_at DESC").
		Scan(&results).Error
	return results, err
}

func (r *testRepository) FindVersions(parentID uint) ([]model.Test, error) {
	var tests []model.Test
	err := r.db.
		Where("id = ? OR parent_test_id = ?", parentID, parentID).
		Order("version ASC").
		Find(&tests).Error
	return tests, err
}

func (r *testRepository) CountSessions(testID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.TestResult{}).Where("test_id = ?", testID).Count(&count).Error
	return count, err
}
