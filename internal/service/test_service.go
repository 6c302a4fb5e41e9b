package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/copier"
	"github.com/ngophuc/toeic-exam-api/internal/dto"
	"github.com/ngophuc/toeic-exam-api/internal/model"
	"github.com/ngophuc/toeic-exam-api/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// TestService covers the authoring side: building tests whose content is
// frozen into snapshots, publish/hide visibility, and append-only versioning.
type TestService interface {
	CreateFromBank(req dto.CreateTestFromBankRequest) (*dto.TestSummaryDTO, error)
	CreateManual(req dto.CreateManualTestRequest) (*dto.TestSummaryDTO, error)
	Publish(testID uint) error
	Hide(testID uint) error
	CreateNewVersion(testID uint, req dto.CreateManualTestRequest) (*dto.TestSummaryDTO, error)
	GetVersions(parentID uint) ([]dto.TestSummaryDTO, error)
	GetAllTests() ([]dto.TestSummaryDTO, error)
}

type testService struct {
	testRepo    repository.TestRepository
	partRepo    repository.PartRepository
	snapshotSvc SnapshotService
	validate    *validator.Validate
	db          *gorm.DB
}

func NewTestService(
	testRepo repository.TestRepository,
	partRepo repository.PartRepository,
	snapshotSvc SnapshotService,
	validate *validator.Validate,
	db *gorm.DB,
) TestService {
	return &testService{
		testRepo:    testRepo,
		partRepo:    partRepo,
		snapshotSvc: snapshotSvc,
		validate:    validate,
		db:          db,
	}
}

// CreateFromBank builds a test by snapshotting bank questions/groups. Each
// referenced part must exist and match the test skill; each entry must name
// exactly one of question id / group id.
func (s *testService) CreateFromBank(req dto.CreateTestFromBankRequest) (*dto.TestSummaryDTO, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	test := model.Test{
		Title:            req.Title,
		Description:      req.Description,
		TestType:         req.TestType,
		TestSkill:        req.TestSkill,
		Duration:         req.Duration,
		Version:          1,
		VisibilityStatus: model.TestVisibilityDraft,
	}

	for i, ref := range req.Questions {
		if (ref.QuestionID == nil) == (ref.QuestionGroupID == nil) {
			return nil, errors.New("Must provide single question id or group question id")
		}

		part, err := s.partRepo.FindByID(ref.PartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if ref.QuestionGroupID != nil {
					return nil, fmt.Errorf("QuestionGroup %d: Part %d not found", i+1, ref.PartID)
				}
				return nil, fmt.Errorf("Question %d: Part %d not found", i+1, ref.PartID)
			}
			return nil, fmt.Errorf("failed to load part %d: %w", ref.PartID, err)
		}
		if !part.MatchesTestSkill(req.TestSkill) {
			return nil, fmt.Errorf("Part %d does not match test skill %s", ref.PartID, req.TestSkill)
		}

		orderInTest := ref.OrderInTest
		if orderInTest == 0 {
			orderInTest = i + 1
		}
		tq := model.TestQuestion{
			PartID:      ref.PartID,
			OrderInTest: orderInTest,
		}

		if ref.QuestionGroupID != nil {
			snapshot, err := s.snapshotSvc.BuildGroupSnapshot(*ref.QuestionGroupID)
			if err != nil {
				return nil, err
			}
			raw, err := model.EncodeSnapshot(snapshot)
			if err != nil {
				return nil, err
			}
			tq.IsQuestionGroup = true
			tq.OriginalQuestionGroupID = ref.QuestionGroupID
			tq.Snapshot = raw
		} else {
			snapshot, err := s.snapshotSvc.BuildQuestionSnapshot(*ref.QuestionID)
			if err != nil {
				return nil, err
			}
			raw, err := model.EncodeSnapshot(snapshot)
			if err != nil {
				return nil, err
			}
			tq.OriginalQuestionID = ref.QuestionID
			tq.Snapshot = raw
		}
		test.Questions = append(test.Questions, tq)
	}

	if err := s.testRepo.Create(&test); err != nil {
		log.Error().Err(err).Str("title", req.Title).Msg("CreateFromBank: failed to persist test")
		return nil, fmt.Errorf("failed to create test: %w", err)
	}

	log.Info().Uint("testID", test.ID).Int("questions", len(test.Questions)).Msg("Test created from bank")
	return s.toSummary(&test, len(test.Questions)), nil
}

// CreateManual builds a test from inline content with no bank references.
func (s *testService) CreateManual(req dto.CreateManualTestRequest) (*dto.TestSummaryDTO, error) {
	test := model.Test{
		Title:            req.Title,
		Description:      req.Description,
		TestType:         req.TestType,
		TestSkill:        req.TestSkill,
		Duration:         req.Duration,
		Version:          1,
		VisibilityStatus: model.TestVisibilityDraft,
	}

	questions, err := s.buildManualQuestions(req.Questions, req.TestSkill)
	if err != nil {
		return nil, err
	}
	test.Questions = questions

	if err := s.testRepo.Create(&test); err != nil {
		log.Error().Err(err).Str("title", req.Title).Msg("CreateManual: failed to persist test")
		return nil, fmt.Errorf("failed to create test: %w", err)
	}
	return s.toSummary(&test, len(test.Questions)), nil
}

func (s *testService) buildManualQuestions(inputs []dto.ManualTestQuestionInput, testSkill string) ([]model.TestQuestion, error) {
	var questions []model.TestQuestion
	for i, in := range inputs {
		if (in.Question == nil) == (in.Group == nil) {
			return nil, errors.New("Must provide single question id or group question id")
		}

		part, err := s.partRepo.FindByID(in.PartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("Question %d: Part %d not found", i+1, in.PartID)
			}
			return nil, fmt.Errorf("failed to load part %d: %w", in.PartID, err)
		}
		if !part.MatchesTestSkill(testSkill) {
			return nil, fmt.Errorf("Part %d does not match test skill %s", in.PartID, testSkill)
		}

		orderInTest := in.OrderInTest
		if orderInTest == 0 {
			orderInTest = i + 1
		}
		tq := model.TestQuestion{PartID: in.PartID, OrderInTest: orderInTest}

		if in.Group != nil {
			var snapshot model.QuestionGroupSnapshot
			if err := copier.Copy(&snapshot, in.Group); err != nil {
				return nil, fmt.Errorf("failed to map group input: %w", err)
			}
			raw, err := model.EncodeSnapshot(snapshot)
			if err != nil {
				return nil, err
			}
			tq.IsQuestionGroup = true
			tq.Snapshot = raw
		} else {
			var snapshot model.QuestionSnapshot
			if err := copier.Copy(&snapshot, in.Question); err != nil {
				return nil, fmt.Errorf("failed to map question input: %w", err)
			}
			raw, err := model.EncodeSnapshot(snapshot)
			if err != nil {
				return nil, err
			}
			tq.Snapshot = raw
		}
		questions = append(questions, tq)
	}
	return questions, nil
}

func (s *testService) Publish(testID uint) error {
	return s.setVisibility(testID, model.TestVisibilityPublished)
}

func (s *testService) Hide(testID uint) error {
	return s.setVisibility(testID, model.TestVisibilityHidden)
}

func (s *testService) setVisibility(testID uint, status string) error {
	test, err := s.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("Test not found")
		}
		return fmt.Errorf("failed to load test %d: %w", testID, err)
	}
	test.VisibilityStatus = status
	if err := s.testRepo.Update(test); err != nil {
		return fmt.Errorf("failed to update test visibility: %w", err)
	}
	log.Info().Uint("testID", testID).Str("status", status).Msg("Test visibility changed")
	return nil
}

// CreateNewVersion re-authors a test that already has sessions. The graded
// instance is never mutated: a new Test row with Version+1 and ParentTestID
// is appended and the old row is hidden. A test with no sessions yet is
// edited in place instead.
func (s *testService) CreateNewVersion(testID uint, req dto.CreateManualTestRequest) (*dto.TestSummaryDTO, error) {
	existing, err := s.testRepo.FindByIDWithQuestions(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("Test not found")
		}
		return nil, fmt.Errorf("failed to load test %d: %w", testID, err)
	}

	sessions, err := s.testRepo.CountSessions(testID)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions for test %d: %w", testID, err)
	}

	questions, err := s.buildManualQuestions(req.Questions, req.TestSkill)
	if err != nil {
		return nil, err
	}

	if sessions == 0 {
		// Nothing references the snapshots yet, editing in place is safe.
		existing.Title = req.Title
		existing.Description = req.Description
		existing.TestType = req.TestType
		existing.TestSkill = req.TestSkill
		existing.Duration = req.Duration
		existing.Questions = questions
		var updated *model.Test
		err = s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("test_id = ?", existing.ID).Delete(&model.TestQuestion{}).Error; err != nil {
				return err
			}
			if err := tx.Save(existing).Error; err != nil {
				return err
			}
			updated = existing
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to edit test %d in place: %w", testID, err)
		}
		return s.toSummary(updated, len(updated.Questions)), nil
	}

	parentID := existing.ID
	if existing.ParentTestID != nil {
		parentID = *existing.ParentTestID
	}
	next := model.Test{
		Title:            req.Title,
		Description:      req.Description,
		TestType:         req.TestType,
		TestSkill:        req.TestSkill,
		Duration:         req.Duration,
		Version:          existing.Version + 1,
		ParentTestID:     &parentID,
		VisibilityStatus: existing.VisibilityStatus,
		Questions:        questions,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&next).Error; err != nil {
			return err
		}
		existing.VisibilityStatus = model.TestVisibilityHidden
		return tx.Save(existing).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create new version of test %d: %w", testID, err)
	}

	log.Info().Uint("testID", testID).Uint("newTestID", next.ID).Int("version", next.Version).Msg("Test version appended")
	return s.toSummary(&next, len(next.Questions)), nil
}

func (s *testService) GetVersions(parentID uint) ([]dto.TestSummaryDTO, error) {
	tests, err := s.testRepo.FindVersions(parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of test %d: %w", parentID, err)
	}
	summaries := make([]dto.TestSummaryDTO, 0, len(tests))
	for i := range tests {
		summaries = append(summaries, *s.toSummary(&tests[i], 0))
	}
	return summaries, nil
}

func (s *testService) GetAllTests() ([]dto.TestSummaryDTO, error) {
	rows, err := s.testRepo.FindAllPublishedWithQuestionCount()
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	summaries := make([]dto.TestSummaryDTO, 0, len(rows))
	for i := range rows {
		summaries = append(summaries, *s.toSummary(&rows[i].Test, rows[i].QuestionCount))
	}
	return summaries, nil
}

func (s *testService) toSummary(test *model.Test, questionCount int) *dto.TestSummaryDTO {
	var summary dto.TestSummaryDTO
	if err := copier.Copy(&summary, test); err != nil {
		log.Error().Err(err).Uint("testID", test.ID).Msg("Failed to copy test to summary DTO")
	}
	summary.QuestionCount = questionCount
	return &summary
}
