package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ngophuc/toeic-exam-api/internal/dto"
	"github.com/ngophuc/toeic-exam-api/internal/model"
	"github.com/ngophuc/toeic-exam-api/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SessionService is the session initializer: it assembles the ordered
// question list from snapshots, resolves or creates the single in-progress
// result for (user, test), and returns the answers already committed to
// storage so the client can resume.
type SessionService interface {
	Start(userID uuid.UUID, testID uint, timingMode string) (*dto.TestStartResponse, error)
	GetHistory(userID uuid.UUID) ([]dto.TestResultSummaryDTO, error)
	GetLRResultDetail(userID uuid.UUID, testResultID uint) (*dto.LRResultDetailDTO, error)
}

type sessionService struct {
	testRepo     repository.TestRepository
	questionRepo repository.TestQuestionRepository
	resultRepo   repository.TestResultRepository
	answerRepo   repository.UserAnswerRepository
	partRepo     repository.PartRepository
	grading      GradingService
}

func NewSessionService(
	testRepo repository.TestRepository,
	questionRepo repository.TestQuestionRepository,
	resultRepo repository.TestResultRepository,
	answerRepo repository.UserAnswerRepository,
	partRepo repository.PartRepository,
	grading GradingService,
) SessionService {
	return &sessionService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		resultRepo:   resultRepo,
		answerRepo:   answerRepo,
		partRepo:     partRepo,
		grading:      grading,
	}
}

func (s *sessionService) Start(userID uuid.UUID, testID uint, timingMode string) (*dto.TestStartResponse, error) {
	test, err := s.testRepo.FindPublishedByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("Test not found")
		}
		return nil, fmt.Errorf("failed to load test %d: %w", testID, err)
	}

	// Simulator tests always run against their own fixed countdown; only a
	// practice test honors the caller's choice.
	resolvedMode := timingMode
	resolvedDuration := test.Duration
	if test.TestType == model.TestTypeSimulator {
		resolvedMode = model.TimingModeCountdown
	} else if resolvedMode != model.TimingModeCountdown {
		resolvedMode = model.TimingModeCountUp
		resolvedDuration = 0
	}

	result, err := s.resolveSession(userID, test)
	if err != nil {
		return nil, err
	}

	parts, err := s.orderedParts(test.ID)
	if err != nil {
		return nil, err
	}

	saved, err := s.savedAnswers(result.ID)
	if err != nil {
		return nil, err
	}

	return &dto.TestStartResponse{
		TestResultID:    result.ID,
		TestID:          test.ID,
		Title:           test.Title,
		TestType:        test.TestType,
		TestSkill:       test.TestSkill,
		TimingMode:      resolvedMode,
		DurationMinutes: resolvedDuration,
		StartedAt:       result.CreatedAt,
		Parts:           parts,
		SavedAnswers:    saved,
	}, nil
}

// resolveSession returns the single in-progress result for (user, test),
// creating one if absent. An in-progress session whose countdown already ran
// out is closed first: LR tests are auto-submitted from saved answers, other
// skills are marked graded with their elapsed minutes, and a fresh session
// replaces it.
func (s *sessionService) resolveSession(userID uuid.UUID, test *model.Test) (*model.TestResult, error) {
	existing, err := s.resultRepo.FindInProgress(userID, test.ID)
	if err == nil {
		if !s.countdownExpired(existing, test) {
			return existing, nil
		}
		if closeErr := s.closeExpired(existing, test); closeErr != nil {
			return nil, closeErr
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	fresh := &model.TestResult{
		UserID: userID,
		TestID: test.ID,
		Status: model.TestResultInProgress,
	}
	if err := s.resultRepo.Create(fresh); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	log.Info().Uint("testResultID", fresh.ID).Uint("testID", test.ID).Str("userID", userID.String()).Msg("Session created")
	return fresh, nil
}

func (s *sessionService) countdownExpired(result *model.TestResult, test *model.Test) bool {
	if test.Duration <= 0 {
		return false
	}
	deadline := result.CreatedAt.Add(time.Duration(test.Duration) * time.Minute)
	return time.Now().After(deadline)
}

func (s *sessionService) closeExpired(result *model.TestResult, test *model.Test) error {
	if test.TestSkill == model.TestSkillLR {
		if err := s.grading.AutoSubmitFromSaved(result); err != nil {
			log.Error().Err(err).Uint("testResultID", result.ID).Msg("Failed to auto-submit expired LR session")
			return fmt.Errorf("failed to close expired session: %w", err)
		}
		return nil
	}

	elapsed := int(time.Since(result.CreatedAt).Minutes())
	if elapsed > test.Duration {
		elapsed = test.Duration
	}
	if elapsed < 1 {
		elapsed = 1
	}
	result.Status = model.TestResultGraded
	result.Duration = elapsed
	if err := s.resultRepo.Update(result); err != nil {
		return fmt.Errorf("failed to close expired session: %w", err)
	}
	log.Info().Uint("testResultID", result.ID).Msg("Expired non-LR session marked graded")
	return nil
}

// orderedParts groups the test's snapshot rows by part and orders them by
// the part's natural exam order, then authoring order within the part.
// Group members keep their sub-index order inside the decoded snapshot.
func (s *sessionService) orderedParts(testID uint) ([]dto.SessionPartDTO, error) {
	questions, err := s.questionRepo.FindByTestID(testID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test questions: %w", err)
	}

	partIDs := make([]uint, 0)
	seen := make(map[uint]bool)
	for _, q := range questions {
		if !seen[q.PartID] {
			seen[q.PartID] = true
			partIDs = append(partIDs, q.PartID)
		}
	}
	parts, err := s.partRepo.FindByIDs(partIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load parts: %w", err)
	}

	byPart := make(map[uint][]dto.SessionQuestionDTO)
	for i := range questions {
		q := &questions[i]
		item := dto.SessionQuestionDTO{
			TestQuestionID:  q.ID,
			OrderInTest:     q.OrderInTest,
			IsQuestionGroup: q.IsQuestionGroup,
		}
		if q.IsQuestionGroup {
			group, err := model.DecodeGroupSnapshot(q.Snapshot)
			if err != nil {
				return nil, err
			}
			item.Group = group
		} else {
			question, err := model.DecodeQuestionSnapshot(q.Snapshot)
			if err != nil {
				return nil, err
			}
			item.Question = question
		}
		byPart[q.PartID] = append(byPart[q.PartID], item)
	}

	out := make([]dto.SessionPartDTO, 0, len(parts))
	for _, part := range parts {
		items := byPart[part.ID]
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].OrderInTest < items[j].OrderInTest
		})
		out = append(out, dto.SessionPartDTO{
			PartID:     part.ID,
			Name:       part.Name,
			Skill:      part.Skill,
			PartNumber: part.PartNumber,
			Questions:  items,
		})
	}
	return out, nil
}

// savedAnswers returns the server-committed answers for the session,
// deduplicated by recency per identity key. Only durably stored answers are
// returned; anything the client buffered locally is invisible here.
func (s *sessionService) savedAnswers(testResultID uint) ([]dto.SavedAnswerDTO, error) {
	rows, err := s.answerRepo.FindByTestResultID(testResultID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saved answers: %w", err)
	}

	type key struct {
		questionID uint
		subIndex   int
	}
	latest := make(map[key]*model.UserAnswer)
	order := make([]key, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		k := key{questionID: row.TestQuestionID, subIndex: row.SubQuestionIndex}
		prev, ok := latest[k]
		if !ok {
			order = append(order, k)
			latest[k] = row
			continue
		}
		if recency(row).After(recency(prev)) {
			latest[k] = row
		}
	}

	out := make([]dto.SavedAnswerDTO, 0, len(order))
	for _, k := range order {
		row := latest[k]
		out = append(out, dto.SavedAnswerDTO{
			TestQuestionID:    row.TestQuestionID,
			SubQuestionIndex:  row.SubQuestionIndex,
			ChosenOptionLabel: row.ChosenOptionLabel,
			AnswerText:        row.AnswerText,
			AnswerAudioURL:    row.AnswerAudioURL,
			UpdatedAt:         recency(row),
		})
	}
	return out, nil
}

func recency(a *model.UserAnswer) time.Time {
	if !a.UpdatedAt.IsZero() {
		return a.UpdatedAt
	}
	return a.CreatedAt
}

func (s *sessionService) GetHistory(userID uuid.UUID) ([]dto.TestResultSummaryDTO, error) {
	results, err := s.resultRepo.FindAllByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	out := make([]dto.TestResultSummaryDTO, 0, len(results))
	for i := range results {
		r := &results[i]
		out = append(out, dto.TestResultSummaryDTO{
			ID:         r.ID,
			TestID:     r.TestID,
			TestTitle:  r.Test.Title,
			TestSkill:  r.Test.TestSkill,
			Status:     r.Status,
			TotalScore: r.TotalScore,
			Duration:   r.Duration,
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}

func (s *sessionService) GetLRResultDetail(userID uuid.UUID, testResultID uint) (*dto.LRResultDetailDTO, error) {
	result, err := s.resultRepo.FindByIDWithAnswers(testResultID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("Test session not found.")
		}
		return nil, fmt.Errorf("failed to load result %d: %w", testResultID, err)
	}
	if result.UserID != userID {
		return nil, errors.New("Test session does not match the submitted data.")
	}

	questions, err := s.questionRepo.FindByTestID(result.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test questions: %w", err)
	}
	questionByID := make(map[uint]*model.TestQuestion, len(questions))
	for i := range questions {
		questionByID[questions[i].ID] = &questions[i]
	}

	detail := &dto.LRResultDetailDTO{
		TestTitle: result.Test.Title,
		Status:    result.Status,
		CreatedAt: result.CreatedAt,
	}
	detail.TestResultID = result.ID
	detail.Duration = result.Duration
	detail.CorrectCount = result.CorrectCount
	detail.SkipCount = result.SkipCount
	detail.TotalQuestions = result.TotalQuestions
	if result.TotalScore != nil {
		detail.TotalScore = *result.TotalScore
	}
	if result.ListeningScore != nil {
		detail.ListeningScore = *result.ListeningScore
	}
	if result.ReadingScore != nil {
		detail.ReadingScore = *result.ReadingScore
	}

	for i := range result.Answers {
		a := &result.Answers[i]
		item := dto.AnsweredDetailDTO{
			TestQuestionID:    a.TestQuestionID,
			SubQuestionIndex:  a.SubQuestionIndex,
			ChosenOptionLabel: a.ChosenOptionLabel,
			IsCorrect:         a.IsCorrect,
		}
		if tq, ok := questionByID[a.TestQuestionID]; ok {
			if snap, err := tq.SubQuestionAt(a.SubQuestionIndex); err == nil {
				item.CorrectLabel = snap.CorrectLabel()
			}
		}
		detail.Answers = append(detail.Answers, item)
	}
	return detail, nil
}
