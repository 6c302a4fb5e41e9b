package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ngophuc/toeic-exam-api/internal/dto"
	"github.com/ngophuc/toeic-exam-api/internal/model"
	"github.com/ngophuc/toeic-exam-api/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// GradingService is the synchronous objective grader for Listening/Reading.
// It grades against snapshot correctness only, owns the single-writer
// in_progress -> graded transition, and returns the authoritative result
// identity the client must adopt.
type GradingService interface {
	SubmitLR(userID uuid.UUID, req dto.SubmitLRRequest) (*dto.GeneralLRResult, error)
	AutoSubmitFromSaved(result *model.TestResult) error
}

type gradingService struct {
	testRepo     repository.TestRepository
	questionRepo repository.TestQuestionRepository
	resultRepo   repository.TestResultRepository
	answerRepo   repository.UserAnswerRepository
	partRepo     repository.PartRepository
	converter    ScoreConverterService
	db           *gorm.DB
}

func NewGradingService(
	testRepo repository.TestRepository,
	questionRepo repository.TestQuestionRepository,
	resultRepo repository.TestResultRepository,
	answerRepo repository.UserAnswerRepository,
	partRepo repository.PartRepository,
	converter ScoreConverterService,
	db *gorm.DB,
) GradingService {
	return &gradingService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		resultRepo:   resultRepo,
		answerRepo:   answerRepo,
		partRepo:     partRepo,
		converter:    converter,
		db:           db,
	}
}

func (s *gradingService) SubmitLR(userID uuid.UUID, req dto.SubmitLRRequest) (*dto.GeneralLRResult, error) {
	if len(req.Answers) == 0 && !req.Auto {
		return nil, errors.New("No answers provided.")
	}

	result, err := s.resolveResult(userID, req)
	if err != nil {
		return nil, err
	}

	test, err := s.testRepo.FindByID(req.TestID)
	if err != nil {
		return nil, errors.New("Invalid test or questions.")
	}
	questions, err := s.questionRepo.FindByTestID(test.ID)
	if err != nil || len(questions) == 0 {
		return nil, errors.New("Invalid test or questions.")
	}
	questionByID := make(map[uint]*model.TestQuestion, len(questions))
	partIDs := make([]uint, 0)
	seenParts := make(map[uint]bool)
	for i := range questions {
		questionByID[questions[i].ID] = &questions[i]
		if !seenParts[questions[i].PartID] {
			seenParts[questions[i].PartID] = true
			partIDs = append(partIDs, questions[i].PartID)
		}
	}
	parts, err := s.partRepo.FindByIDs(partIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load parts: %w", err)
	}
	skillByPart := make(map[uint]string, len(parts))
	for _, p := range parts {
		skillByPart[p.ID] = p.Skill
	}

	answers := req.Answers
	if len(answers) == 0 {
		// Timer-forced submission with nothing in flight: grade whatever was
		// durably saved during the session.
		answers, err = s.savedAsInputs(result.ID)
		if err != nil {
			return nil, err
		}
	}

	var (
		listeningCorrect int
		readingCorrect   int
		answeredCount    int
		graded           []model.UserAnswer
	)
	for _, in := range answers {
		tq, ok := questionByID[in.TestQuestionID]
		if !ok {
			return nil, errors.New("Invalid test or questions.")
		}
		subIndex := 0
		if in.SubQuestionIndex != nil {
			subIndex = *in.SubQuestionIndex
		}
		snap, err := tq.SubQuestionAt(subIndex)
		if err != nil {
			return nil, errors.New("Invalid test or questions.")
		}
		if in.ChosenOptionLabel == "" {
			continue
		}
		answeredCount++
		correct := snap.CorrectLabel() != "" && snap.CorrectLabel() == in.ChosenOptionLabel
		if correct {
			switch skillByPart[tq.PartID] {
			case model.PartSkillListening:
				listeningCorrect++
			case model.PartSkillReading:
				readingCorrect++
			}
		}
		label := in.ChosenOptionLabel
		isCorrect := correct
		graded = append(graded, model.UserAnswer{
			TestResultID:      result.ID,
			TestQuestionID:    in.TestQuestionID,
			SubQuestionIndex:  subIndex,
			ChosenOptionLabel: &label,
			IsCorrect:         &isCorrect,
		})
	}

	totalQuestions := 0
	for i := range questions {
		if questions[i].IsQuestionGroup {
			group, err := model.DecodeGroupSnapshot(questions[i].Snapshot)
			if err != nil {
				return nil, errors.New("Invalid test or questions.")
			}
			totalQuestions += len(group.Questions)
		} else {
			totalQuestions++
		}
	}

	listeningScore, err := s.converter.ListeningScaled(listeningCorrect)
	if err != nil {
		return nil, fmt.Errorf("failed to scale listening score: %w", err)
	}
	readingScore, err := s.converter.ReadingScaled(readingCorrect)
	if err != nil {
		return nil, fmt.Errorf("failed to scale reading score: %w", err)
	}
	totalScore := listeningScore + readingScore
	duration := cappedDuration(req.ElapsedMinutes, test.Duration)

	finalized, err := s.finalize(result, graded, finalScores{
		total:          totalScore,
		listening:      listeningScore,
		reading:        readingScore,
		correct:        listeningCorrect + readingCorrect,
		skip:           totalQuestions - answeredCount,
		totalQuestions: totalQuestions,
		duration:       duration,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Uint("testResultID", finalized.ID).
		Int("correct", finalized.CorrectCount).
		Int("total", totalQuestions).
		Bool("auto", req.Auto).
		Msg("LR submission graded")

	out := &dto.GeneralLRResult{
		TestResultID:   finalized.ID,
		CorrectCount:   finalized.CorrectCount,
		SkipCount:      finalized.SkipCount,
		TotalQuestions: finalized.TotalQuestions,
		Duration:       finalized.Duration,
	}
	if finalized.TotalScore != nil {
		out.TotalScore = *finalized.TotalScore
	}
	if finalized.ListeningScore != nil {
		out.ListeningScore = *finalized.ListeningScore
	}
	if finalized.ReadingScore != nil {
		out.ReadingScore = *finalized.ReadingScore
	}
	return out, nil
}

// resolveResult validates the submitted session identity, or creates one when
// the client never obtained an identity (an interactive submit may arrive
// before a session start landed server-side). Auto submissions grade saved
// answers, which only exist under a known session, so those must name one.
func (s *gradingService) resolveResult(userID uuid.UUID, req dto.SubmitLRRequest) (*model.TestResult, error) {
	if req.TestResultID == nil || *req.TestResultID == 0 {
		if req.Auto {
			return nil, errors.New("Test session must be provided.")
		}
		fresh := &model.TestResult{
			UserID: userID,
			TestID: req.TestID,
			Status: model.TestResultInProgress,
		}
		if err := s.resultRepo.Create(fresh); err != nil {
			return nil, fmt.Errorf("failed to create session for submission: %w", err)
		}
		return fresh, nil
	}

	result, err := s.resultRepo.FindByID(*req.TestResultID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("Test session not found.")
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if result.UserID != userID || result.TestID != req.TestID {
		return nil, errors.New("Test session does not match the submitted data.")
	}
	if result.Status != model.TestResultInProgress {
		return nil, errors.New("This test session has already been submitted.")
	}
	return result, nil
}

func (s *gradingService) savedAsInputs(testResultID uint) ([]dto.LRAnswerInput, error) {
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
	out := make([]dto.LRAnswerInput, 0, len(order))
	for _, k := range order {
		row := latest[k]
		if row.ChosenOptionLabel == nil || *row.ChosenOptionLabel == "" {
			continue
		}
		subIndex := row.SubQuestionIndex
		out = append(out, dto.LRAnswerInput{
			TestQuestionID:    row.TestQuestionID,
			SubQuestionIndex:  &subIndex,
			ChosenOptionLabel: *row.ChosenOptionLabel,
		})
	}
	return out, nil
}

type finalScores struct {
	total          int
	listening      int
	reading        int
	correct        int
	skip           int
	totalQuestions int
	duration       int
}

// finalize upserts graded answers and flips the session to graded inside one
// transaction. The status flip is guarded so that concurrent duplicate
// submissions converge on the first writer's terminal state instead of
// double-counting.
func (s *gradingService) finalize(result *model.TestResult, graded []model.UserAnswer, scores finalScores) (*model.TestResult, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.answerRepo.UpsertTx(tx, graded); err != nil {
			return fmt.Errorf("failed to persist graded answers: %w", err)
		}
		update := tx.Model(&model.TestResult{}).
			Where("id = ? AND status = ?", result.ID, model.TestResultInProgress).
			Updates(map[string]any{
				"status":          model.TestResultGraded,
				"total_score":     scores.total,
				"listening_score": scores.listening,
				"reading_score":   scores.reading,
				"correct_count":   scores.correct,
				"skip_count":      scores.skip,
				"total_questions": scores.totalQuestions,
				"duration":        scores.duration,
			})
		if update.Error != nil {
			return fmt.Errorf("failed to finalize session: %w", update.Error)
		}
		if update.RowsAffected == 0 {
			// Someone else already graded this session; the loser keeps the
			// winner's state.
			log.Warn().Uint("testResultID", result.ID).Msg("Concurrent submission detected, adopting existing grade")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.resultRepo.FindByID(result.ID)
}

// AutoSubmitFromSaved closes an expired LR session by grading whatever was
// durably saved during the session, with the test's full duration recorded.
func (s *gradingService) AutoSubmitFromSaved(result *model.TestResult) error {
	test, err := s.testRepo.FindByID(result.TestID)
	if err != nil {
		return fmt.Errorf("failed to load test %d: %w", result.TestID, err)
	}
	id := result.ID
	_, err = s.SubmitLR(result.UserID, dto.SubmitLRRequest{
		TestResultID:   &id,
		TestID:         result.TestID,
		ElapsedMinutes: test.Duration,
		Auto:           true,
	})
	return err
}

// cappedDuration clamps the reported elapsed minutes to the allowed duration
// under countdown (allowed > 0) and never records less than one minute.
func cappedDuration(elapsed, allowed int) int {
	if allowed > 0 && elapsed > allowed {
		elapsed = allowed
	}
	if elapsed < 1 {
		elapsed = 1
	}
	return elapsed
}
