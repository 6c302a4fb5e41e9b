package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/ngophuc/toeic-exam-api/internal/dto"
	"github.com/ngophuc/toeic-exam-api/internal/model"
	"github.com/ngophuc/toeic-exam-api/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssessmentService is the asynchronous AI grading pipeline for speaking and
// writing. One bulk call grades every answered part, skipping blanks, with
// per-part failure isolation: one part failing never aborts the rest.
type AssessmentService interface {
	SubmitBulk(ctx context.Context, userID uuid.UUID, req dto.BulkAssessmentRequest) (*dto.BulkAssessmentResponse, error)
}

type assessmentService struct {
	resultRepo   repository.TestResultRepository
	answerRepo   repository.UserAnswerRepository
	questionRepo repository.TestQuestionRepository
	feedbackRepo repository.AIFeedbackRepository
	scoreRepo    repository.SkillScoreRepository
	gemini       GeminiLLMService
	converter    ScoreConverterService
	db           *gorm.DB
}

func NewAssessmentService(
	resultRepo repository.TestResultRepository,
	answerRepo repository.UserAnswerRepository,
	questionRepo repository.TestQuestionRepository,
	feedbackRepo repository.AIFeedbackRepository,
	scoreRepo repository.SkillScoreRepository,
	gemini GeminiLLMService,
	converter ScoreConverterService,
	db *gorm.DB,
) AssessmentService {
	return &assessmentService{
		resultRepo:   resultRepo,
		answerRepo:   answerRepo,
		questionRepo: questionRepo,
		feedbackRepo: feedbackRepo,
		scoreRepo:    scoreRepo,
		gemini:       gemini,
		converter:    converter,
		db:           db,
	}
}

var writingPartTypes = map[string]bool{
	"sentence_picture": true,
	"email_response":   true,
	"opinion_essay":    true,
}

var speakingPartTypes = map[string]bool{
	"read_aloud":        true,
	"describe_picture":  true,
	"respond_questions": true,
	"express_opinion":   true,
}

type partAssessmentResult struct {
	input      dto.AssessmentPartInput
	skill      string
	assessment *AIAssessment
	err        error
}

func (s *assessmentService) SubmitBulk(ctx context.Context, userID uuid.UUID, req dto.BulkAssessmentRequest) (*dto.BulkAssessmentResponse, error) {
	result, err := s.resultRepo.FindByID(req.TestResultID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("Test session not found.")
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if result.UserID != userID {
		return nil, errors.New("Test session does not match the submitted data.")
	}
	// A graded result still accepts late-arriving feedback: a four_skills
	// submission lands its objective bucket first, which flips the status
	// before this call arrives. Only the status flip in persist is
	// predicated on in_progress.

	questionIDs := make([]uint, 0, len(req.Parts))
	for _, p := range req.Parts {
		questionIDs = append(questionIDs, p.TestQuestionID)
	}
	questions, err := s.questionRepo.FindByIDs(questionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load test questions: %w", err)
	}
	questionByID := make(map[uint]*model.TestQuestion, len(questions))
	for i := range questions {
		questionByID[questions[i].ID] = &questions[i]
	}

	skipped := 0
	var toScore []dto.AssessmentPartInput
	for _, part := range req.Parts {
		if part.Text == "" && part.AudioURL == "" {
			skipped++
			continue
		}
		if _, ok := questionByID[part.TestQuestionID]; !ok {
			return nil, errors.New("Invalid test or questions.")
		}
		toScore = append(toScore, part)
	}

	// Score each part concurrently; a failed part is dropped, the rest proceed.
	resultsChan := make(chan partAssessmentResult, len(toScore))
	var wg sync.WaitGroup
	for _, part := range toScore {
		wg.Add(1)
		go func(part dto.AssessmentPartInput) {
			defer wg.Done()
			resultsChan <- s.scoreOnePart(ctx, part, questionByID[part.TestQuestionID])
		}(part)
	}
	wg.Wait()
	close(resultsChan)

	var scoredParts []partAssessmentResult
	for r := range resultsChan {
		if r.err != nil {
			log.Error().Err(r.err).
				Uint("testQuestionID", r.input.TestQuestionID).
				Str("partType", r.input.PartType).
				Msg("SubmitBulk: part assessment failed, skipping")
			skipped++
			continue
		}
		scoredParts = append(scoredParts, r)
	}

	resp, err := s.persist(result, req.ElapsedMinutes, scoredParts, skipped)
	if err != nil {
		return nil, err
	}

	log.Info().
		Uint("testResultID", result.ID).
		Int("scored", len(scoredParts)).
		Int("skipped", skipped).
		Msg("Bulk assessment completed")
	return resp, nil
}

func (s *assessmentService) scoreOnePart(ctx context.Context, part dto.AssessmentPartInput, tq *model.TestQuestion) partAssessmentResult {
	subIndex := 0
	if part.SubQuestionIndex != nil {
		subIndex = *part.SubQuestionIndex
	}
	content := ""
	if snap, err := tq.SubQuestionAt(subIndex); err == nil {
		content = snap.Content
	}

	out := partAssessmentResult{input: part}
	switch {
	case writingPartTypes[part.PartType]:
		out.skill = model.PartSkillWriting
		if part.Text == "" {
			out.err = fmt.Errorf("writing part %s has no text", part.PartType)
			return out
		}
		out.assessment, out.err = s.gemini.ScoreWriting(ctx, part.PartType, content, part.Text)
	case speakingPartTypes[part.PartType]:
		out.skill = model.PartSkillSpeaking
		if part.AudioURL == "" {
			out.err = fmt.Errorf("speaking part %s has no audio", part.PartType)
			return out
		}
		out.assessment, out.err = s.gemini.ScoreSpeaking(ctx, part.PartType, content, part.AudioURL)
	default:
		out.err = fmt.Errorf("unsupported part type: %s", part.PartType)
	}
	return out
}

// persist upserts the answers, attaches their feedback rows, writes the
// per-skill aggregates and flips the session to graded in one transaction.
func (s *assessmentService) persist(result *model.TestResult, elapsedMinutes int, parts []partAssessmentResult, skipped int) (*dto.BulkAssessmentResponse, error) {
	resp := &dto.BulkAssessmentResponse{
		TestResultID: result.ID,
		SkippedParts: skipped,
	}

	test, err := s.resultRepo.FindByIDWithAnswers(result.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload session: %w", err)
	}
	allowed := test.Test.Duration

	err = s.db.Transaction(func(tx *gorm.DB) error {
		rawBySkill := make(map[string][]float64)

		for _, p := range parts {
			subIndex := 0
			if p.input.SubQuestionIndex != nil {
				subIndex = *p.input.SubQuestionIndex
			}
			answer := model.UserAnswer{
				TestResultID:     result.ID,
				TestQuestionID:   p.input.TestQuestionID,
				SubQuestionIndex: subIndex,
			}
			if p.skill == model.PartSkillWriting {
				text := p.input.Text
				answer.AnswerText = &text
			} else {
				url := p.input.AudioURL
				answer.AnswerAudioURL = &url
			}
			if err := s.answerRepo.UpsertTx(tx, []model.UserAnswer{answer}); err != nil {
				return fmt.Errorf("failed to persist answer: %w", err)
			}

			// The upsert may have updated an existing row, so resolve the id.
			var stored model.UserAnswer
			if err := tx.Where(
				"test_result_id = ? AND test_question_id = ? AND sub_question_index = ?",
				result.ID, p.input.TestQuestionID, subIndex,
			).First(&stored).Error; err != nil {
				return fmt.Errorf("failed to resolve stored answer: %w", err)
			}

			feedback := model.AIFeedback{
				UserAnswerID:  stored.ID,
				Score:         p.assessment.Score,
				Content:       p.assessment.Feedback,
				Transcription: p.assessment.Transcription,
				CorrectedText: p.assessment.CorrectedText,
				AIScorer:      "gemini-1.5-flash",
			}
			if len(p.assessment.DetailedScores) > 0 {
				raw, err := json.Marshal(p.assessment.DetailedScores)
				if err != nil {
					return fmt.Errorf("failed to encode detailed scores: %w", err)
				}
				feedback.DetailedScores = datatypes.JSON(raw)
			}
			if err := tx.Create(&feedback).Error; err != nil {
				return fmt.Errorf("failed to persist AI feedback: %w", err)
			}

			rawBySkill[p.skill] = append(rawBySkill[p.skill], p.assessment.Score)
			resp.Feedbacks = append(resp.Feedbacks, dto.AnswerFeedbackDTO{
				TestQuestionID:   p.input.TestQuestionID,
				SubQuestionIndex: subIndex,
				PartType:         p.input.PartType,
				Score:            p.assessment.Score,
				DetailedScores:   p.assessment.DetailedScores,
				Content:          p.assessment.Feedback,
				Transcription:    p.assessment.Transcription,
				CorrectedText:    p.assessment.CorrectedText,
			})
		}

		for skill, raws := range rawBySkill {
			sum := 0.0
			for _, r := range raws {
				sum += r
			}
			avg := sum / float64(len(raws))
			scaled, err := s.converter.SWScaled(avg)
			if err != nil {
				return fmt.Errorf("failed to scale %s score: %w", skill, err)
			}
			score := model.UserTestSkillScore{
				TestResultID: result.ID,
				Skill:        skill,
				RawAverage:   avg,
				ScaledScore:  scaled,
			}
			// Late-arriving feedback for a skill that was already aggregated
			// replaces the aggregate rather than duplicating the row.
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "test_result_id"}, {Name: "skill"}},
				DoUpdates: clause.AssignmentColumns([]string{"raw_average", "scaled_score", "updated_at"}),
			}).Create(&score).Error; err != nil {
				return fmt.Errorf("failed to persist skill score: %w", err)
			}
			resp.SkillScores = append(resp.SkillScores, dto.SkillScoreDTO{
				Skill:       skill,
				RawAverage:  avg,
				ScaledScore: scaled,
			})
		}

		update := tx.Model(&model.TestResult{}).
			Where("id = ? AND status = ?", result.ID, model.TestResultInProgress).
			Updates(map[string]any{
				"status":   model.TestResultGraded,
				"duration": cappedDuration(elapsedMinutes, allowed),
			})
		if update.Error != nil {
			return fmt.Errorf("failed to finalize session: %w", update.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
