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

// ProgressService persists in-session answers. Writes are idempotent upserts
// by identity key, so the autosave loop can replay the same slots freely.
type ProgressService interface {
	SaveProgress(userID uuid.UUID, req dto.SaveProgressRequest) (int, error)
}

type progressService struct {
	resultRepo repository.TestResultRepository
	answerRepo repository.UserAnswerRepository
}

func NewProgressService(
	resultRepo repository.TestResultRepository,
	answerRepo repository.UserAnswerRepository,
) ProgressService {
	return &progressService{resultRepo: resultRepo, answerRepo: answerRepo}
}

// SaveProgress upserts the given answer slots and returns how many were
// stored. Entries with no usable payload are dropped rather than written as
// blanks that would clobber earlier saves.
func (s *progressService) SaveProgress(userID uuid.UUID, req dto.SaveProgressRequest) (int, error) {
	result, err := s.resultRepo.FindByID(req.TestResultID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errors.New("Test session not found.")
		}
		return 0, fmt.Errorf("failed to load session: %w", err)
	}
	if result.UserID != userID {
		return 0, errors.New("Test session does not match the submitted data.")
	}
	if result.Status != model.TestResultInProgress {
		return 0, errors.New("This test session has already been submitted.")
	}

	rows := make([]model.UserAnswer, 0, len(req.Answers))
	for _, in := range req.Answers {
		if !hasPayload(in) {
			continue
		}
		subIndex := 0
		if in.SubQuestionIndex != nil {
			subIndex = *in.SubQuestionIndex
		}
		rows = append(rows, model.UserAnswer{
			TestResultID:      result.ID,
			TestQuestionID:    in.TestQuestionID,
			SubQuestionIndex:  subIndex,
			ChosenOptionLabel: in.ChosenOptionLabel,
			AnswerText:        in.AnswerText,
			AnswerAudioURL:    in.AnswerAudioURL,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := s.answerRepo.Upsert(rows); err != nil {
		log.Error().Err(err).Uint("testResultID", result.ID).Msg("SaveProgress: upsert failed")
		return 0, fmt.Errorf("failed to save progress: %w", err)
	}
	log.Debug().Uint("testResultID", result.ID).Int("count", len(rows)).Msg("Progress saved")
	return len(rows), nil
}

func hasPayload(in dto.SavedAnswerInput) bool {
	if in.ChosenOptionLabel != nil && *in.ChosenOptionLabel != "" {
		return true
	}
	if in.AnswerText != nil && *in.AnswerText != "" {
		return true
	}
	if in.AnswerAudioURL != nil && *in.AnswerAudioURL != "" {
		return true
	}
	return false
}
