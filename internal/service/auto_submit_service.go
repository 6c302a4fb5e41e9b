package service

import (
	"context"
	"time"

	"github.com/ngophuc/toeic-exam-api/internal/model"
	"github.com/ngophuc/toeic-exam-api/internal/repository"
	"github.com/rs/zerolog/log"
)

const (
	autoSubmitInterval = 2 * time.Minute
	autoSubmitGrace    = 5 * time.Minute
)

// AutoSubmitService sweeps for in-progress sessions whose countdown expired
// past a grace window and closes them server-side: LR sessions are graded
// from their saved answers, speaking/writing sessions are marked graded with
// their elapsed minutes. The grace window gives a briefly-offline client a
// chance to force-submit its own buffer first.
type AutoSubmitService struct {
	resultRepo repository.TestResultRepository
	grading    GradingService
}

func NewAutoSubmitService(resultRepo repository.TestResultRepository, grading GradingService) *AutoSubmitService {
	return &AutoSubmitService{resultRepo: resultRepo, grading: grading}
}

// Run blocks until ctx is cancelled, sweeping every autoSubmitInterval.
func (s *AutoSubmitService) Run(ctx context.Context) {
	ticker := time.NewTicker(autoSubmitInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", autoSubmitInterval).Msg("Auto-submit sweep started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Auto-submit sweep stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *AutoSubmitService) sweep() {
	expired, err := s.resultRepo.FindExpiredInProgress(time.Now(), autoSubmitGrace)
	if err != nil {
		log.Error().Err(err).Msg("Auto-submit sweep: failed to list expired sessions")
		return
	}
	if len(expired) == 0 {
		return
	}
	log.Info().Int("count", len(expired)).Msg("Auto-submit sweep: closing expired sessions")

	for i := range expired {
		result := &expired[i]
		if result.Test.TestSkill == model.TestSkillLR {
			if err := s.grading.AutoSubmitFromSaved(result); err != nil {
				log.Error().Err(err).Uint("testResultID", result.ID).Msg("Auto-submit sweep: LR submission failed")
			}
			continue
		}

		elapsed := int(time.Since(result.CreatedAt).Minutes())
		result.Duration = cappedDuration(elapsed, result.Test.Duration)
		result.Status = model.TestResultGraded
		if err := s.resultRepo.Update(result); err != nil {
			log.Error().Err(err).Uint("testResultID", result.ID).Msg("Auto-submit sweep: failed to close session")
		}
	}
}
