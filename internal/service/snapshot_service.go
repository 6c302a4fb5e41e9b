package service

import (
	"errors"
	"fmt"

	"github.com/ngophuc/toeic-exam-api/internal/model"
	"github.com/ngophuc/toeic-exam-api/internal/repository"
	"gorm.io/gorm"
)

// SnapshotService deep-copies question bank content into self-contained
// snapshots at test-authoring time. A snapshot carries no live foreign keys,
// so later edits to the bank never reach tests that were already built.
type SnapshotService interface {
	BuildQuestionSnapshot(questionID uint) (*model.QuestionSnapshot, error)
	BuildGroupSnapshot(groupID uint) (*model.QuestionGroupSnapshot, error)
}

type snapshotService struct {
	questionRepo repository.QuestionRepository
}

func NewSnapshotService(questionRepo repository.QuestionRepository) SnapshotService {
	return &snapshotService{questionRepo: questionRepo}
}

func (s *snapshotService) BuildQuestionSnapshot(questionID uint) (*model.QuestionSnapshot, error) {
	// Soft-deleted rows are invisible to the query, which is exactly the
	// rejection rule: a deleted source cannot be snapshotted.
	question, err := s.questionRepo.FindByIDWithOptions(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("question %d not found or deleted", questionID)
		}
		return nil, fmt.Errorf("failed to load question %d: %w", questionID, err)
	}
	return snapshotFromQuestion(question), nil
}

func (s *snapshotService) BuildGroupSnapshot(groupID uint) (*model.QuestionGroupSnapshot, error) {
	group, err := s.questionRepo.FindGroupByIDWithQuestions(groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("question group %d not found or deleted", groupID)
		}
		return nil, fmt.Errorf("failed to load question group %d: %w", groupID, err)
	}

	snapshot := &model.QuestionGroupSnapshot{
		PassageText: group.PassageText,
		ImageURL:    copyStringPtr(group.ImageURL),
		AudioURL:    copyStringPtr(group.AudioURL),
	}
	for i := range group.Questions {
		snapshot.Questions = append(snapshot.Questions, *snapshotFromQuestion(&group.Questions[i]))
	}
	return snapshot, nil
}

func snapshotFromQuestion(q *model.Question) *model.QuestionSnapshot {
	snapshot := &model.QuestionSnapshot{
		Content:     q.Content,
		ImageURL:    copyStringPtr(q.ImageURL),
		AudioURL:    copyStringPtr(q.AudioURL),
		Explanation: q.Explanation,
	}
	for _, opt := range q.Options {
		snapshot.Options = append(snapshot.Options, model.OptionSnapshot{
			Label:     opt.Label,
			Content:   opt.Content,
			IsCorrect: opt.IsCorrect,
		})
	}
	return snapshot
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
