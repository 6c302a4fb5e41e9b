package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TestResultInProgress = "in_progress"
	TestResultGraded     = "graded"
)

// TestResult is one examinee's attempt at a test. At most one in_progress row
// exists per (user, test); starting again returns the existing one. Status
// only ever moves in_progress -> graded. A graded result stays immutable
// except for late-arriving AI feedback attached to its answers.
type TestResult struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	UserID         uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	TestID         uint           `json:"test_id" gorm:"not null;index"`
	Test           Test           `json:"-" gorm:"foreignKey:TestID"`
	Status         string         `json:"status" gorm:"not null;default:in_progress"`
	Duration       int            `json:"duration"` // minutes actually spent
	TotalScore     *int           `json:"total_score,omitempty"`
	ListeningScore *int           `json:"listening_score,omitempty"`
	ReadingScore   *int           `json:"reading_score,omitempty"`
	CorrectCount   int            `json:"correct_count"`
	SkipCount      int            `json:"skip_count"`
	TotalQuestions int            `json:"total_questions"`
	Answers        []UserAnswer   `json:"answers,omitempty" gorm:"foreignKey:TestResultID"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
