package model

import (
	"time"

	"gorm.io/datatypes"
)

// AIFeedback is the asynchronous grading result for one speaking/writing
// answer. It may be attached to an answer whose result is already graded.
type AIFeedback struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	UserAnswerID   uint           `json:"user_answer_id" gorm:"not null;index"`
	Score          float64        `json:"score"` // raw 0-100
	Content        string         `json:"content" gorm:"type:text"`
	DetailedScores datatypes.JSON `json:"detailed_scores,omitempty"`
	Transcription  string         `json:"transcription,omitempty" gorm:"type:text"`
	CorrectedText  string         `json:"corrected_text,omitempty" gorm:"type:text"`
	AIScorer       string         `json:"ai_scorer,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
