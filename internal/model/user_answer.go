package model

import (
	"time"
)

// UserAnswer is one examinee response to one (question, sub-index) slot.
// Identity key is (TestResultID, TestQuestionID, SubQuestionIndex); writes to
// a key are idempotent upserts, never duplicate inserts. Exactly one of the
// payload fields is meaningful depending on the question's skill family.
type UserAnswer struct {
	ID                uint         `gorm:"primarykey" json:"id"`
	TestResultID      uint         `json:"test_result_id" gorm:"not null;uniqueIndex:idx_answer_identity"`
	TestQuestionID    uint         `json:"test_question_id" gorm:"not null;uniqueIndex:idx_answer_identity"`
	SubQuestionIndex  int          `json:"sub_question_index" gorm:"not null;default:0;uniqueIndex:idx_answer_identity"`
	ChosenOptionLabel *string      `json:"chosen_option_label,omitempty"`
	AnswerText        *string      `json:"answer_text,omitempty" gorm:"type:text"`
	AnswerAudioURL    *string      `json:"answer_audio_url,omitempty"`
	IsCorrect         *bool        `json:"is_correct,omitempty"`
	AIFeedbacks       []AIFeedback `json:"ai_feedbacks,omitempty" gorm:"foreignKey:UserAnswerID"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}
