package dto

import (
	"time"

	"github.com/ngophuc/toeic-exam-api/internal/model"
)

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// SessionQuestionDTO is one snapshot slot in the ordered question list a
// session receives at start. Exactly one of Question / Group is populated.
type SessionQuestionDTO struct {
	TestQuestionID  uint                         `json:"test_question_id"`
	OrderInTest     int                          `json:"order_in_test"`
	IsQuestionGroup bool                         `json:"is_question_group"`
	Question        *model.QuestionSnapshot      `json:"question,omitempty"`
	Group           *model.QuestionGroupSnapshot `json:"group,omitempty"`
}

type SessionPartDTO struct {
	PartID     uint                 `json:"part_id"`
	Name       string               `json:"name"`
	Skill      string               `json:"skill"`
	PartNumber int                  `json:"part_number"`
	Questions  []SessionQuestionDTO `json:"questions"`
}

// SavedAnswerDTO is one server-committed answer returned at session start so
// the client can resume. Entries are already deduplicated by recency.
type SavedAnswerDTO struct {
	TestQuestionID    uint      `json:"test_question_id"`
	SubQuestionIndex  int       `json:"sub_question_index"`
	ChosenOptionLabel *string   `json:"chosen_option_label,omitempty"`
	AnswerText        *string   `json:"answer_text,omitempty"`
	AnswerAudioURL    *string   `json:"answer_audio_url,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type TestStartResponse struct {
	TestResultID    uint             `json:"test_result_id"`
	TestID          uint             `json:"test_id"`
	Title           string           `json:"title"`
	TestType        string           `json:"test_type"`
	TestSkill       string           `json:"test_skill"`
	TimingMode      string           `json:"timing_mode"`
	DurationMinutes int              `json:"duration_minutes"`
	StartedAt       time.Time        `json:"started_at"`
	Parts           []SessionPartDTO `json:"parts"`
	SavedAnswers    []SavedAnswerDTO `json:"saved_answers"`
}

// GeneralLRResult is the merged score breakdown of a synchronous grading
// call. TestResultID is the authoritative identity the caller must adopt.
type GeneralLRResult struct {
	TestResultID   uint `json:"test_result_id"`
	TotalScore     int  `json:"total_score"`
	ListeningScore int  `json:"listening_score"`
	ReadingScore   int  `json:"reading_score"`
	CorrectCount   int  `json:"correct_count"`
	SkipCount      int  `json:"skip_count"`
	TotalQuestions int  `json:"total_questions"`
	Duration       int  `json:"duration"`
}

type AnswerFeedbackDTO struct {
	TestQuestionID   uint               `json:"test_question_id"`
	SubQuestionIndex int                `json:"sub_question_index"`
	PartType         string             `json:"part_type"`
	Score            float64            `json:"score"`
	DetailedScores   map[string]float64 `json:"detailed_scores,omitempty"`
	Content          string             `json:"content"`
	Transcription    string             `json:"transcription,omitempty"`
	CorrectedText    string             `json:"corrected_text,omitempty"`
}

type SkillScoreDTO struct {
	Skill       string  `json:"skill"`
	RawAverage  float64 `json:"raw_average"`
	ScaledScore int     `json:"scaled_score"`
}

type BulkAssessmentResponse struct {
	TestResultID uint                `json:"test_result_id"`
	SkippedParts int                 `json:"skipped_parts"`
	SkillScores  []SkillScoreDTO     `json:"skill_scores"`
	Feedbacks    []AnswerFeedbackDTO `json:"feedbacks"`
}

type TestSummaryDTO struct {
	ID               uint      `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	TestType         string    `json:"test_type"`
	TestSkill        string    `json:"test_skill"`
	Duration         int       `json:"duration"`
	Version          int       `json:"version"`
	VisibilityStatus string    `json:"visibility_status"`
	QuestionCount    int       `json:"question_count"`
	CreatedAt        time.Time `json:"created_at"`
}

type TestResultSummaryDTO struct {
	ID         uint      `json:"id"`
	TestID     uint      `json:"test_id"`
	TestTitle  string    `json:"test_title"`
	TestSkill  string    `json:"test_skill"`
	Status     string    `json:"status"`
	TotalScore *int      `json:"total_score,omitempty"`
	Duration   int       `json:"duration"`
	CreatedAt  time.Time `json:"created_at"`
}

type LRResultDetailDTO struct {
	GeneralLRResult
	TestTitle string              `json:"test_title"`
	Status    string              `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	Answers   []AnsweredDetailDTO `json:"answers"`
}

type AnsweredDetailDTO struct {
	TestQuestionID    uint    `json:"test_question_id"`
	SubQuestionIndex  int     `json:"sub_question_index"`
	ChosenOptionLabel *string `json:"chosen_option_label,omitempty"`
	CorrectLabel      string  `json:"correct_label,omitempty"`
	IsCorrect         *bool   `json:"is_correct,omitempty"`
}

type UploadResponse struct {
	URL string `json:"url"`
}
