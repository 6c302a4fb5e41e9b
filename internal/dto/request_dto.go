package dto

// TestQuestionRef selects one bank question or group for a test built from
// the bank. Exactly one of QuestionID / QuestionGroupID must be set.
type TestQuestionRef struct {
	QuestionID      *uint `json:"question_id"`
	QuestionGroupID *uint `json:"question_group_id"`
	PartID          uint  `json:"part_id" binding:"required"`
	OrderInTest     int   `json:"order_in_test"`
}

type CreateTestFromBankRequest struct {
	Title       string            `json:"title" binding:"required" validate:"required"`
	Description string            `json:"description"`
	TestType    string            `json:"test_type" binding:"required,oneof=practice simulator" validate:"required,oneof=practice simulator"`
	TestSkill   string            `json:"test_skill" binding:"required,oneof=lr speaking writing four_skills" validate:"required,oneof=lr speaking writing four_skills"`
	Duration    int               `json:"duration" binding:"required,gt=0" validate:"required,gt=0"`
	Questions   []TestQuestionRef `json:"questions" binding:"required,min=1" validate:"required,min=1,dive"`
}

type ManualOptionInput struct {
	Label     string `json:"label" binding:"required"`
	Content   string `json:"content" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type ManualQuestionInput struct {
	Content     string              `json:"content" binding:"required"`
	ImageURL    *string             `json:"image_url"`
	AudioURL    *string             `json:"audio_url"`
	Options     []ManualOptionInput `json:"options"`
	Explanation string              `json:"explanation"`
}

type ManualGroupInput struct {
	PassageText string                `json:"passage_text"`
	ImageURL    *string               `json:"image_url"`
	AudioURL    *string               `json:"audio_url"`
	Questions   []ManualQuestionInput `json:"questions" binding:"required,min=1"`
}

// ManualTestQuestionInput carries inline snapshot content for a manually
// authored test. Exactly one of Question / Group must be set.
type ManualTestQuestionInput struct {
	PartID      uint                 `json:"part_id" binding:"required"`
	OrderInTest int                  `json:"order_in_test"`
	Question    *ManualQuestionInput `json:"question"`
	Group       *ManualGroupInput    `json:"group"`
}

type CreateManualTestRequest struct {
	Title       string                    `json:"title" binding:"required"`
	Description string                    `json:"description"`
	TestType    string                    `json:"test_type" binding:"required,oneof=practice simulator"`
	TestSkill   string                    `json:"test_skill" binding:"required,oneof=lr speaking writing four_skills"`
	Duration    int                       `json:"duration" binding:"required,gt=0"`
	Questions   []ManualTestQuestionInput `json:"questions" binding:"required,min=1"`
}

// SavedAnswerInput is one answer slot in a save-progress request. A nil
// SubQuestionIndex means 0 (standalone question).
type SavedAnswerInput struct {
	TestQuestionID    uint    `json:"test_question_id" binding:"required"`
	SubQuestionIndex  *int    `json:"sub_question_index"`
	ChosenOptionLabel *string `json:"chosen_option_label"`
	AnswerText        *string `json:"answer_text"`
	AnswerAudioURL    *string `json:"answer_audio_url"`
}

type SaveProgressRequest struct {
	TestResultID uint               `json:"test_result_id" binding:"required"`
	Answers      []SavedAnswerInput `json:"answers" binding:"required"`
}

type LRAnswerInput struct {
	TestQuestionID    uint   `json:"test_question_id" binding:"required"`
	SubQuestionIndex  *int   `json:"sub_question_index"`
	ChosenOptionLabel string `json:"chosen_option_label"`
}

// SubmitLRRequest drives the synchronous objective grading call. A zero/nil
// TestResultID asks the server to create the result identity itself; Auto
// marks timer-forced submissions, which may carry an empty answer list and
// fall back to previously saved answers.
type SubmitLRRequest struct {
	TestResultID   *uint           `json:"test_result_id"`
	TestID         uint            `json:"test_id" binding:"required"`
	TestType       string          `json:"test_type"`
	ElapsedMinutes int             `json:"elapsed_minutes"`
	Auto           bool            `json:"auto"`
	Answers        []LRAnswerInput `json:"answers"`
}

type AssessmentPartInput struct {
	TestQuestionID   uint   `json:"test_question_id" binding:"required"`
	SubQuestionIndex *int   `json:"sub_question_index"`
	PartType         string `json:"part_type" binding:"required"`
	Text             string `json:"text"`
	AudioURL         string `json:"audio_url"`
}

type BulkAssessmentRequest struct {
	TestResultID   uint                  `json:"test_result_id" binding:"required"`
	TestType       string                `json:"test_type"`
	ElapsedMinutes int                   `json:"elapsed_minutes"`
	Parts          []AssessmentPartInput `json:"parts" binding:"required,min=1"`
}
