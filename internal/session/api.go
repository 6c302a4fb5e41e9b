package session

import (
	"context"
	"time"
)

// QuestionInfo is the per-slot metadata the controller needs: which skill
// family grades this slot, and (for speaking/writing) the part type the AI
// grader expects.
type QuestionInfo struct {
	QuestionID uint
	SubCount   int    // number of sub-questions; 1 for standalone
	Skill      string // "listening", "reading", "speaking", "writing"
	PartType   string
}

// SavedAnswer is one server-committed answer row as returned by the session
// bootstrap. SubIndex is a pointer because the wire may omit it; a missing
// value means 0.
type SavedAnswer struct {
	QuestionID  uint
	SubIndex    *int
	ChosenLabel *string
	Text        *string
	AudioURL    *string
	UpdatedAt   time.Time
	CreatedAt   time.Time
}

// Bootstrap is the session initializer's response: the resolved session
// identity, timing, ordered question metadata, and every answer already
// committed to storage. It never contains anything the client only buffered
// locally.
type Bootstrap struct {
	TestResultID    uint
	TestID          uint
	TimingMode      string // "countdown" or "count_up"
	DurationMinutes int
	StartedAt       time.Time
	Questions       []QuestionInfo
	SavedAnswers    []SavedAnswer
}

// AnswerUpload is one slot in a progress-save call.
type AnswerUpload struct {
	QuestionID  uint
	SubIndex    int
	ChosenLabel string
	Text        string
	AudioURL    string
}

// ObjectiveSubmission is the synchronous grading request. TestResultID may
// be zero when the client never obtained an identity; the grader then
// creates one and returns it.
type ObjectiveSubmission struct {
	TestResultID   uint
	TestID         uint
	ElapsedMinutes int
	Auto           bool
	Answers        []AnswerUpload
}

// ObjectiveResult is the merged score breakdown plus the authoritative
// session identity.
type ObjectiveResult struct {
	TestResultID   uint
	TotalScore     int
	ListeningScore int
	ReadingScore   int
	CorrectCount   int
	SkipCount      int
	TotalQuestions int
}

// SubjectivePart is one AI-graded item: free text or an uploaded recording.
type SubjectivePart struct {
	QuestionID uint
	SubIndex   int
	PartType   string
	Text       string
	AudioURL   string
}

// SubjectiveSubmission is the asynchronous AI-assessment request, bound to
// the same identity the objective bucket used.
type SubjectiveSubmission struct {
	TestResultID   uint
	ElapsedMinutes int
	Parts          []SubjectivePart
}

// API is the server contract consumed by the client session engine.
type API interface {
	Start(ctx context.Context, testID uint, timingMode string) (*Bootstrap, error)
	SaveProgress(ctx context.Context, testResultID uint, answers []AnswerUpload) error
	SubmitObjective(ctx context.Context, req ObjectiveSubmission) (*ObjectiveResult, error)
	SubmitSubjective(ctx context.Context, req SubjectiveSubmission) error
}

// MediaStore uploads raw recordings to durable storage, returning the URL
// the engine keeps in place of the bytes.
type MediaStore interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}
