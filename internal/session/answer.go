package session

import "time"

// AnswerKey uniquely identifies one answer slot: the question snapshot plus
// the member index inside a group (0 for standalone questions).
type AnswerKey struct {
	QuestionID uint
	SubIndex   int
}

// NormalizeSubIndex maps a missing sub-index to 0 so standalone and
// group-originating keys compare consistently.
func NormalizeSubIndex(idx *int) int {
	if idx == nil {
		return 0
	}
	return *idx
}

// AnswerKind tags the response payload variant by skill family.
type AnswerKind int

const (
	// Objective is a multiple-choice answer (Listening/Reading).
	Objective AnswerKind = iota
	// Text is a free-text answer (Writing).
	Text
	// Audio is a recorded answer (Speaking).
	Audio
)

// Answer is one in-memory response. For Audio answers, AudioData holds a
// recording not yet uploaded to durable storage; once uploaded only AudioURL
// remains meaningful.
type Answer struct {
	Kind        AnswerKind
	ChosenLabel string
	Text        string
	AudioURL    string
	AudioData   []byte
	PartType    string
	UpdatedAt   time.Time
	CreatedAt   time.Time
}

// Empty reports whether the answer carries no usable payload. Empty answers
// are dropped at partition time rather than submitted as blanks.
func (a Answer) Empty() bool {
	switch a.Kind {
	case Objective:
		return a.ChosenLabel == ""
	case Text:
		return a.Text == ""
	case Audio:
		return a.AudioURL == "" && len(a.AudioData) == 0
	}
	return true
}

func (a Answer) recency() time.Time {
	if !a.UpdatedAt.IsZero() {
		return a.UpdatedAt
	}
	return a.CreatedAt
}
