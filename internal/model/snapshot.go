package model

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// OptionSnapshot is one frozen answer option, correctness flag included.
type OptionSnapshot struct {
	Label     string `json:"label"`
	Content   string `json:"content"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionSnapshot is the frozen content of one question at the moment it was
// bound into a test. It carries no foreign keys into the live question bank.
type QuestionSnapshot struct {
	Content     string           `json:"content"`
	ImageURL    *string          `json:"image_url,omitempty"`
	AudioURL    *string          `json:"audio_url,omitempty"`
	Options     []OptionSnapshot `json:"options,omitempty"`
	Explanation string           `json:"explanation,omitempty"`
}

// QuestionGroupSnapshot freezes a passage/audio-bound cluster of questions.
// Child order is the sub-index order used by answer identity keys.
type QuestionGroupSnapshot struct {
	PassageText string             `json:"passage_text,omitempty"`
	ImageURL    *string            `json:"image_url,omitempty"`
	AudioURL    *string            `json:"audio_url,omitempty"`
	Questions   []QuestionSnapshot `json:"questions"`
}

// CorrectLabel returns the label of the correct option, empty if none is marked.
func (s QuestionSnapshot) CorrectLabel() string {
	for _, opt := range s.Options {
		if opt.IsCorrect {
			return opt.Label
		}
	}
	return ""
}

func EncodeSnapshot(v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func DecodeQuestionSnapshot(raw datatypes.JSON) (*QuestionSnapshot, error) {
	var s QuestionSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode question snapshot: %w", err)
	}
	return &s, nil
}

func DecodeGroupSnapshot(raw datatypes.JSON) (*QuestionGroupSnapshot, error) {
	var s QuestionGroupSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode question group snapshot: %w", err)
	}
	return &s, nil
}

// SubQuestionAt returns the snapshot that grades sub-index idx of tq.
// Standalone questions only have sub-index 0.
func (tq *TestQuestion) SubQuestionAt(idx int) (*QuestionSnapshot, error) {
	if tq.IsQuestionGroup {
		group, err := DecodeGroupSnapshot(tq.Snapshot)
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(group.Questions) {
			return nil, fmt.Errorf("sub question index %d out of range for test question %d", idx, tq.ID)
		}
		return &group.Questions[idx], nil
	}
	if idx != 0 {
		return nil, fmt.Errorf("sub question index %d out of range for test question %d", idx, tq.ID)
	}
	return DecodeQuestionSnapshot(tq.Snapshot)
}
