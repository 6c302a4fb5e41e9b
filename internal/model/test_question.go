package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TestQuestion binds one snapshot (a question or a question group) to a test.
// Snapshot is written once when the test is built and never mutated after any
// session references it; the Original* ids are kept for traceability only and
// are never followed at exam time.
type TestQuestion struct {
	ID                      uint           `gorm:"primarykey" json:"id"`
	TestID                  uint           `json:"test_id" gorm:"not null;index"`
	PartID                  uint           `json:"part_id" gorm:"not null"`
	OrderInTest             int            `json:"order_in_test" gorm:"not null"`
	IsQuestionGroup         bool           `json:"is_question_group" gorm:"not null;default:false"`
	OriginalQuestionID      *uint          `json:"original_question_id,omitempty"`
	OriginalQuestionGroupID *uint          `json:"original_question_group_id,omitempty"`
	Snapshot                datatypes.JSON `json:"snapshot" gorm:"not null"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
	DeletedAt               gorm.DeletedAt `gorm:"index" json:"-"`
}
