package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	TestTypePractice  = "practice"
	TestTypeSimulator = "simulator"
)

const (
	TestSkillLR         = "lr"
	TestSkillSpeaking   = "speaking"
	TestSkillWriting    = "writing"
	TestSkillFourSkills = "four_skills"
)

const (
	TimingModeCountdown = "countdown"
	TimingModeCountUp   = "count_up"
)

const (
	TestVisibilityDraft     = "draft"
	TestVisibilityPublished = "published"
	TestVisibilityHidden    = "hidden"
)

// Test is one published/draft exam instance. Editing a test that already has
// sessions creates a new row with Version+1 and ParentTestID set; the graded
// instance is never mutated.
type Test struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	Title            string         `json:"title" gorm:"not null"`
	Description      string         `json:"description,omitempty"`
	TestType         string         `json:"test_type" gorm:"not null"` // "practice", "simulator"
	TestSkill        string         `json:"test_skill" gorm:"not null"`
	Duration         int            `json:"duration" gorm:"not null"` // minutes
	Version          int            `json:"version" gorm:"not null;default:1"`
	ParentTestID     *uint          `json:"parent_test_id,omitempty" gorm:"index"`
	VisibilityStatus string         `json:"visibility_status" gorm:"not null;default:draft"`
	Questions        []TestQuestion `json:"questions,omitempty" gorm:"foreignKey:TestID"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}
