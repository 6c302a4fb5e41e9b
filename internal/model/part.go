package model

import (
	"time"

	"gorm.io/gorm"
)

// Part is a TOEIC exam section (Part 1..7 for L/R, the task parts for
// speaking/writing). OrderIndex is the natural exam order used when
// assembling a session's question list.
type Part struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	Name        string         `json:"name" gorm:"not null"`
	Skill       string         `json:"skill" gorm:"not null"` // "listening", "reading", "speaking", "writing"
	PartNumber  int            `json:"part_number" gorm:"not null"`
	OrderIndex  int            `json:"order_index" gorm:"not null"`
	Description string         `json:"description,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

const (
	PartSkillListening = "listening"
	PartSkillReading   = "reading"
	PartSkillSpeaking  = "speaking"
	PartSkillWriting   = "writing"
)

// MatchesTestSkill reports whether a part with this skill may appear in a
// test of the given TestSkill.
func (p *Part) MatchesTestSkill(testSkill string) bool {
	switch testSkill {
	case TestSkillLR:
		return p.Skill == PartSkillListening || p.Skill == PartSkillReading
	case TestSkillSpeaking:
		return p.Skill == PartSkillSpeaking
	case TestSkillWriting:
		return p.Skill == PartSkillWriting
	case TestSkillFourSkills:
		return true
	}
	return false
}
