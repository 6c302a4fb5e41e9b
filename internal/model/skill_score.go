package model

import (
	"time"
)

// UserTestSkillScore is the per-skill aggregate written when an AI-graded
// (speaking/writing) result is finalized: the average of the raw 0-100 part
// scores and its 0-200 TOEIC scaled equivalent.
type UserTestSkillScore struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	TestResultID uint      `json:"test_result_id" gorm:"not null;uniqueIndex:idx_skill_scores_result_skill"`
	Skill        string    `json:"skill" gorm:"not null;uniqueIndex:idx_skill_scores_result_skill"`
	RawAverage   float64   `json:"raw_average"`
	ScaledScore  int       `json:"scaled_score"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
