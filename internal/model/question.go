package model

import (
	"time"

	"gorm.io/gorm"
)

// Question is a live question-bank entry. Tests never reference it at exam
// time; the snapshot builder deep-copies it into a TestQuestion once and the
// bank row stays freely editable afterwards.
type Question struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	PartID          uint           `json:"part_id" gorm:"not null;index"`
	QuestionGroupID *uint          `json:"question_group_id,omitempty" gorm:"index"`
	OrderInGroup    int            `json:"order_in_group"`
	Content         string         `json:"content" gorm:"type:text"`
	ImageURL        *string        `json:"image_url,omitempty"`
	AudioURL        *string        `json:"audio_url,omitempty"`
	Explanation     string         `json:"explanation,omitempty" gorm:"type:text"`
	Options         []Option       `json:"options,omitempty" gorm:"foreignKey:QuestionID"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// QuestionGroup clusters bank questions around shared passage/audio media.
type QuestionGroup struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	PartID      uint           `json:"part_id" gorm:"not null;index"`
	PassageText string         `json:"passage_text,omitempty" gorm:"type:text"`
	ImageURL    *string        `json:"image_url,omitempty"`
	AudioURL    *string        `json:"audio_url,omitempty"`
	Questions   []Question     `json:"questions,omitempty" gorm:"foreignKey:QuestionGroupID"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

type Option struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	QuestionID uint      `json:"question_id" gorm:"not null;index"`
	Label      string    `json:"label" gorm:"not null"` // "A", "B", "C", "D"
	Content    string    `json:"content" gorm:"type:text"`
	IsCorrect  bool      `json:"is_correct" gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
