package model

import (
	"time"

	"gorm.io/gorm"
)

type Exam struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	Title        string         `json:"title" gorm:"not null;uniqueIndex"`
	Subject      string         `json:"subject"`
	Description  string         `json:"description,omitempty"`
	Duration     int            `json:"duration" gorm:"not null"` // minutes
	StartDate    *time.Time     `json:"start_date,omitempty"`
	EndDate      *time.Time     `json:"end_date,omitempty"`
	PassingMarks float64        `json:"passing_marks" gorm:"not null;default:0"`
	IsActive     bool           `json:"is_active" gorm:"not null"`
	Questions    []Question     `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// OpenAt reports whether the exam can be started at t.
func (e *Exam) OpenAt(t time.Time) bool {
	if !e.IsActive {
		return false
	}
	if e.StartDate != nil && t.Before(*e.StartDate) {
		return false
	}
	if e.EndDate != nil && t.After(*e.EndDate) {
		return false
	}
	return true
}
