package model

import (
	"time"
)

type AttemptState string

const (
	StateInProgress AttemptState = "in_progress"
	StateCompleted  AttemptState = "completed"
	StateAbandoned  AttemptState = "abandoned"
)

func (s AttemptState) Terminal() bool {
	return s != StateInProgress
}

type Outcome string

const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
)

// Attempt is one user's run at an exam, or a status record for an assignment
// when ExamID is nil and AssignmentID/SubjectID are set.
// The partial unique index on (user_id, exam_id) for in_progress rows is created in the migration.
type Attempt struct {
	ID           uint    `gorm:"primarykey" json:"id"`
	UserID       uint    `json:"user_id" gorm:"not null;index;uniqueIndex:idx_attempt_assignment,priority:1"`
	User         *User   `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
	ExamID       *uint   `json:"exam_id,omitempty" gorm:"index"`
	Exam         *Exam   `json:"exam,omitempty" gorm:"foreignKey:ExamID;constraint:OnDelete:SET NULL;"`
	AssignmentID *string `json:"assignment_id,omitempty" gorm:"uniqueIndex:idx_attempt_assignment,priority:2"`
	SubjectID    *string `json:"subject_id,omitempty" gorm:"index;uniqueIndex:idx_attempt_assignment,priority:3"`

	State   AttemptState `json:"state" gorm:"type:varchar(20);not null;default:'in_progress';index"`
	Outcome *Outcome     `json:"outcome,omitempty" gorm:"type:varchar(10)"`

	StartTime      time.Time  `json:"start_time" gorm:"not null"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	TimeTaken      *int       `json:"time_taken,omitempty"` // minutes
	TimeLeft       *int       `json:"time_left,omitempty"`  // seconds
	LastSavedIndex int        `json:"last_saved_index" gorm:"not null;default:0"`

	Answers            []Answer `json:"answers" gorm:"foreignKey:AttemptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Score              *float64 `json:"score,omitempty"`
	TotalMarksObtained float64  `json:"total_marks_obtained"`
	TotalMarks         float64  `json:"total_marks"`

	StudentName       string `json:"student_name"`
	StudentEmail      string `json:"student_email"`
	ExamName          string `json:"exam_name"`
	TotalQuestions    int    `json:"total_questions"`
	AnsweredQuestions int    `json:"answered_questions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LegacyStatus folds State and Outcome back into the single status value older clients read.
func (a *Attempt) LegacyStatus() string {
	if a.State == StateCompleted && a.Outcome != nil {
		switch *a.Outcome {
		case OutcomePass:
			return "Pass"
		case OutcomeFail:
			return "Fail"
		}
	}
	return string(a.State)
}

func (a *Attempt) OwnedBy(userID uint) bool {
	return a.UserID == userID
}
