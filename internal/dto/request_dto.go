package dto

import "time"

// AnswerInput carries one answer. SelectedOption is the canonical option index;
// SelectedAnswer (option text) is only honoured by the import endpoint.
type AnswerInput struct {
	QuestionIndex  int     `json:"question_index" binding:"min=0"`
	SelectedOption *int    `json:"selected_option"` // out-of-range options are graded as wrong
	SelectedAnswer *string `json:"selected_answer,omitempty"`
}

type StartAttemptRequest struct {
	ExamID uint `json:"exam_id" binding:"required"`
}

type SaveProgressRequest struct {
	Answers      []AnswerInput `json:"answers" binding:"omitempty,dive"`
	CurrentIndex int           `json:"current_index" binding:"min=0"`
	TimeLeft     *int          `json:"time_left" binding:"omitempty,min=0"`
}

// UpdateAttemptRequest only applies the fields that are present.
type UpdateAttemptRequest struct {
	Answers        *[]AnswerInput `json:"answers" binding:"omitempty,dive"`
	LastSavedIndex *int           `json:"last_saved_index" binding:"omitempty,min=0"`
	TimeLeft       *int           `json:"time_left" binding:"omitempty,min=0"`
}

// SubmitAttemptRequest: a nil Answers grades the answers saved so far.
type SubmitAttemptRequest struct {
	Answers []AnswerInput `json:"answers" binding:"omitempty,dive"`
	EndTime *time.Time    `json:"end_time"`
}

type AssignmentStatusRequest struct {
	AssignmentID string `json:"assignment_id" binding:"required"`
	SubjectID    string `json:"subject_id" binding:"required"`
	Status       string `json:"status" binding:"required,attempt_status"`
}

// CreateAttemptRequest imports a finished (or running) attempt in one call.
type CreateAttemptRequest struct {
	UserID    uint          `json:"user_id"` // defaults to the caller
	ExamID    uint          `json:"exam_id" binding:"required"`
	Answers   []AnswerInput `json:"answers" binding:"omitempty,dive"`
	Status    string        `json:"status" binding:"omitempty,attempt_status"`
	StartTime *time.Time    `json:"start_time"`
	EndTime   *time.Time    `json:"end_time"`
	TimeTaken *int          `json:"time_taken" binding:"omitempty,min=0"`
	TimeLeft  *int          `json:"time_left" binding:"omitempty,min=0"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	RollNo   string `json:"roll_no"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest lists the only profile fields a user may change.
type UpdateProfileRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1"`
	Password *string `json:"password" binding:"omitempty,min=6"`
}
