package dto

import (
	"time"

	"github.com/lshigami/examdesk/internal/model"
)

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type AnswerResponse struct {
	QuestionIndex  int     `json:"question_index"`
	SelectedOption *int    `json:"selected_option"`
	IsCorrect      bool    `json:"is_correct"`
	MarksObtained  float64 `json:"marks_obtained"`
}

// AttemptResponse exposes State/Outcome and the folded legacy Status side by side.
type AttemptResponse struct {
	ID                 uint               `json:"id"`
	UserID             uint               `json:"user_id"`
	ExamID             *uint              `json:"exam_id,omitempty"`
	AssignmentID       *string            `json:"assignment_id,omitempty"`
	SubjectID          *string            `json:"subject_id,omitempty"`
	State              model.AttemptState `json:"state"`
	Outcome            *model.Outcome     `json:"outcome,omitempty"`
	Status             string             `json:"status"`
	StartTime          time.Time          `json:"start_time"`
	EndTime            *time.Time         `json:"end_time,omitempty"`
	TimeTaken          *int               `json:"time_taken,omitempty"`
	TimeLeft           *int               `json:"time_left,omitempty"`
	LastSavedIndex     int                `json:"last_saved_index"`
	Answers            []AnswerResponse   `json:"answers"`
	Score              *float64           `json:"score,omitempty"`
	TotalMarksObtained float64            `json:"total_marks_obtained"`
	TotalMarks         float64            `json:"total_marks"`
	StudentName        string             `json:"student_name"`
	StudentEmail       string             `json:"student_email"`
	ExamName           string             `json:"exam_name"`
	TotalQuestions     int                `json:"total_questions"`
	AnsweredQuestions  int                `json:"answered_questions"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// AttemptDetailResponse adds the exam snapshot for review screens.
type AttemptDetailResponse struct {
	AttemptResponse
	Exam *ExamResponseDTO `json:"exam,omitempty"`
}

type AssignmentStatusResponse struct {
	Success bool            `json:"success"`
	Attempt AttemptResponse `json:"attempt"`
}

type UserResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	RollNo    string    `json:"roll_no,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type EmailCheckResponse struct {
	Exists bool `json:"exists"`
}
