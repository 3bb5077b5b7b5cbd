package dto

import "time"

// QuestionResponseDTO includes the answer key; the exam client grades its own summary.
type QuestionResponseDTO struct {
	ID            uint     `json:"id"`
	Position      int      `json:"position"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Marks         float64  `json:"marks"`
}

type ExamResponseDTO struct {
	ID           uint                  `json:"id"`
	Title        string                `json:"title"`
	Subject      string                `json:"subject,omitempty"`
	Description  string                `json:"description,omitempty"`
	Duration     int                   `json:"duration"`
	StartDate    *time.Time            `json:"start_date,omitempty"`
	EndDate      *time.Time            `json:"end_date,omitempty"`
	PassingMarks float64               `json:"passing_marks"`
	IsActive     bool                  `json:"is_active"`
	TotalMarks   float64               `json:"total_marks"`
	Questions    []QuestionResponseDTO `json:"questions"`
	CreatedAt    time.Time             `json:"created_at"`
}

// ExamSummaryDTO is used for listing exams.
type ExamSummaryDTO struct {
	ID            uint       `json:"id"`
	Title         string     `json:"title"`
	Subject       string     `json:"subject,omitempty"`
	Description   string     `json:"description,omitempty"`
	Duration      int        `json:"duration"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	PassingMarks  float64    `json:"passing_marks"`
	IsActive      bool       `json:"is_active"`
	QuestionCount int        `json:"question_count"`
	CreatedAt     time.Time  `json:"created_at"`
}
