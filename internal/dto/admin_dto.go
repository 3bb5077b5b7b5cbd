package dto

import "time"

// QuestionCreateDTO is used within ExamCreateDTO for admin exam creation.
type QuestionCreateDTO struct {
	Text          string   `json:"text" binding:"required"`
	Options       []string `json:"options" binding:"required,min=2,dive,required"`
	CorrectAnswer int      `json:"correct_answer" binding:"min=0"`
	Marks         float64  `json:"marks" binding:"required,gt=0"`
}

// ExamCreateDTO is for admin to create a new exam with all its questions.
type ExamCreateDTO struct {
	Title        string              `json:"title" binding:"required"`
	Subject      string              `json:"subject"`
	Description  string              `json:"description,omitempty"`
	Duration     int                 `json:"duration" binding:"required,gt=0"`
	StartDate    *time.Time          `json:"start_date"`
	EndDate      *time.Time          `json:"end_date"`
	PassingMarks float64             `json:"passing_marks" binding:"min=0"`
	IsActive     *bool               `json:"is_active"`
	Questions    []QuestionCreateDTO `json:"questions" binding:"required,min=1,dive"`
}

type QuestionInsightDTO struct {
	Index       int     `json:"index"`
	Text        string  `json:"text"`
	Attempted   int     `json:"attempted"`
	Correct     int     `json:"correct"`
	CorrectRate float64 `json:"correct_rate"` // percent
	Difficulty  string  `json:"difficulty"`   // Easy, Medium, Hard
}

type ExamResultsDTO struct {
	ExamID           uint                 `json:"exam_id"`
	ExamTitle        string               `json:"exam_title"`
	TotalAttempts    int                  `json:"total_attempts"`
	Completed        int                  `json:"completed"`
	Passed           int                  `json:"passed"`
	Failed           int                  `json:"failed"`
	InProgress       int                  `json:"in_progress"`
	Abandoned        int                  `json:"abandoned"`
	PassRate         float64              `json:"pass_rate"`
	AverageScore     float64              `json:"average_score"`
	AverageTimeTaken float64              `json:"average_time_taken"` // minutes
	Questions        []QuestionInsightDTO `json:"questions"`
	Attempts         []AttemptResponse    `json:"attempts"`
}
