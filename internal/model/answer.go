package model

type Answer struct {
	ID             uint    `gorm:"primarykey" json:"-"`
	AttemptID      uint    `json:"-" gorm:"not null;index"`
	QuestionIndex  int     `json:"question_index" gorm:"not null"`
	SelectedOption *int    `json:"selected_option"` // nil when unanswered
	IsCorrect      bool    `json:"is_correct"`
	MarksObtained  float64 `json:"marks_obtained"`
}
