// Package scoring grades multiple-choice answers against an exam answer key.
package scoring

import "math"

// PassPercentage is the fixed cutoff the exam client uses for its result summary.
const PassPercentage = 40.0

type Question struct {
	Options       int // number of options
	CorrectOption int
	Marks         float64
}

type Answer struct {
	QuestionIndex  int
	SelectedOption *int
}

type GradedAnswer struct {
	QuestionIndex  int
	SelectedOption *int
	IsCorrect      bool
	MarksObtained  float64
}

type Result struct {
	Score      float64
	TotalMarks float64
	Correct    int
	Answered   int
	Answers    []GradedAnswer // one per submitted answer, in submission order
}

// Score grades answers against questions. When an index is answered more than once the
// last answer counts. Answers pointing at no question are kept in Answers with zero marks
// but never affect Score.
func Score(questions []Question, answers []Answer) Result {
	res := Result{Answers: make([]GradedAnswer, 0, len(answers))}

	latest := make(map[int]int, len(answers))
	for i, a := range answers {
		latest[a.QuestionIndex] = i
	}

	for _, q := range questions {
		res.TotalMarks += q.Marks
	}

	for i, a := range answers {
		graded := GradedAnswer{QuestionIndex: a.QuestionIndex, SelectedOption: a.SelectedOption}
		if a.QuestionIndex >= 0 && a.QuestionIndex < len(questions) && latest[a.QuestionIndex] == i {
			q := questions[a.QuestionIndex]
			if a.SelectedOption != nil {
				res.Answered++
				if matches(q, *a.SelectedOption) {
					graded.IsCorrect = true
					graded.MarksObtained = q.Marks
					res.Score += q.Marks
					res.Correct++
				}
			}
		}
		res.Answers = append(res.Answers, graded)
	}
	return res
}

func matches(q Question, selected int) bool {
	if selected < 0 {
		return false
	}
	if q.Options > 0 && selected >= q.Options {
		return false
	}
	return selected == q.CorrectOption
}

// Passed applies an exam's passing threshold to a score.
func Passed(score, passingMarks float64) bool {
	return score >= passingMarks
}

// Percentage returns score as a percentage of total, rounded to two decimals. Zero total gives 0.
func Percentage(score, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(score/total*10000) / 100
}

// MinutesBetween rounds the elapsed time to whole minutes, never negative.
func MinutesBetween(startUnix, endUnix int64) int {
	if endUnix <= startUnix {
		return 0
	}
	return int(math.Round(float64(endUnix-startUnix) / 60))
}
