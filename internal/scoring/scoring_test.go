package scoring

import "testing"

func intPtr(v int) *int { return &v }

func twoQuestionExam() []Question {
	return []Question{
		{Options: 4, CorrectOption: 0, Marks: 2},
		{Options: 4, CorrectOption: 1, Marks: 2},
	}
}

func TestScoreAllCorrect(t *testing.T) {
	res := Score(twoQuestionExam(), []Answer{
		{QuestionIndex: 0, SelectedOption: intPtr(0)},
		{QuestionIndex: 1, SelectedOption: intPtr(1)},
	})
	if res.Score != 4 {
		t.Fatalf("score = %v, want 4", res.Score)
	}
	if res.TotalMarks != 4 {
		t.Fatalf("total = %v, want 4", res.TotalMarks)
	}
	if !Passed(res.Score, 2) {
		t.Fatal("expected pass")
	}
	for _, a := range res.Answers {
		if !a.IsCorrect || a.MarksObtained != 2 {
			t.Fatalf("answer %+v should be correct with 2 marks", a)
		}
	}
}

func TestScoreAllWrong(t *testing.T) {
	res := Score(twoQuestionExam(), []Answer{
		{QuestionIndex: 0, SelectedOption: intPtr(1)},
		{QuestionIndex: 1, SelectedOption: intPtr(0)},
	})
	if res.Score != 0 {
		t.Fatalf("score = %v, want 0", res.Score)
	}
	if Passed(res.Score, 2) {
		t.Fatal("expected fail")
	}
	if res.Answered != 2 || res.Correct != 0 {
		t.Fatalf("answered=%d correct=%d", res.Answered, res.Correct)
	}
}

func TestScoreEmptyAnswersKeepDenominator(t *testing.T) {
	questions := make([]Question, 5)
	for i := range questions {
		questions[i] = Question{Options: 3, CorrectOption: 2, Marks: 3}
	}
	res := Score(questions, nil)
	if res.Score != 0 || res.TotalMarks != 15 {
		t.Fatalf("got score=%v total=%v", res.Score, res.TotalMarks)
	}
	if Passed(res.Score, 1) {
		t.Fatal("empty answer set must fail a positive threshold")
	}
}

func TestScoreFullMarksForNQuestions(t *testing.T) {
	const n, m = 7, 2.5
	questions := make([]Question, n)
	answers := make([]Answer, n)
	for i := 0; i < n; i++ {
		questions[i] = Question{Options: 4, CorrectOption: i % 4, Marks: m}
		answers[i] = Answer{QuestionIndex: i, SelectedOption: intPtr(i % 4)}
	}
	res := Score(questions, answers)
	if res.Score != n*m {
		t.Fatalf("score = %v, want %v", res.Score, n*m)
	}
}

func TestScoreIgnoresUnknownAndInvalidSelections(t *testing.T) {
	res := Score(twoQuestionExam(), []Answer{
		{QuestionIndex: 9, SelectedOption: intPtr(0)},
		{QuestionIndex: -1, SelectedOption: intPtr(0)},
		{QuestionIndex: 0, SelectedOption: nil},
		{QuestionIndex: 1, SelectedOption: intPtr(42)},
	})
	if res.Score != 0 {
		t.Fatalf("score = %v, want 0", res.Score)
	}
	if len(res.Answers) != 4 {
		t.Fatalf("graded %d answers, want 4", len(res.Answers))
	}
	if res.Answered != 1 {
		t.Fatalf("answered = %d, want 1", res.Answered)
	}
}

func TestScoreLastAnswerWins(t *testing.T) {
	res := Score(twoQuestionExam(), []Answer{
		{QuestionIndex: 0, SelectedOption: intPtr(0)},
		{QuestionIndex: 0, SelectedOption: intPtr(3)},
	})
	if res.Score != 0 {
		t.Fatalf("score = %v, want 0 after overwrite", res.Score)
	}
}

func TestPercentage(t *testing.T) {
	cases := []struct {
		score, total, want float64
	}{
		{4, 10, 40},
		{1, 3, 33.33},
		{5, 0, 0},
	}
	for _, c := range cases {
		if got := Percentage(c.score, c.total); got != c.want {
			t.Errorf("Percentage(%v, %v) = %v, want %v", c.score, c.total, got, c.want)
		}
	}
}

func TestMinutesBetween(t *testing.T) {
	if got := MinutesBetween(0, 89); got != 1 {
		t.Errorf("89s = %d min, want 1", got)
	}
	if got := MinutesBetween(0, 90); got != 2 {
		t.Errorf("90s = %d min, want 2", got)
	}
	if got := MinutesBetween(100, 50); got != 0 {
		t.Errorf("negative span = %d, want 0", got)
	}
}
