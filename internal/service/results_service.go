package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lshigami/examdesk/internal/dto"
	"github.com/lshigami/examdesk/internal/model"
	"github.com/lshigami/examdesk/internal/repository"
	"github.com/lshigami/examdesk/internal/scoring"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

type ResultsService interface {
	GetExamResults(ctx context.Context, examID uint) (*dto.ExamResultsDTO, error)
	// ExportExamResults renders the results as an xlsx workbook and suggests a file name.
	ExportExamResults(ctx context.Context, examID uint) ([]byte, string, error)
}

type resultsService struct {
	examRepo    repository.ExamRepository
	attemptRepo repository.AttemptRepository
}

func NewResultsService(examRepo repository.ExamRepository, attemptRepo repository.AttemptRepository) ResultsService {
	return &resultsService{examRepo: examRepo, attemptRepo: attemptRepo}
}

func (s *resultsService) GetExamResults(ctx context.Context, examID uint) (*dto.ExamResultsDTO, error) {
	exam, err := s.examRepo.FindByIDWithQuestions(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errExamNotFound
		}
		return nil, fmt.Errorf("failed to load exam %d: %w", examID, err)
	}
	attempts, err := s.attemptRepo.FindByExam(ctx, examID, nil)
	if err != nil {
		log.Error().Err(err).Uint("examID", examID).Msg("Failed to load attempts for results")
		return nil, err
	}
	return buildResults(exam, attempts), nil
}

func buildResults(exam *model.Exam, attempts []model.Attempt) *dto.ExamResultsDTO {
	res := &dto.ExamResultsDTO{
		ExamID:        exam.ID,
		ExamTitle:     exam.Title,
		TotalAttempts: len(attempts),
		Attempts:      toAttemptResponses(attempts),
	}

	var scoreSum, timeSum float64
	var graded, timed int
	attempted := make([]int, len(exam.Questions))
	correct := make([]int, len(exam.Questions))

	for _, a := range attempts {
		switch a.State {
		case model.StateInProgress:
			res.InProgress++
			continue
		case model.StateAbandoned:
			res.Abandoned++
			continue
		}
		res.Completed++
		if a.TimeTaken != nil {
			timeSum += float64(*a.TimeTaken)
			timed++
		}
		if a.Outcome == nil {
			continue
		}
		if *a.Outcome == model.OutcomePass {
			res.Passed++
		} else {
			res.Failed++
		}
		graded++
		if a.Score != nil {
			scoreSum += *a.Score
		}
		for _, ans := range a.Answers {
			if ans.QuestionIndex < 0 || ans.QuestionIndex >= len(exam.Questions) || ans.SelectedOption == nil {
				continue
			}
			attempted[ans.QuestionIndex]++
			if ans.IsCorrect {
				correct[ans.QuestionIndex]++
			}
		}
	}

	res.PassRate = scoring.Percentage(float64(res.Passed), float64(graded))
	if graded > 0 {
		res.AverageScore = round2(scoreSum / float64(graded))
	}
	if timed > 0 {
		res.AverageTimeTaken = round2(timeSum / float64(timed))
	}

	res.Questions = make([]dto.QuestionInsightDTO, len(exam.Questions))
	for i, q := range exam.Questions {
		rate := scoring.Percentage(float64(correct[i]), float64(graded))
		res.Questions[i] = dto.QuestionInsightDTO{
			Index:       i,
			Text:        q.Text,
			Attempted:   attempted[i],
			Correct:     correct[i],
			CorrectRate: rate,
			Difficulty:  difficulty(rate),
		}
	}
	return res
}

func difficulty(correctRate float64) string {
	switch {
	case correctRate >= 70:
		return DifficultyEasy
	case correctRate >= 40:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var attemptSheetHeader = []interface{}{
	"Student", "Email", "Status", "Score", "Total Marks", "Answered", "Time Taken (min)", "Started", "Finished",
}

func (s *resultsService) ExportExamResults(ctx context.Context, examID uint) ([]byte, string, error) {
	results, err := s.GetExamResults(ctx, examID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close workbook")
		}
	}()

	const attemptsSheet, summarySheet, questionsSheet = "Attempts", "Summary", "Questions"
	if err := f.SetSheetName("Sheet1", attemptsSheet); err != nil {
		return nil, "", fmt.Errorf("failed to prepare workbook: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, "", fmt.Errorf("failed to prepare workbook: %w", err)
	}
	if _, err := f.NewSheet(questionsSheet); err != nil {
		return nil, "", fmt.Errorf("failed to prepare workbook: %w", err)
	}

	if err := f.SetSheetRow(attemptsSheet, "A1", &attemptSheetHeader); err != nil {
		return nil, "", err
	}
	for i, a := range results.Attempts {
		row := []interface{}{
			a.StudentName,
			a.StudentEmail,
			a.Status,
			optionalFloat(a.Score),
			a.TotalMarks,
			a.AnsweredQuestions,
			optionalInt(a.TimeTaken),
			a.StartTime.Format(time.RFC3339),
			optionalTime(a.EndTime),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(attemptsSheet, cell, &row); err != nil {
			return nil, "", err
		}
	}

	summary := [][]interface{}{
		{"Exam", results.ExamTitle},
		{"Total Attempts", results.TotalAttempts},
		{"Completed", results.Completed},
		{"Passed", results.Passed},
		{"Failed", results.Failed},
		{"In Progress", results.InProgress},
		{"Abandoned", results.Abandoned},
		{"Pass Rate (%)", results.PassRate},
		{"Average Score", results.AverageScore},
		{"Average Time (min)", results.AverageTimeTaken},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, "", err
		}
	}

	questionHeader := []interface{}{"#", "Question", "Attempted", "Correct", "Correct Rate (%)", "Difficulty"}
	if err := f.SetSheetRow(questionsSheet, "A1", &questionHeader); err != nil {
		return nil, "", err
	}
	for i, q := range results.Questions {
		row := []interface{}{q.Index + 1, q.Text, q.Attempted, q.Correct, q.CorrectRate, q.Difficulty}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(questionsSheet, cell, &row); err != nil {
			return nil, "", err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		log.Error().Err(err).Uint("examID", examID).Msg("Failed to write results workbook")
		return nil, "", fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), fmt.Sprintf("exam-%d-results.xlsx", examID), nil
}

func optionalFloat(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func optionalInt(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func optionalTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format(time.RFC3339)
}
