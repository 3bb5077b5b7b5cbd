package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/lshigami/examdesk/internal/dto"
	"github.com/lshigami/examdesk/internal/model"
	"github.com/lshigami/examdesk/internal/repository"
	"github.com/rs/zerolog/log"
)

type ExamService interface {
	GetAllExams(ctx context.Context, includeInactive bool) ([]dto.ExamSummaryDTO, error)
	GetExamDetails(ctx context.Context, examID uint) (*dto.ExamResponseDTO, error)
}

type examService struct {
	examRepo repository.ExamRepository
}

func NewExamService(examRepo repository.ExamRepository) ExamService {
	return &examService{examRepo: examRepo}
}

func (s *examService) GetAllExams(ctx context.Context, includeInactive bool) ([]dto.ExamSummaryDTO, error) {
	examsWithCount, err := s.examRepo.FindAll(ctx, !includeInactive)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get exams with question count from repository")
		return nil, fmt.Errorf("error fetching exams: %w", err)
	}

	dtos := make([]dto.ExamSummaryDTO, 0, len(examsWithCount))
	for _, ewc := range examsWithCount {
		dtos = append(dtos, dto.ExamSummaryDTO{
			ID:            ewc.Exam.ID,
			Title:         ewc.Exam.Title,
			Subject:       ewc.Exam.Subject,
			Description:   ewc.Exam.Description,
			Duration:      ewc.Exam.Duration,
			StartDate:     ewc.Exam.StartDate,
			EndDate:       ewc.Exam.EndDate,
			PassingMarks:  ewc.Exam.PassingMarks,
			IsActive:      ewc.Exam.IsActive,
			QuestionCount: ewc.QuestionCount,
			CreatedAt:     ewc.Exam.CreatedAt,
		})
	}
	return dtos, nil
}

// GetExamDetails returns inactive exams too; the exam client refuses to run them.
func (s *examService) GetExamDetails(ctx context.Context, examID uint) (*dto.ExamResponseDTO, error) {
	exam, err := s.examRepo.FindByIDWithQuestions(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errExamNotFound
		}
		log.Error().Err(err).Uint("examID", examID).Msg("Failed to get exam details from repository")
		return nil, fmt.Errorf("error fetching exam %d: %w", examID, err)
	}
	resp := toExamResponse(exam)
	return &resp, nil
}

func toExamResponse(exam *model.Exam) dto.ExamResponseDTO {
	var resp dto.ExamResponseDTO
	if err := copier.Copy(&resp, exam); err != nil {
		log.Error().Err(err).Uint("examID", exam.ID).Msg("Failed to copy Exam model to ExamResponseDTO")
	}
	resp.TotalMarks = totalMarks(exam)
	if resp.Questions == nil {
		resp.Questions = []dto.QuestionResponseDTO{}
	}
	return resp
}
