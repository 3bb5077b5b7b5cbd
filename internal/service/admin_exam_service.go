package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lshigami/examdesk/internal/dto"
	"github.com/lshigami/examdesk/internal/model"
	"github.com/lshigami/examdesk/internal/repository"
	"github.com/rs/zerolog/log"
)

type AdminExamService interface {
	CreateExam(ctx context.Context, req dto.ExamCreateDTO) (*dto.ExamResponseDTO, error)
}

type adminExamService struct {
	examRepo repository.ExamRepository
}

func NewAdminExamService(examRepo repository.ExamRepository) AdminExamService {
	return &adminExamService{examRepo: examRepo}
}

func (s *adminExamService) CreateExam(ctx context.Context, req dto.ExamCreateDTO) (*dto.ExamResponseDTO, error) {
	if req.StartDate != nil && req.EndDate != nil && !req.EndDate.After(*req.StartDate) {
		return nil, newError(ErrValidation, "end_date must be after start_date")
	}

	var total float64
	questions := make([]model.Question, 0, len(req.Questions))
	for i, q := range req.Questions {
		if q.CorrectAnswer >= len(q.Options) {
			return nil, newError(ErrValidation, fmt.Sprintf("question %d: correct_answer %d is out of range for %d options", i+1, q.CorrectAnswer, len(q.Options)))
		}
		total += q.Marks
		questions = append(questions, model.Question{
			Position:      i,
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Marks:         q.Marks,
		})
	}
	if req.PassingMarks > total {
		return nil, newError(ErrValidation, fmt.Sprintf("passing_marks %.2f exceeds total marks %.2f", req.PassingMarks, total))
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	exam := model.Exam{
		Title:        req.Title,
		Subject:      req.Subject,
		Description:  req.Description,
		Duration:     req.Duration,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		PassingMarks: req.PassingMarks,
		IsActive:     active,
		Questions:    questions,
	}

	if err := s.examRepo.Create(ctx, &exam); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrConflict, fmt.Sprintf("An exam titled %q already exists", req.Title))
		}
		log.Error().Err(err).Str("title", req.Title).Msg("Failed to create exam")
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	log.Info().Uint("examID", exam.ID).Int("questions", len(questions)).Msg("Exam created")
	resp := toExamResponse(&exam)
	return &resp, nil
}
