package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lshigami/examdesk/internal/metrics"
	"github.com/lshigami/examdesk/internal/model"
	"gorm.io/gorm"
)

type ExamRepository interface {
	Create(ctx context.Context, exam *model.Exam) error
	FindByID(ctx context.Context, id uint) (*model.Exam, error)
	FindByIDWithQuestions(ctx context.Context, id uint) (*model.Exam, error)
	FindAll(ctx context.Context, activeOnly bool) ([]ExamWithQuestionCount, error)
}

type ExamWithQuestionCount struct {
	model.Exam
	QuestionCount int
}

type examRepository struct {
	db *gorm.DB
}

func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) Create(ctx context.Context, exam *model.Exam) error {
	defer metrics.ObserveDB("create", "exams")()
	err := r.db.WithContext(ctx).Create(exam).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("exam %q: %w", exam.Title, ErrDuplicate)
	}
	return err
}

func (r *examRepository) FindByID(ctx context.Context, id uint) (*model.Exam, error) {
	defer metrics.ObserveDB("select", "exams")()
	var exam model.Exam
	if err := r.db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return nil, translate(err)
	}
	return &exam, nil
}

func (r *examRepository) FindByIDWithQuestions(ctx context.Context, id uint) (*model.Exam, error) {
	defer metrics.ObserveDB("select", "exams")()
	var exam model.Exam
	err := r.db.WithContext(ctx).Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("questions.position ASC")
	}).First(&exam, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &exam, nil
}

func (r *examRepository) FindAll(ctx context.Context, activeOnly bool) ([]ExamWithQuestionCount, error) {
	defer metrics.ObserveDB("select", "exams")()
	results := make([]ExamWithQuestionCount, 0)
	query := r.db.WithContext(ctx).Model(&model.Exam{}).
		Select("exams.*, (SELECT COUNT(*) FROM questions WHERE questions.exam_id = exams.id AND questions.deleted_at IS NULL) as question_count").
		Where("exams.deleted_at IS NULL")
	if activeOnly {
		query = query.Where("exams.is_active = ?", true)
	}
	err := query.Order("exams.created_at DESC").Scan(&results).Error
	return results, err
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
