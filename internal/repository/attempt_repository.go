package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lshigami/examdesk/internal/metrics"
	"github.com/lshigami/examdesk/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository interface {
	// CreateActive inserts an in_progress attempt unless the user already has one for the
	// exam, in which case attempt is overwritten with the existing row and created is false.
	CreateActive(ctx context.Context, attempt *model.Attempt) (created bool, err error)
	// CreateUnique inserts attempt unless the user has any attempt for its exam (ErrDuplicate).
	CreateUnique(ctx context.Context, attempt *model.Attempt) error
	FindByID(ctx context.Context, id uint) (*model.Attempt, error)
	FindByIDWithExam(ctx context.Context, id uint) (*model.Attempt, error)
	FindByUser(ctx context.Context, userID uint) ([]model.Attempt, error)
	FindByExam(ctx context.Context, examID uint, userID *uint) ([]model.Attempt, error)
	FindAssignmentAttempts(ctx context.Context, userID uint, subjectID string) ([]model.Attempt, error)
	UpsertAssignment(ctx context.Context, attempt *model.Attempt) (*model.Attempt, error)
	// SaveProgress and Finalize only touch rows still in_progress; otherwise ErrNotInProgress.
	SaveProgress(ctx context.Context, attempt *model.Attempt) error
	Finalize(ctx context.Context, attempt *model.Attempt) error
	Delete(ctx context.Context, id uint) error
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func orderedAnswers(db *gorm.DB) *gorm.DB {
	return db.Order("answers.question_index ASC")
}

var activeAttemptTarget = clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "state = 'in_progress'"}}}

func (r *attemptRepository) CreateActive(ctx context.Context, attempt *model.Attempt) (bool, error) {
	defer metrics.ObserveDB("insert", "attempts")()
	// The conflicting row can be finalised between the insert and the lookup; one retry
	// then inserts a fresh attempt.
	var err error
	for try := 0; try < 2; try++ {
		var created bool
		created, err = r.createActiveOnce(ctx, attempt)
		if !errors.Is(err, ErrNotFound) {
			return created, err
		}
	}
	return false, fmt.Errorf("failed to load active attempt: %w", err)
}

func (r *attemptRepository) createActiveOnce(ctx context.Context, attempt *model.Attempt) (bool, error) {
	candidate := *attempt
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:     []clause.Column{{Name: "user_id"}, {Name: "exam_id"}},
		TargetWhere: activeAttemptTarget,
		DoNothing:   true,
	}).Create(&candidate)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create attempt: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		*attempt = candidate
		return true, nil
	}

	var existing model.Attempt
	err := r.db.WithContext(ctx).
		Preload("Answers", orderedAnswers).
		Where("user_id = ? AND exam_id = ? AND state = ?", attempt.UserID, attempt.ExamID, model.StateInProgress).
		First(&existing).Error
	if err != nil {
		return false, translate(err)
	}
	*attempt = existing
	return false, nil
}

func (r *attemptRepository) CreateUnique(ctx context.Context, attempt *model.Attempt) error {
	defer metrics.ObserveDB("insert", "attempts")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serialises attempt creation per user so the existence check below cannot race.
		var owner model.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&owner, attempt.UserID).Error; err != nil {
			return translate(err)
		}
		if attempt.ExamID != nil {
			var count int64
			if err := tx.Model(&model.Attempt{}).
				Where("user_id = ? AND exam_id = ?", attempt.UserID, *attempt.ExamID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicate
			}
		}
		return tx.Create(attempt).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *attemptRepository) FindByID(ctx context.Context, id uint) (*model.Attempt, error) {
	defer metrics.ObserveDB("select", "attempts")()
	var attempt model.Attempt
	if err := r.db.WithContext(ctx).Preload("Answers", orderedAnswers).First(&attempt, id).Error; err != nil {
		return nil, translate(err)
	}
	return &attempt, nil
}

func (r *attemptRepository) FindByIDWithExam(ctx context.Context, id uint) (*model.Attempt, error) {
	defer metrics.ObserveDB("select", "attempts")()
	var attempt model.Attempt
	err := r.db.WithContext(ctx).
		Preload("Answers", orderedAnswers).
		Preload("Exam").
		Preload("Exam.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.position ASC")
		}).
		First(&attempt, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &attempt, nil
}

func (r *attemptRepository) FindByUser(ctx context.Context, userID uint) ([]model.Attempt, error) {
	defer metrics.ObserveDB("select", "attempts")()
	attempts := make([]model.Attempt, 0)
	err := r.db.WithContext(ctx).
		Preload("Answers", orderedAnswers).
		Where("user_id = ? AND exam_id IS NOT NULL", userID).
		Order("end_time DESC NULLS LAST").
		Order("start_time DESC").
		Find(&attempts).Error
	return attempts, err
}

func (r *attemptRepository) FindByExam(ctx context.Context, examID uint, userID *uint) ([]model.Attempt, error) {
	defer metrics.ObserveDB("select", "attempts")()
	attempts := make([]model.Attempt, 0)
	query := r.db.WithContext(ctx).Preload("Answers", orderedAnswers).Where("exam_id = ?", examID)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	err := query.Order("end_time DESC NULLS LAST").Order("start_time DESC").Find(&attempts).Error
	return attempts, err
}

func (r *attemptRepository) FindAssignmentAttempts(ctx context.Context, userID uint, subjectID string) ([]model.Attempt, error) {
	defer metrics.ObserveDB("select", "attempts")()
	attempts := make([]model.Attempt, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND subject_id = ? AND assignment_id IS NOT NULL", userID, subjectID).
		Order("updated_at DESC").
		Find(&attempts).Error
	return attempts, err
}

func (r *attemptRepository) UpsertAssignment(ctx context.Context, attempt *model.Attempt) (*model.Attempt, error) {
	defer metrics.ObserveDB("upsert", "attempts")()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "assignment_id"}, {Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "outcome", "end_time", "updated_at"}),
	}).Create(attempt).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert assignment attempt: %w", err)
	}

	var stored model.Attempt
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND assignment_id = ? AND subject_id = ?", attempt.UserID, attempt.AssignmentID, attempt.SubjectID).
		First(&stored).Error
	if err != nil {
		return nil, translate(err)
	}
	return &stored, nil
}

func (r *attemptRepository) SaveProgress(ctx context.Context, attempt *model.Attempt) error {
	defer metrics.ObserveDB("update", "attempts")()
	return r.updateInProgress(ctx, attempt, map[string]interface{}{
		"last_saved_index":   attempt.LastSavedIndex,
		"time_left":          attempt.TimeLeft,
		"answered_questions": attempt.AnsweredQuestions,
	})
}

func (r *attemptRepository) Finalize(ctx context.Context, attempt *model.Attempt) error {
	defer metrics.ObserveDB("update", "attempts")()
	return r.updateInProgress(ctx, attempt, map[string]interface{}{
		"state":                attempt.State,
		"outcome":              attempt.Outcome,
		"end_time":             attempt.EndTime,
		"time_taken":           attempt.TimeTaken,
		"time_left":            attempt.TimeLeft,
		"score":                attempt.Score,
		"total_marks_obtained": attempt.TotalMarksObtained,
		"total_marks":          attempt.TotalMarks,
		"answered_questions":   attempt.AnsweredQuestions,
	})
}

// updateInProgress applies fields and replaces the answer set in one transaction, guarded by
// the in_progress state so terminal attempts are never rewritten.
func (r *attemptRepository) updateInProgress(ctx context.Context, attempt *model.Attempt, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Attempt{}).
			Where("id = ? AND state = ?", attempt.ID, model.StateInProgress).
			Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("failed to update attempt %d: %w", attempt.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotInProgress
		}

		if err := tx.Where("attempt_id = ?", attempt.ID).Delete(&model.Answer{}).Error; err != nil {
			return fmt.Errorf("failed to clear answers of attempt %d: %w", attempt.ID, err)
		}
		if len(attempt.Answers) == 0 {
			return nil
		}
		for i := range attempt.Answers {
			attempt.Answers[i].ID = 0
			attempt.Answers[i].AttemptID = attempt.ID
		}
		if err := tx.Create(&attempt.Answers).Error; err != nil {
			return fmt.Errorf("failed to store answers of attempt %d: %w", attempt.ID, err)
		}
		return nil
	})
}

func (r *attemptRepository) Delete(ctx context.Context, id uint) error {
	defer metrics.ObserveDB("delete", "attempts")()
	res := r.db.WithContext(ctx).Delete(&model.Attempt{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete attempt %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
