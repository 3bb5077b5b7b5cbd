package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lshigami/examdesk/internal/cache"
	"github.com/lshigami/examdesk/internal/model"
)

// cachedExamRepository serves exam snapshots from the cache. Exams are not edited after
// creation, so entries only expire by TTL. Listings always hit the database.
type cachedExamRepository struct {
	ExamRepository
	store cache.Store
	ttl   time.Duration
}

func NewCachedExamRepository(inner ExamRepository, store cache.Store, ttl time.Duration) ExamRepository {
	return &cachedExamRepository{ExamRepository: inner, store: store, ttl: ttl}
}

func (r *cachedExamRepository) FindByIDWithQuestions(ctx context.Context, id uint) (*model.Exam, error) {
	return cache.GetOrLoad(ctx, r.store, fmt.Sprintf("exam:%d:questions", id), r.ttl, func() (*model.Exam, error) {
		return r.ExamRepository.FindByIDWithQuestions(ctx, id)
	})
}
