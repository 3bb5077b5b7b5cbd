package service

import (
	"context"
	"sort"
	"sync"

	"github.com/lshigami/examdesk/internal/model"
	"github.com/lshigami/examdesk/internal/repository"
)

type fakeAttemptRepo struct {
	mu       sync.Mutex
	nextID   uint
	attempts map[uint]model.Attempt
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: map[uint]model.Attempt{}}
}

func cloneAttempt(a model.Attempt) model.Attempt {
	a.Answers = append([]model.Answer(nil), a.Answers...)
	return a
}

func (r *fakeAttemptRepo) insert(a *model.Attempt) {
	r.nextID++
	a.ID = r.nextID
	r.attempts[a.ID] = cloneAttempt(*a)
}

func (r *fakeAttemptRepo) CreateActive(_ context.Context, a *model.Attempt) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.attempts {
		if existing.UserID == a.UserID && sameExam(existing.ExamID, a.ExamID) && existing.State == model.StateInProgress {
			*a = cloneAttempt(existing)
			return false, nil
		}
	}
	r.insert(a)
	return true, nil
}

func (r *fakeAttemptRepo) CreateUnique(_ context.Context, a *model.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.attempts {
		if existing.UserID == a.UserID && a.ExamID != nil && sameExam(existing.ExamID, a.ExamID) {
			return repository.ErrDuplicate
		}
	}
	r.insert(a)
	return nil
}

func (r *fakeAttemptRepo) FindByID(_ context.Context, id uint) (*model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneAttempt(a)
	return &c, nil
}

func (r *fakeAttemptRepo) FindByIDWithExam(ctx context.Context, id uint) (*model.Attempt, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeAttemptRepo) filter(keep func(model.Attempt) bool) []model.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Attempt, 0)
	for _, a := range r.attempts {
		if keep(a) {
			out = append(out, cloneAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *fakeAttemptRepo) FindByUser(_ context.Context, userID uint) ([]model.Attempt, error) {
	return r.filter(func(a model.Attempt) bool { return a.UserID == userID && a.ExamID != nil }), nil
}

func (r *fakeAttemptRepo) FindByExam(_ context.Context, examID uint, userID *uint) ([]model.Attempt, error) {
	return r.filter(func(a model.Attempt) bool {
		return a.ExamID != nil && *a.ExamID == examID && (userID == nil || a.UserID == *userID)
	}), nil
}

func (r *fakeAttemptRepo) FindAssignmentAttempts(_ context.Context, userID uint, subjectID string) ([]model.Attempt, error) {
	return r.filter(func(a model.Attempt) bool {
		return a.UserID == userID && a.AssignmentID != nil && a.SubjectID != nil && *a.SubjectID == subjectID
	}), nil
}

func (r *fakeAttemptRepo) UpsertAssignment(_ context.Context, a *model.Attempt) (*model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.attempts {
		if existing.UserID == a.UserID && existing.AssignmentID != nil && *existing.AssignmentID == *a.AssignmentID &&
			existing.SubjectID != nil && *existing.SubjectID == *a.SubjectID {
			existing.State = a.State
			existing.Outcome = a.Outcome
			existing.EndTime = a.EndTime
			r.attempts[id] = existing
			c := cloneAttempt(existing)
			return &c, nil
		}
	}
	r.insert(a)
	c := cloneAttempt(*a)
	return &c, nil
}

func (r *fakeAttemptRepo) SaveProgress(_ context.Context, a *model.Attempt) error {
	return r.updateInProgress(a)
}

func (r *fakeAttemptRepo) Finalize(_ context.Context, a *model.Attempt) error {
	return r.updateInProgress(a)
}

func (r *fakeAttemptRepo) updateInProgress(a *model.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.attempts[a.ID]
	if !ok || existing.State != model.StateInProgress {
		return repository.ErrNotInProgress
	}
	r.attempts[a.ID] = cloneAttempt(*a)
	return nil
}

func (r *fakeAttemptRepo) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attempts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.attempts, id)
	return nil
}

// forceState simulates a write that happened behind the service's back.
func (r *fakeAttemptRepo) forceState(id uint, state model.AttemptState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.attempts[id]
	a.State = state
	r.attempts[id] = a
}

func sameExam(a, b *uint) bool {
	return a != nil && b != nil && *a == *b
}

type fakeExamRepo struct {
	exams map[uint]*model.Exam
}

func newFakeExamRepo(exams ...*model.Exam) *fakeExamRepo {
	r := &fakeExamRepo{exams: map[uint]*model.Exam{}}
	for _, e := range exams {
		r.exams[e.ID] = e
	}
	return r
}

func (r *fakeExamRepo) Create(_ context.Context, exam *model.Exam) error {
	for _, e := range r.exams {
		if e.Title == exam.Title {
			return repository.ErrDuplicate
		}
	}
	exam.ID = uint(len(r.exams) + 1)
	r.exams[exam.ID] = exam
	return nil
}

func (r *fakeExamRepo) FindByID(ctx context.Context, id uint) (*model.Exam, error) {
	return r.FindByIDWithQuestions(ctx, id)
}

func (r *fakeExamRepo) FindByIDWithQuestions(_ context.Context, id uint) (*model.Exam, error) {
	e, ok := r.exams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return e, nil
}

func (r *fakeExamRepo) FindAll(_ context.Context, activeOnly bool) ([]repository.ExamWithQuestionCount, error) {
	out := make([]repository.ExamWithQuestionCount, 0)
	for _, e := range r.exams {
		if activeOnly && !e.IsActive {
			continue
		}
		out = append(out, repository.ExamWithQuestionCount{Exam: *e, QuestionCount: len(e.Questions)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeUserRepo struct {
	users map[uint]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[uint]*model.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = uint(len(r.users) + 100)
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uint) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) FindAll(_ context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	c := *user
	r.users[user.ID] = &c
	return nil
}

func (r *fakeUserRepo) DeleteNonAdmins(_ context.Context) (int64, error) {
	var n int64
	for id, u := range r.users {
		if u.Role != model.RoleAdmin {
			delete(r.users, id)
			n++
		}
	}
	return n, nil
}

type publishedEvent struct {
	examID    uint
	eventType string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (n *recordingNotifier) Publish(examID uint, eventType string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{examID: examID, eventType: eventType})
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.eventType
	}
	return out
}
