package examsession

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lshigami/examdesk/internal/apiclient"
	"github.com/lshigami/examdesk/internal/dto"
	"github.com/lshigami/examdesk/internal/model"
)

var _ ExamAPI = (*apiclient.Client)(nil)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeAPI struct {
	exam     *dto.ExamResponseDTO
	examErr  error
	attempts []dto.AttemptResponse

	submitErr error
	// release, when set, blocks submit calls until it is closed.
	release chan struct{}
	entered chan struct{}

	submits atomic.Int32
	creates atomic.Int32

	mu         sync.Mutex
	lastSubmit *dto.SubmitAttemptRequest
	lastCreate *dto.CreateAttemptRequest
}

func (f *fakeAPI) GetExam(_ context.Context, _ uint) (*dto.ExamResponseDTO, error) {
	return f.exam, f.examErr
}

func (f *fakeAPI) ListExamAttempts(_ context.Context, _ uint) ([]dto.AttemptResponse, error) {
	return f.attempts, nil
}

func (f *fakeAPI) block() {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
}

func (f *fakeAPI) SubmitAttempt(_ context.Context, id uint, req dto.SubmitAttemptRequest) (*dto.AttemptResponse, error) {
	f.submits.Add(1)
	f.block()
	f.mu.Lock()
	f.lastSubmit = &req
	f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	score := 2.0
	return &dto.AttemptResponse{ID: id, State: model.StateCompleted, Score: &score, TotalMarks: 4}, nil
}

func (f *fakeAPI) CreateAttempt(_ context.Context, req dto.CreateAttemptRequest) (*dto.AttemptResponse, error) {
	f.creates.Add(1)
	f.block()
	f.mu.Lock()
	f.lastCreate = &req
	f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &dto.AttemptResponse{ID: 77, State: model.StateCompleted}, nil
}

type fakeCamera struct {
	err      error
	released int
}

func (c *fakeCamera) Acquire(context.Context) error { return c.err }

func (c *fakeCamera) Release() error {
	c.released++
	return nil
}

var errOffline = errors.New("network unreachable")

func sampleExam() *dto.ExamResponseDTO {
	return &dto.ExamResponseDTO{
		ID:           10,
		Title:        "Networks",
		Duration:     30,
		PassingMarks: 2,
		IsActive:     true,
		TotalMarks:   4,
		Questions: []dto.QuestionResponseDTO{
			{Position: 0, Text: "Layer of IP?", Options: []string{"Network", "Transport", "Link"}, CorrectAnswer: 0, Marks: 2},
			{Position: 1, Text: "Port of HTTPS?", Options: []string{"80", "443", "22"}, CorrectAnswer: 1, Marks: 2},
		},
	}
}
