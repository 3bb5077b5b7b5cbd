// Package examsession drives one student's exam from loading the paper to the submitted summary:
// countdown, answer buffer, draft autosave, camera proctoring and a single guarded submit.
package examsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lshigami/examdesk/internal/dto"
	"github.com/lshigami/examdesk/internal/model"
	"github.com/lshigami/examdesk/internal/scoring"
	"github.com/rs/zerolog/log"
)

type State string

const (
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateCameraCheck State = "camera_check"
	StateAnswering   State = "answering"
	StateConfirming  State = "confirming"
	StateSubmitting  State = "submitting"
	StateDone        State = "done"
	StateError       State = "error"
)

const DefaultAutosaveInterval = 30 * time.Second

var (
	ErrExamUnavailable  = errors.New("exam not available")
	ErrCameraRequired   = errors.New("camera access is required for this exam")
	ErrSubmitInProgress = errors.New("submit already in progress")
	ErrAlreadyAttempted = errors.New("you have already attempted this exam")
	ErrInvalidChoice    = errors.New("invalid question or option")
	ErrClosed           = errors.New("session closed")
	ErrInvalidState     = errors.New("invalid session state")
)

// TransitionError reports an operation that the current state does not allow.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed while %s", e.Op, e.State)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidState }

// ExamAPI is the server surface a session needs.
type ExamAPI interface {
	GetExam(ctx context.Context, examID uint) (*dto.ExamResponseDTO, error)
	ListExamAttempts(ctx context.Context, examID uint) ([]dto.AttemptResponse, error)
	SubmitAttempt(ctx context.Context, attemptID uint, req dto.SubmitAttemptRequest) (*dto.AttemptResponse, error)
	CreateAttempt(ctx context.Context, req dto.CreateAttemptRequest) (*dto.AttemptResponse, error)
}

// Camera is the proctoring device. Release is called once when the session closes.
type Camera interface {
	Acquire(ctx context.Context) error
	Release() error
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Options struct {
	AutosaveInterval time.Duration

	// RequireCamera turns a failed camera check into an error instead of degraded proctoring.
	RequireCamera bool
	Camera        Camera
	Clock         Clock
}

// Summary is what the review screen shows after a successful submit.
type Summary struct {
	AttemptID      uint
	Score          float64
	TotalMarks     float64
	Percentage     float64
	Passed         bool
	TotalQuestions int
	Answered       int
	TimeTaken      int // minutes
}

type Session struct {
	examID uint
	api    ExamAPI
	drafts DraftStore
	opts   Options

	mu         sync.Mutex
	state      State
	exam       *dto.ExamResponseDTO
	answers    map[int]int
	current    int
	timeLeft   int // seconds on the clock before Begin
	endAt      time.Time
	degraded   bool
	cameraHeld bool
	err        error
	summary    *Summary
	closed     bool

	submitting atomic.Bool
	stop       chan struct{}
	stopOnce   sync.Once
}

func New(examID uint, api ExamAPI, drafts DraftStore, opts Options) *Session {
	if opts.AutosaveInterval <= 0 {
		opts.AutosaveInterval = DefaultAutosaveInterval
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if drafts == nil {
		drafts = NewMemoryDraftStore()
	}
	return &Session{
		examID:  examID,
		api:     api,
		drafts:  drafts,
		opts:    opts,
		state:   StateLoading,
		answers: map[int]int{},
		stop:    make(chan struct{}),
	}
}

// Load fetches the exam and restores a saved draft. It ends in ready, or in error when the
// exam cannot be taken.
func (s *Session) Load(ctx context.Context) error {
	if s.examID == 0 {
		return s.fail(ErrExamUnavailable)
	}
	exam, err := s.api.GetExam(ctx, s.examID)
	if err != nil {
		log.Error().Err(err).Uint("examID", s.examID).Msg("Exam session: failed to load exam")
		return s.fail(err)
	}
	if exam == nil || !exam.IsActive {
		return s.fail(ErrExamUnavailable)
	}

	draft, err := s.drafts.Get(ctx, DraftKey(s.examID))
	if err != nil {
		log.Warn().Err(err).Uint("examID", s.examID).Msg("Exam session: ignoring unreadable draft")
		draft = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoading {
		return &TransitionError{Op: "load", State: s.state}
	}
	s.exam = exam
	s.timeLeft = exam.Duration * 60
	if draft != nil {
		for q, opt := range draft.Answers {
			if s.validChoice(q, opt) {
				s.answers[q] = opt
			}
		}
		if draft.CurrentQuestionIndex >= 0 && draft.CurrentQuestionIndex < len(exam.Questions) {
			s.current = draft.CurrentQuestionIndex
		}
		// A saved zero means the clock already ran out.
		if draft.TimeLeft >= 0 && draft.TimeLeft <= s.timeLeft {
			s.timeLeft = draft.TimeLeft
		}
		log.Info().Uint("examID", s.examID).Int("answers", len(s.answers)).Int("timeLeft", s.timeLeft).Msg("Exam session: draft restored")
	}
	s.state = StateReady
	return nil
}

// Begin runs the camera check and starts the clock.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReady {
		defer s.mu.Unlock()
		return &TransitionError{Op: "begin", State: s.state}
	}
	s.state = StateCameraCheck
	s.mu.Unlock()

	var camErr error
	if s.opts.Camera == nil {
		camErr = errors.New("no camera available")
	} else {
		camErr = s.opts.Camera.Acquire(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if camErr == nil {
			s.releaseCamera()
		}
		return ErrClosed
	}
	if camErr != nil {
		if s.opts.RequireCamera {
			s.state = StateError
			s.err = ErrCameraRequired
			return ErrCameraRequired
		}
		log.Warn().Err(camErr).Uint("examID", s.examID).Msg("Exam session: camera unavailable, proctoring degraded")
		s.degraded = true
	} else {
		s.cameraHeld = true
	}

	s.endAt = s.opts.Clock.Now().Add(time.Duration(s.timeLeft) * time.Second)
	s.state = StateAnswering
	return nil
}

// Remaining is derived from the fixed end instant on every call.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

func (s *Session) remainingLocked() time.Duration {
	if s.endAt.IsZero() {
		return time.Duration(s.timeLeft) * time.Second
	}
	left := s.endAt.Sub(s.opts.Clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

// Tick submits automatically once the clock has run out.
func (s *Session) Tick(ctx context.Context) error {
	s.mu.Lock()
	expired := (s.state == StateAnswering || s.state == StateConfirming) && s.remainingLocked() == 0
	s.mu.Unlock()
	if !expired {
		return nil
	}
	log.Info().Uint("examID", s.examID).Msg("Exam session: time is up, submitting")
	_, err := s.Submit(ctx)
	return err
}

// SaveDraft writes the current answers, position and remaining time. Failures are logged only.
func (s *Session) SaveDraft(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateAnswering && s.state != StateConfirming {
		s.mu.Unlock()
		return
	}
	draft := Draft{
		Answers:              s.copyAnswers(),
		CurrentQuestionIndex: s.current,
		TimeLeft:             int(s.remainingLocked() / time.Second),
	}
	s.mu.Unlock()

	if err := s.drafts.Set(ctx, DraftKey(s.examID), draft); err != nil {
		log.Warn().Err(err).Uint("examID", s.examID).Msg("Exam session: autosave failed")
	}
}

// Run drives the countdown every second and autosave on its interval until ctx ends,
// Close is called, or the session finishes.
func (s *Session) Run(ctx context.Context) error {
	countdown := time.NewTicker(time.Second)
	defer countdown.Stop()
	autosave := time.NewTicker(s.opts.AutosaveInterval)
	defer autosave.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case <-countdown.C:
			err := s.Tick(ctx)
			if err != nil && !errors.Is(err, ErrSubmitInProgress) && !errors.Is(err, ErrInvalidState) {
				log.Error().Err(err).Uint("examID", s.examID).Msg("Exam session: automatic submit failed")
			}
		case <-autosave.C:
			s.SaveDraft(ctx)
		}
		if st := s.State(); st == StateDone || st == StateError {
			return nil
		}
	}
}

// Close stops Run and releases the camera. A submit already in flight still reaches the
// server but no longer changes the session.
func (s *Session) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.releaseCamera()
}

func (s *Session) releaseCamera() {
	if !s.cameraHeld {
		return
	}
	s.cameraHeld = false
	if err := s.opts.Camera.Release(); err != nil {
		log.Warn().Err(err).Uint("examID", s.examID).Msg("Exam session: failed to release camera")
	}
}

// Select records opt for question q, replacing any earlier choice.
func (s *Session) Select(q, opt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAnswering("select"); err != nil {
		return err
	}
	if !s.validChoice(q, opt) {
		return ErrInvalidChoice
	}
	s.answers[q] = opt
	return nil
}

func (s *Session) ClearChoice(q int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAnswering("clear choice"); err != nil {
		return err
	}
	delete(s.answers, q)
	return nil
}

// Next advances one question; on the last question it opens the submit confirmation.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAnswering("next"); err != nil {
		return err
	}
	if s.current < len(s.exam.Questions)-1 {
		s.current++
		return nil
	}
	s.state = StateConfirming
	return nil
}

func (s *Session) Prev() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAnswering("prev"); err != nil {
		return err
	}
	if s.current > 0 {
		s.current--
	}
	return nil
}

func (s *Session) CancelConfirm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConfirming {
		return &TransitionError{Op: "cancel confirm", State: s.state}
	}
	s.state = StateAnswering
	return nil
}

// Submit grades locally, reconciles with the server and, on success, clears the draft and
// finishes the session. Only one submit runs at a time; a failed submit returns to answering.
func (s *Session) Submit(ctx context.Context) (*Summary, error) {
	if !s.submitting.CompareAndSwap(false, true) {
		return nil, ErrSubmitInProgress
	}
	defer s.submitting.Store(false)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.state != StateAnswering && s.state != StateConfirming {
		st := s.state
		s.mu.Unlock()
		return nil, &TransitionError{Op: "submit", State: st}
	}
	exam := s.exam
	answers := s.answerInputs()
	elapsed := exam.Duration*60 - int(s.remainingLocked()/time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	s.state = StateSubmitting
	s.mu.Unlock()

	now := s.opts.Clock.Now().UTC()
	local := gradeLocally(exam, answers)
	attempt, err := s.reconcile(ctx, answers, now, elapsed, local)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if err != nil {
			return nil, err
		}
		return s.buildSummary(attempt, local, elapsed), nil
	}
	if err != nil {
		log.Error().Err(err).Uint("examID", s.examID).Msg("Exam session: submit failed")
		s.err = err
		s.state = StateAnswering
		return nil, err
	}

	if err := s.drafts.Clear(ctx, DraftKey(s.examID)); err != nil {
		log.Warn().Err(err).Uint("examID", s.examID).Msg("Exam session: failed to clear draft")
	}
	s.summary = s.buildSummary(attempt, local, elapsed)
	s.err = nil
	s.state = StateDone
	log.Info().Uint("examID", s.examID).Uint("attemptID", s.summary.AttemptID).Float64("score", s.summary.Score).Msg("Exam session: submitted")
	return s.summary, nil
}

// reconcile finalises the caller's in-progress attempt or creates one when none exists.
func (s *Session) reconcile(ctx context.Context, answers []dto.AnswerInput, now time.Time, elapsed int, local scoring.Result) (*dto.AttemptResponse, error) {
	attempts, err := s.api.ListExamAttempts(ctx, s.examID)
	if err != nil {
		return nil, fmt.Errorf("look up attempts: %w", err)
	}
	for _, a := range attempts {
		if a.State == model.StateInProgress {
			return s.api.SubmitAttempt(ctx, a.ID, dto.SubmitAttemptRequest{Answers: answers, EndTime: &now})
		}
	}
	if len(attempts) > 0 {
		return nil, ErrAlreadyAttempted
	}

	start := now.Add(-time.Duration(elapsed) * time.Second)
	timeTaken := scoring.MinutesBetween(start.Unix(), now.Unix())
	timeLeft := 0
	return s.api.CreateAttempt(ctx, dto.CreateAttemptRequest{
		ExamID:    s.examID,
		Answers:   answers,
		Status:    string(model.StateCompleted),
		StartTime: &start,
		EndTime:   &now,
		TimeTaken: &timeTaken,
		TimeLeft:  &timeLeft,
	})
}

func (s *Session) buildSummary(attempt *dto.AttemptResponse, local scoring.Result, elapsed int) *Summary {
	sum := &Summary{
		Score:          local.Score,
		TotalMarks:     local.TotalMarks,
		TotalQuestions: len(s.exam.Questions),
		Answered:       local.Answered,
		TimeTaken:      scoring.MinutesBetween(0, int64(elapsed)),
	}
	if attempt != nil {
		sum.AttemptID = attempt.ID
		if attempt.Score != nil {
			sum.Score = *attempt.Score
		}
		if attempt.TotalMarks > 0 {
			sum.TotalMarks = attempt.TotalMarks
		}
	}
	sum.Percentage = scoring.Percentage(sum.Score, sum.TotalMarks)
	sum.Passed = sum.Percentage >= scoring.PassPercentage
	return sum
}

func gradeLocally(exam *dto.ExamResponseDTO, answers []dto.AnswerInput) scoring.Result {
	questions := make([]scoring.Question, len(exam.Questions))
	for i, q := range exam.Questions {
		questions[i] = scoring.Question{Options: len(q.Options), CorrectOption: q.CorrectAnswer, Marks: q.Marks}
	}
	submitted := make([]scoring.Answer, len(answers))
	for i, a := range answers {
		submitted[i] = scoring.Answer{QuestionIndex: a.QuestionIndex, SelectedOption: a.SelectedOption}
	}
	return scoring.Score(questions, submitted)
}

func (s *Session) requireAnswering(op string) error {
	if s.closed {
		return ErrClosed
	}
	if s.state != StateAnswering {
		return &TransitionError{Op: op, State: s.state}
	}
	return nil
}

func (s *Session) validChoice(q, opt int) bool {
	return q >= 0 && q < len(s.exam.Questions) && opt >= 0 && opt < len(s.exam.Questions[q].Options)
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateError
	s.err = err
	return err
}

func (s *Session) copyAnswers() map[int]int {
	out := make(map[int]int, len(s.answers))
	for q, opt := range s.answers {
		out[q] = opt
	}
	return out
}

// answerInputs lists answers in question order.
func (s *Session) answerInputs() []dto.AnswerInput {
	out := make([]dto.AnswerInput, 0, len(s.answers))
	for q := range s.exam.Questions {
		if opt, ok := s.answers[q]; ok {
			out = append(out, dto.AnswerInput{QuestionIndex: q, SelectedOption: &opt})
		}
	}
	return out
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err is the last load or submit error.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Exam() *dto.ExamResponseDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exam
}

func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) Answers() map[int]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyAnswers()
}

// ProctoringDegraded reports that the exam is running without a camera.
func (s *Session) ProctoringDegraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Session) Summary() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}
