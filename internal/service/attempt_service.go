package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/lshigami/examdesk/internal/dto"
	"github.com/lshigami/examdesk/internal/metrics"
	"github.com/lshigami/examdesk/internal/model"
	"github.com/lshigami/examdesk/internal/repository"
	"github.com/lshigami/examdesk/internal/scoring"
	"github.com/rs/zerolog/log"
)

// Live feed event types.
const (
	EventAttemptStarted   = "attempt_started"
	EventAttemptProgress  = "attempt_progress"
	EventAttemptSubmitted = "attempt_submitted"
	EventAttemptAbandoned = "attempt_abandoned"
	EventAttemptDeleted   = "attempt_deleted"
	EventAttemptImported  = "attempt_imported"
)

// AttemptNotifier receives attempt events for exams being watched live.
type AttemptNotifier interface {
	Publish(examID uint, eventType string, data interface{})
}

type AttemptService interface {
	Start(ctx context.Context, actor Actor, examID uint) (*dto.AttemptResponse, bool, error)
	SaveProgress(ctx context.Context, actor Actor, id uint, req dto.SaveProgressRequest) (*dto.AttemptResponse, error)
	Update(ctx context.Context, actor Actor, id uint, req dto.UpdateAttemptRequest) (*dto.AttemptResponse, error)
	Submit(ctx context.Context, actor Actor, id uint, req dto.SubmitAttemptRequest) (*dto.AttemptResponse, error)
	Abandon(ctx context.Context, actor Actor, id uint) (*dto.AttemptResponse, error)
	ListByUser(ctx context.Context, actor Actor, userID uint) ([]dto.AttemptResponse, error)
	ListByExam(ctx context.Context, actor Actor, examID uint) ([]dto.AttemptResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (*dto.AttemptDetailResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	UpsertAssignmentStatus(ctx context.Context, actor Actor, req dto.AssignmentStatusRequest) (*dto.AssignmentStatusResponse, error)
	ListAssignmentAttempts(ctx context.Context, actor Actor, subjectID string) ([]dto.AttemptResponse, error)
	Create(ctx context.Context, actor Actor, req dto.CreateAttemptRequest) (*dto.AttemptResponse, error)
}

type attemptService struct {
	attemptRepo repository.AttemptRepository
	examRepo    repository.ExamRepository
	userRepo    repository.UserRepository
	notifier    AttemptNotifier
	now         func() time.Time
}

func NewAttemptService(
	attemptRepo repository.AttemptRepository,
	examRepo repository.ExamRepository,
	userRepo repository.UserRepository,
	notifier AttemptNotifier,
) AttemptService {
	return &attemptService{
		attemptRepo: attemptRepo,
		examRepo:    examRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *attemptService) Start(ctx context.Context, actor Actor, examID uint) (*dto.AttemptResponse, bool, error) {
	now := s.now()
	exam, err := s.examRepo.FindByIDWithQuestions(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, errExamUnavailable
		}
		log.Error().Err(err).Uint("examID", examID).Msg("Start: failed to load exam")
		return nil, false, fmt.Errorf("failed to load exam %d: %w", examID, err)
	}
	if !exam.OpenAt(now) {
		return nil, false, errExamUnavailable
	}

	user, err := s.userRepo.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, errUserNotFound
		}
		return nil, false, fmt.Errorf("failed to load user %d: %w", actor.UserID, err)
	}

	timeLeft := exam.Duration * 60
	attempt := &model.Attempt{
		UserID:         user.ID,
		ExamID:         &exam.ID,
		State:          model.StateInProgress,
		StartTime:      now,
		TimeLeft:       &timeLeft,
		Answers:        []model.Answer{},
		StudentName:    user.Name,
		StudentEmail:   user.Email,
		ExamName:       exam.Title,
		TotalQuestions: len(exam.Questions),
		TotalMarks:     totalMarks(exam),
	}

	created, err := s.attemptRepo.CreateActive(ctx, attempt)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Err(err).Uint("examID", examID).Uint("userID", actor.UserID).Msg("Start: active attempt changed concurrently")
		return nil, false, errStartRace
	}
	if err != nil {
		log.Error().Err(err).Uint("examID", examID).Uint("userID", actor.UserID).Msg("Start: failed to create attempt")
		return nil, false, err
	}

	resp := toAttemptResponse(attempt)
	if created {
		metrics.AttemptTransitions.WithLabelValues("started").Inc()
		s.publish(attempt, EventAttemptStarted, resp)
		log.Info().Uint("attemptID", attempt.ID).Uint("examID", examID).Uint("userID", actor.UserID).Msg("Attempt started")
	} else {
		metrics.AttemptTransitions.WithLabelValues("resumed").Inc()
		log.Info().Uint("attemptID", attempt.ID).Uint("examID", examID).Msg("Resuming in-progress attempt")
	}
	return &resp, created, nil
}

func (s *attemptService) SaveProgress(ctx context.Context, actor Actor, id uint, req dto.SaveProgressRequest) (*dto.AttemptResponse, error) {
	attempt, err := s.loadActive(ctx, actor, id, "update this attempt")
	if err != nil {
		return nil, err
	}

	attempt.Answers = toModelAnswers(req.Answers)
	attempt.LastSavedIndex = req.CurrentIndex
	if req.TimeLeft != nil {
		attempt.TimeLeft = req.TimeLeft
	}
	return s.persistProgress(ctx, attempt)
}

func (s *attemptService) Update(ctx context.Context, actor Actor, id uint, req dto.UpdateAttemptRequest) (*dto.AttemptResponse, error) {
	attempt, err := s.loadActive(ctx, actor, id, "update this attempt")
	if err != nil {
		return nil, err
	}

	if req.Answers != nil {
		attempt.Answers = toModelAnswers(*req.Answers)
	}
	if req.LastSavedIndex != nil {
		attempt.LastSavedIndex = *req.LastSavedIndex
	}
	if req.TimeLeft != nil {
		attempt.TimeLeft = req.TimeLeft
	}
	return s.persistProgress(ctx, attempt)
}

func (s *attemptService) persistProgress(ctx context.Context, attempt *model.Attempt) (*dto.AttemptResponse, error) {
	attempt.AnsweredQuestions = countAnswered(attempt.Answers)
	if err := s.attemptRepo.SaveProgress(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrNotInProgress) {
			return nil, errNotInProgress
		}
		log.Error().Err(err).Uint("attemptID", attempt.ID).Msg("Failed to save attempt progress")
		return nil, err
	}
	metrics.AttemptTransitions.WithLabelValues("saved").Inc()

	resp := toAttemptResponse(attempt)
	s.publish(attempt, EventAttemptProgress, resp)
	return &resp, nil
}

func (s *attemptService) Submit(ctx context.Context, actor Actor, id uint, req dto.SubmitAttemptRequest) (*dto.AttemptResponse, error) {
	attempt, err := s.loadOwned(ctx, actor, id, "submit this attempt")
	if err != nil {
		return nil, err
	}
	if attempt.State.Terminal() {
		return nil, errAlreadySubmitted
	}

	end := s.now()
	if req.EndTime != nil {
		end = req.EndTime.UTC()
	}
	timeTaken := scoring.MinutesBetween(attempt.StartTime.Unix(), end.Unix())
	attempt.EndTime = &end
	attempt.TimeTaken = &timeTaken
	attempt.State = model.StateCompleted

	answers := attempt.Answers
	if req.Answers != nil {
		answers = toModelAnswers(req.Answers)
	}

	exam, err := s.resolveExam(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	if exam != nil {
		gradeAttempt(attempt, exam, answers)
	} else {
		log.Warn().Uint("attemptID", id).Msg("Submit: exam no longer exists, completing without score")
		attempt.Answers = answers
		attempt.Score = nil
		attempt.Outcome = nil
		attempt.AnsweredQuestions = countAnswered(answers)
	}

	if err := s.attemptRepo.Finalize(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrNotInProgress) {
			return nil, errAlreadySubmitted
		}
		log.Error().Err(err).Uint("attemptID", id).Msg("Submit: failed to finalize attempt")
		return nil, err
	}

	metrics.AttemptTransitions.WithLabelValues("submitted").Inc()
	metrics.AttemptOutcomes.WithLabelValues(outcomeLabel(attempt.Outcome)).Inc()
	resp := toAttemptResponse(attempt)
	s.publish(attempt, EventAttemptSubmitted, resp)
	log.Info().Uint("attemptID", id).Str("status", resp.Status).Int("timeTaken", timeTaken).Msg("Attempt submitted")
	return &resp, nil
}

func (s *attemptService) Abandon(ctx context.Context, actor Actor, id uint) (*dto.AttemptResponse, error) {
	attempt, err := s.loadActive(ctx, actor, id, "abandon this attempt")
	if err != nil {
		return nil, err
	}

	end := s.now()
	attempt.State = model.StateAbandoned
	attempt.Outcome = nil
	attempt.EndTime = &end
	if err := s.attemptRepo.Finalize(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrNotInProgress) {
			return nil, errNotInProgress
		}
		log.Error().Err(err).Uint("attemptID", id).Msg("Abandon: failed to update attempt")
		return nil, err
	}

	metrics.AttemptTransitions.WithLabelValues("abandoned").Inc()
	resp := toAttemptResponse(attempt)
	s.publish(attempt, EventAttemptAbandoned, resp)
	return &resp, nil
}

func (s *attemptService) ListByUser(ctx context.Context, actor Actor, userID uint) ([]dto.AttemptResponse, error) {
	if !actor.canAccess(userID) {
		return nil, forbidden("view these attempts")
	}
	attempts, err := s.attemptRepo.FindByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Uint("userID", userID).Msg("Failed to list user attempts")
		return nil, err
	}
	return toAttemptResponses(attempts), nil
}

func (s *attemptService) ListByExam(ctx context.Context, actor Actor, examID uint) ([]dto.AttemptResponse, error) {
	var userFilter *uint
	if !actor.IsAdmin() {
		uid := actor.UserID
		userFilter = &uid
	}
	attempts, err := s.attemptRepo.FindByExam(ctx, examID, userFilter)
	if err != nil {
		log.Error().Err(err).Uint("examID", examID).Msg("Failed to list exam attempts")
		return nil, err
	}
	return toAttemptResponses(attempts), nil
}

func (s *attemptService) Get(ctx context.Context, actor Actor, id uint) (*dto.AttemptDetailResponse, error) {
	attempt, err := s.attemptRepo.FindByIDWithExam(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt %d: %w", id, err)
	}
	if !actor.canAccess(attempt.UserID) {
		return nil, forbidden("view this attempt")
	}

	resp := &dto.AttemptDetailResponse{AttemptResponse: toAttemptResponse(attempt)}
	if attempt.Exam != nil {
		examResp := toExamResponse(attempt.Exam)
		resp.Exam = &examResp
	}
	return resp, nil
}

func (s *attemptService) Delete(ctx context.Context, actor Actor, id uint) error {
	if !actor.IsAdmin() {
		return forbidden("delete attempts")
	}
	attempt, err := s.attemptRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errAttemptNotFound
		}
		return fmt.Errorf("failed to load attempt %d: %w", id, err)
	}
	if err := s.attemptRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errAttemptNotFound
		}
		log.Error().Err(err).Uint("attemptID", id).Msg("Failed to delete attempt")
		return err
	}
	log.Info().Uint("attemptID", id).Uint("adminID", actor.UserID).Msg("Attempt deleted")
	s.publish(attempt, EventAttemptDeleted, map[string]uint{"id": id})
	return nil
}

func (s *attemptService) UpsertAssignmentStatus(ctx context.Context, actor Actor, req dto.AssignmentStatusRequest) (*dto.AssignmentStatusResponse, error) {
	state, outcome, err := parseStatus(req.Status)
	if err != nil {
		return nil, err
	}

	now := s.now()
	attempt := &model.Attempt{
		UserID:       actor.UserID,
		AssignmentID: &req.AssignmentID,
		SubjectID:    &req.SubjectID,
		State:        state,
		Outcome:      outcome,
		StartTime:    now,
	}
	if state.Terminal() {
		attempt.EndTime = &now
	}

	stored, err := s.attemptRepo.UpsertAssignment(ctx, attempt)
	if err != nil {
		log.Error().Err(err).Str("assignmentID", req.AssignmentID).Str("subjectID", req.SubjectID).Msg("Failed to upsert assignment status")
		return nil, err
	}
	return &dto.AssignmentStatusResponse{Success: true, Attempt: toAttemptResponse(stored)}, nil
}

func (s *attemptService) ListAssignmentAttempts(ctx context.Context, actor Actor, subjectID string) ([]dto.AttemptResponse, error) {
	attempts, err := s.attemptRepo.FindAssignmentAttempts(ctx, actor.UserID, subjectID)
	if err != nil {
		log.Error().Err(err).Str("subjectID", subjectID).Msg("Failed to list assignment attempts")
		return nil, err
	}
	return toAttemptResponses(attempts), nil
}

func (s *attemptService) Create(ctx context.Context, actor Actor, req dto.CreateAttemptRequest) (*dto.AttemptResponse, error) {
	userID := req.UserID
	if userID == 0 {
		userID = actor.UserID
	}
	if userID != actor.UserID && !actor.IsAdmin() {
		return nil, forbidden("create attempts for another user")
	}

	exam, err := s.examRepo.FindByIDWithQuestions(ctx, req.ExamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errExamNotFound
		}
		return nil, fmt.Errorf("failed to load exam %d: %w", req.ExamID, err)
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	status := req.Status
	if status == "" {
		status = string(model.StateCompleted)
	}
	state, _, err := parseStatus(status)
	if err != nil {
		return nil, err
	}

	now := s.now()
	start := now
	if req.StartTime != nil {
		start = req.StartTime.UTC()
	}
	attempt := &model.Attempt{
		UserID:         user.ID,
		ExamID:         &exam.ID,
		State:          state,
		StartTime:      start,
		TimeLeft:       req.TimeLeft,
		StudentName:    user.Name,
		StudentEmail:   user.Email,
		ExamName:       exam.Title,
		TotalQuestions: len(exam.Questions),
		TotalMarks:     totalMarks(exam),
	}

	answers := resolveAnswers(req.Answers, exam.Questions)
	if state.Terminal() {
		end := now
		if req.EndTime != nil {
			end = req.EndTime.UTC()
		}
		attempt.EndTime = &end
		timeTaken := scoring.MinutesBetween(start.Unix(), end.Unix())
		if req.TimeTaken != nil {
			timeTaken = *req.TimeTaken
		}
		attempt.TimeTaken = &timeTaken
	}
	if state == model.StateCompleted {
		gradeAttempt(attempt, exam, answers)
	} else {
		attempt.Answers = answers
		attempt.AnsweredQuestions = countAnswered(answers)
	}

	if err := s.attemptRepo.CreateUnique(ctx, attempt); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, errAlreadyAttempted
		case errors.Is(err, repository.ErrNotFound):
			return nil, errUserNotFound
		}
		log.Error().Err(err).Uint("examID", exam.ID).Uint("userID", user.ID).Msg("Failed to import attempt")
		return nil, err
	}

	metrics.AttemptTransitions.WithLabelValues("imported").Inc()
	resp := toAttemptResponse(attempt)
	s.publish(attempt, EventAttemptImported, resp)
	return &resp, nil
}

// loadOwned fetches an attempt the actor owns.
func (s *attemptService) loadOwned(ctx context.Context, actor Actor, id uint, action string) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errAttemptNotFound
		}
		log.Error().Err(err).Uint("attemptID", id).Msg("Failed to load attempt")
		return nil, fmt.Errorf("failed to load attempt %d: %w", id, err)
	}
	if !attempt.OwnedBy(actor.UserID) {
		return nil, forbidden(action)
	}
	return attempt, nil
}

// loadActive is loadOwned plus the in_progress guard.
func (s *attemptService) loadActive(ctx context.Context, actor Actor, id uint, action string) (*model.Attempt, error) {
	attempt, err := s.loadOwned(ctx, actor, id, action)
	if err != nil {
		return nil, err
	}
	if attempt.State.Terminal() {
		return nil, errNotInProgress
	}
	return attempt, nil
}

// resolveExam returns nil without error when the exam is gone.
func (s *attemptService) resolveExam(ctx context.Context, examID *uint) (*model.Exam, error) {
	if examID == nil {
		return nil, nil
	}
	exam, err := s.examRepo.FindByIDWithQuestions(ctx, *examID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load exam %d: %w", *examID, err)
	}
	return exam, nil
}

func (s *attemptService) publish(attempt *model.Attempt, eventType string, data interface{}) {
	if s.notifier == nil || attempt.ExamID == nil {
		return
	}
	s.notifier.Publish(*attempt.ExamID, eventType, data)
}

// parseStatus maps a write-side status value onto state and outcome.
func parseStatus(status string) (model.AttemptState, *model.Outcome, error) {
	switch status {
	case "in_progress":
		return model.StateInProgress, nil, nil
	case "completed", "attempted":
		return model.StateCompleted, nil, nil
	case "abandoned":
		return model.StateAbandoned, nil, nil
	case "Pass":
		o := model.OutcomePass
		return model.StateCompleted, &o, nil
	case "Fail":
		o := model.OutcomeFail
		return model.StateCompleted, &o, nil
	}
	return "", nil, newError(ErrValidation, fmt.Sprintf("Invalid status %q", status))
}

func gradeAttempt(attempt *model.Attempt, exam *model.Exam, answers []model.Answer) {
	questions := make([]scoring.Question, len(exam.Questions))
	for i, q := range exam.Questions {
		questions[i] = scoring.Question{Options: len(q.Options), CorrectOption: q.CorrectAnswer, Marks: q.Marks}
	}
	submitted := make([]scoring.Answer, len(answers))
	for i, a := range answers {
		submitted[i] = scoring.Answer{QuestionIndex: a.QuestionIndex, SelectedOption: a.SelectedOption}
	}

	res := scoring.Score(questions, submitted)
	attempt.Answers = make([]model.Answer, len(res.Answers))
	for i, g := range res.Answers {
		attempt.Answers[i] = model.Answer{
			QuestionIndex:  g.QuestionIndex,
			SelectedOption: g.SelectedOption,
			IsCorrect:      g.IsCorrect,
			MarksObtained:  g.MarksObtained,
		}
	}

	score := res.Score
	attempt.Score = &score
	attempt.TotalMarksObtained = res.Score
	attempt.TotalMarks = res.TotalMarks
	attempt.TotalQuestions = len(exam.Questions)
	attempt.AnsweredQuestions = res.Answered

	outcome := model.OutcomeFail
	if scoring.Passed(res.Score, exam.PassingMarks) {
		outcome = model.OutcomePass
	}
	attempt.Outcome = &outcome
}

func toModelAnswers(inputs []dto.AnswerInput) []model.Answer {
	answers := make([]model.Answer, 0, len(inputs))
	for _, in := range inputs {
		answers = append(answers, model.Answer{QuestionIndex: in.QuestionIndex, SelectedOption: in.SelectedOption})
	}
	return answers
}

// resolveAnswers converts imported answers to option indexes. Text answers are matched
// case-insensitively against the question's options; anything unmatched stays unanswered.
func resolveAnswers(inputs []dto.AnswerInput, questions []model.Question) []model.Answer {
	answers := toModelAnswers(inputs)
	for i, in := range inputs {
		if in.SelectedOption != nil || in.SelectedAnswer == nil {
			continue
		}
		if in.QuestionIndex < 0 || in.QuestionIndex >= len(questions) {
			continue
		}
		answers[i].SelectedOption = optionIndex(questions[in.QuestionIndex].Options, *in.SelectedAnswer)
	}
	return answers
}

func optionIndex(options []string, text string) *int {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	for i, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), text) {
			idx := i
			return &idx
		}
	}
	return nil
}

func countAnswered(answers []model.Answer) int {
	seen := make(map[int]bool, len(answers))
	for _, a := range answers {
		if a.SelectedOption != nil {
			seen[a.QuestionIndex] = true
		}
	}
	return len(seen)
}

func totalMarks(exam *model.Exam) float64 {
	var total float64
	for _, q := range exam.Questions {
		total += q.Marks
	}
	return total
}

func outcomeLabel(o *model.Outcome) string {
	if o == nil {
		return "ungraded"
	}
	return string(*o)
}

func toAttemptResponse(a *model.Attempt) dto.AttemptResponse {
	var resp dto.AttemptResponse
	if err := copier.Copy(&resp, a); err != nil {
		log.Warn().Err(err).Uint("attemptID", a.ID).Msg("Failed to copy attempt to response")
	}
	resp.Status = a.LegacyStatus()
	if resp.Answers == nil {
		resp.Answers = []dto.AnswerResponse{}
	}
	return resp
}

func toAttemptResponses(attempts []model.Attempt) []dto.AttemptResponse {
	out := make([]dto.AttemptResponse, 0, len(attempts))
	for i := range attempts {
		out = append(out, toAttemptResponse(&attempts[i]))
	}
	return out
}
