package examsession

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lshigami/examdesk/internal/dto"
	"github.com/lshigami/examdesk/internal/model"
)

func startSession(t *testing.T, api *fakeAPI, drafts DraftStore, clock *fakeClock) *Session {
	t.Helper()
	s := New(10, api, drafts, Options{Clock: clock, Camera: &fakeCamera{}})
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Begin(context.Background()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return s
}

func TestLoadRejectsInactiveExam(t *testing.T) {
	exam := sampleExam()
	exam.IsActive = false
	s := New(10, &fakeAPI{exam: exam}, nil, Options{})

	err := s.Load(context.Background())
	if !errors.Is(err, ErrExamUnavailable) {
		t.Fatalf("err = %v, want ErrExamUnavailable", err)
	}
	if s.State() != StateError {
		t.Fatalf("state = %s, want error", s.State())
	}
}

func TestLoadFailure(t *testing.T) {
	s := New(10, &fakeAPI{examErr: errOffline}, nil, Options{})
	if err := s.Load(context.Background()); !errors.Is(err, errOffline) {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(s.Err(), errOffline) {
		t.Fatalf("Err() = %v", s.Err())
	}
}

func TestLoadStartsFullClock(t *testing.T) {
	s := New(10, &fakeAPI{exam: sampleExam()}, nil, Options{})
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateReady {
		t.Fatalf("state = %s", s.State())
	}
	if got := s.Remaining(); got != 30*time.Minute {
		t.Fatalf("remaining = %v, want 30m", got)
	}
}

func TestCameraDegradedWithoutRequirement(t *testing.T) {
	s := New(10, &fakeAPI{exam: sampleExam()}, nil, Options{Camera: &fakeCamera{err: errors.New("permission denied")}})
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Begin(context.Background()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !s.ProctoringDegraded() {
		t.Fatal("expected degraded proctoring")
	}
	if s.State() != StateAnswering {
		t.Fatalf("state = %s", s.State())
	}
}

func TestCameraRequired(t *testing.T) {
	s := New(10, &fakeAPI{exam: sampleExam()}, nil, Options{RequireCamera: true})
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Begin(context.Background()); !errors.Is(err, ErrCameraRequired) {
		t.Fatalf("err = %v, want ErrCameraRequired", err)
	}
	if s.State() != StateError {
		t.Fatalf("state = %s", s.State())
	}
}

func TestCloseReleasesCamera(t *testing.T) {
	cam := &fakeCamera{}
	s := New(10, &fakeAPI{exam: sampleExam()}, nil, Options{Camera: cam})
	_ = s.Load(context.Background())
	_ = s.Begin(context.Background())

	s.Close()
	s.Close()
	if cam.released != 1 {
		t.Fatalf("released %d times, want 1", cam.released)
	}
	if err := s.Select(0, 0); !errors.Is(err, ErrClosed) {
		t.Fatalf("Select after close = %v", err)
	}
}

func TestNavigation(t *testing.T) {
	s := startSession(t, &fakeAPI{exam: sampleExam()}, nil, newFakeClock())

	if err := s.Prev(); err != nil || s.CurrentIndex() != 0 {
		t.Fatalf("Prev at first question: err=%v index=%d", err, s.CurrentIndex())
	}
	if err := s.Next(); err != nil || s.CurrentIndex() != 1 {
		t.Fatalf("Next: err=%v index=%d", err, s.CurrentIndex())
	}
	if err := s.Next(); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateConfirming {
		t.Fatalf("Next on last question: state = %s, want confirming", s.State())
	}
	if err := s.Select(0, 1); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Select while confirming = %v", err)
	}
	if err := s.CancelConfirm(); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateAnswering || s.CurrentIndex() != 1 {
		t.Fatalf("after cancel: state=%s index=%d", s.State(), s.CurrentIndex())
	}
}

func TestSelectValidatesChoice(t *testing.T) {
	s := startSession(t, &fakeAPI{exam: sampleExam()}, nil, newFakeClock())

	for _, tc := range []struct{ q, opt int }{{-1, 0}, {2, 0}, {0, 3}, {1, -1}} {
		if err := s.Select(tc.q, tc.opt); !errors.Is(err, ErrInvalidChoice) {
			t.Errorf("Select(%d, %d) = %v, want ErrInvalidChoice", tc.q, tc.opt, err)
		}
	}
	_ = s.Select(0, 2)
	_ = s.Select(0, 1)
	_ = s.Select(1, 1)
	_ = s.ClearChoice(1)
	got := s.Answers()
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("answers = %v, want map[0:1]", got)
	}
}

func TestDraftResume(t *testing.T) {
	drafts := NewMemoryDraftStore()
	clock := newFakeClock()
	s := startSession(t, &fakeAPI{exam: sampleExam()}, drafts, clock)
	_ = s.Select(0, 2)
	_ = s.Next()
	_ = s.Select(1, 1)
	clock.Advance(4*time.Minute + 30*time.Second)
	s.SaveDraft(context.Background())
	s.Close()

	resumed := New(10, &fakeAPI{exam: sampleExam()}, drafts, Options{Clock: clock})
	if err := resumed.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := resumed.Answers()
	if len(got) != 2 || got[0] != 2 || got[1] != 1 {
		t.Fatalf("answers = %v", got)
	}
	if resumed.CurrentIndex() != 1 {
		t.Fatalf("index = %d, want 1", resumed.CurrentIndex())
	}
	if got := resumed.Remaining(); got != 25*time.Minute+30*time.Second {
		t.Fatalf("remaining = %v, want 25m30s", got)
	}
}

func TestDraftResumeDropsStaleEntries(t *testing.T) {
	drafts := NewMemoryDraftStore()
	_ = drafts.Set(context.Background(), DraftKey(10), Draft{
		Answers:              map[int]int{0: 1, 5: 0, 1: 9},
		CurrentQuestionIndex: 7,
		TimeLeft:             -5,
	})

	s := New(10, &fakeAPI{exam: sampleExam()}, drafts, Options{})
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.Answers(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("answers = %v, want map[0:1]", got)
	}
	if s.CurrentIndex() != 0 {
		t.Fatalf("index = %d", s.CurrentIndex())
	}
	if s.Remaining() != 30*time.Minute {
		t.Fatalf("remaining = %v", s.Remaining())
	}
}

func TestDraftResumeCapsTimeAtDuration(t *testing.T) {
	drafts := NewMemoryDraftStore()
	_ = drafts.Set(context.Background(), DraftKey(10), Draft{Answers: map[int]int{}, TimeLeft: 4000})

	s := New(10, &fakeAPI{exam: sampleExam()}, drafts, Options{})
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Remaining() != 30*time.Minute {
		t.Fatalf("remaining = %v, want 30m", s.Remaining())
	}
}

func TestExpiredDraftStaysExpired(t *testing.T) {
	drafts := NewMemoryDraftStore()
	clock := newFakeClock()
	offline := &fakeAPI{exam: sampleExam(), submitErr: errOffline}
	s := startSession(t, offline, drafts, clock)
	_ = s.Select(0, 0)

	clock.Advance(31 * time.Minute)
	if err := s.Tick(context.Background()); !errors.Is(err, errOffline) {
		t.Fatalf("Tick offline = %v", err)
	}
	if s.State() != StateAnswering {
		t.Fatalf("state = %s", s.State())
	}
	s.SaveDraft(context.Background())
	s.Close()

	saved, _ := drafts.Get(context.Background(), DraftKey(10))
	if saved == nil || saved.TimeLeft != 0 {
		t.Fatalf("saved draft = %+v, want time_left 0", saved)
	}

	api := &fakeAPI{exam: sampleExam()}
	resumed := startSession(t, api, drafts, clock)
	if got := resumed.Remaining(); got != 0 {
		t.Fatalf("restored remaining = %v, want 0", got)
	}
	if got := resumed.Answers(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("answers = %v", got)
	}
	if err := resumed.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if api.creates.Load() != 1 || resumed.State() != StateDone {
		t.Fatalf("creates=%d state=%s", api.creates.Load(), resumed.State())
	}
}

func TestSubmitFinalisesInProgressAttempt(t *testing.T) {
	api := &fakeAPI{
		exam:     sampleExam(),
		attempts: []dto.AttemptResponse{{ID: 5, State: model.StateInProgress}},
	}
	drafts := NewMemoryDraftStore()
	clock := newFakeClock()
	s := startSession(t, api, drafts, clock)
	_ = s.Select(0, 0)
	s.SaveDraft(context.Background())
	clock.Advance(10 * time.Minute)

	sum, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if api.submits.Load() != 1 || api.creates.Load() != 0 {
		t.Fatalf("submits=%d creates=%d", api.submits.Load(), api.creates.Load())
	}
	if len(api.lastSubmit.Answers) != 1 || *api.lastSubmit.Answers[0].SelectedOption != 0 {
		t.Fatalf("submitted answers = %+v", api.lastSubmit.Answers)
	}
	if sum.AttemptID != 5 || sum.Score != 2 || sum.Percentage != 50 || !sum.Passed {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.TimeTaken != 10 || sum.Answered != 1 || sum.TotalQuestions != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if s.State() != StateDone {
		t.Fatalf("state = %s", s.State())
	}
	if d, _ := drafts.Get(context.Background(), DraftKey(10)); d != nil {
		t.Fatalf("draft not cleared: %+v", d)
	}
}

func TestSubmitCreatesAttemptWhenNoneExists(t *testing.T) {
	api := &fakeAPI{exam: sampleExam()}
	clock := newFakeClock()
	s := startSession(t, api, nil, clock)
	_ = s.Select(0, 1)
	_ = s.Select(1, 1)
	clock.Advance(12*time.Minute + 40*time.Second)

	sum, err := s.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	req := api.lastCreate
	if req == nil || api.creates.Load() != 1 {
		t.Fatal("expected one create")
	}
	if req.ExamID != 10 || req.Status != "completed" || *req.TimeTaken != 13 {
		t.Fatalf("create request = %+v", req)
	}
	if got := req.EndTime.Sub(*req.StartTime); got != 12*time.Minute+40*time.Second {
		t.Fatalf("start=%v end=%v", req.StartTime, req.EndTime)
	}
	if sum.AttemptID != 77 || sum.Score != 2 || sum.TotalMarks != 4 || !sum.Passed {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestSubmitBelowCutoffFails(t *testing.T) {
	api := &fakeAPI{exam: sampleExam()}
	s := startSession(t, api, nil, newFakeClock())
	_ = s.Select(0, 2)

	sum, err := s.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Score != 0 || sum.Passed {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestSubmitRejectsTerminalAttempt(t *testing.T) {
	api := &fakeAPI{
		exam:     sampleExam(),
		attempts: []dto.AttemptResponse{{ID: 5, State: model.StateCompleted}},
	}
	s := startSession(t, api, nil, newFakeClock())

	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrAlreadyAttempted) {
		t.Fatalf("err = %v, want ErrAlreadyAttempted", err)
	}
	if api.submits.Load() != 0 || api.creates.Load() != 0 {
		t.Fatal("no write expected")
	}
	if s.State() != StateAnswering {
		t.Fatalf("state = %s", s.State())
	}
}

func TestSubmitFailureReturnsToAnswering(t *testing.T) {
	api := &fakeAPI{exam: sampleExam(), submitErr: errOffline}
	drafts := NewMemoryDraftStore()
	s := startSession(t, api, drafts, newFakeClock())
	_ = s.Select(0, 0)
	s.SaveDraft(context.Background())

	if _, err := s.Submit(context.Background()); !errors.Is(err, errOffline) {
		t.Fatalf("err = %v", err)
	}
	if s.State() != StateAnswering || !errors.Is(s.Err(), errOffline) {
		t.Fatalf("state=%s err=%v", s.State(), s.Err())
	}
	if d, _ := drafts.Get(context.Background(), DraftKey(10)); d == nil {
		t.Fatal("draft must survive a failed submit")
	}
	if got := s.Answers(); got[0] != 0 {
		t.Fatalf("answers lost: %v", got)
	}
}

func TestSubmitRunsOnce(t *testing.T) {
	api := &fakeAPI{
		exam:     sampleExam(),
		attempts: []dto.AttemptResponse{{ID: 5, State: model.StateInProgress}},
		release:  make(chan struct{}),
		entered:  make(chan struct{}, 1),
	}
	clock := newFakeClock()
	s := startSession(t, api, nil, clock)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()
	<-api.entered

	clock.Advance(31 * time.Minute)
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick during submit = %v", err)
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrSubmitInProgress) {
		t.Fatalf("second Submit = %v, want ErrSubmitInProgress", err)
	}

	close(api.release)
	if err := <-done; err != nil {
		t.Fatalf("first Submit = %v", err)
	}
	if n := api.submits.Load(); n != 1 {
		t.Fatalf("submit calls = %d, want 1", n)
	}
	if s.State() != StateDone {
		t.Fatalf("state = %s", s.State())
	}
}

func TestTickSubmitsWhenTimeRunsOut(t *testing.T) {
	api := &fakeAPI{exam: sampleExam()}
	clock := newFakeClock()
	s := startSession(t, api, nil, clock)

	clock.Advance(29 * time.Minute)
	if err := s.Tick(context.Background()); err != nil || api.creates.Load() != 0 {
		t.Fatalf("early tick: err=%v creates=%d", err, api.creates.Load())
	}
	clock.Advance(2 * time.Minute)
	if s.Remaining() != 0 {
		t.Fatalf("remaining = %v", s.Remaining())
	}
	if err := s.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if api.creates.Load() != 1 || s.State() != StateDone {
		t.Fatalf("creates=%d state=%s", api.creates.Load(), s.State())
	}
	if got := s.Summary().TimeTaken; got != 30 {
		t.Fatalf("time taken = %d, want 30", got)
	}
}

func TestRunStopsOnClose(t *testing.T) {
	s := startSession(t, &fakeAPI{exam: sampleExam()}, nil, newFakeClock())
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	s.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
