package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/examdesk/config"
	"github.com/lshigami/examdesk/internal/controller/admin"
	"github.com/lshigami/examdesk/internal/controller/user"
	"github.com/lshigami/examdesk/internal/dto"
	"github.com/lshigami/examdesk/internal/model"
	"github.com/lshigami/examdesk/internal/realtime"
	"github.com/lshigami/examdesk/internal/service"
)

type stubValidator map[string]service.Actor

func (s stubValidator) ValidateToken(token string) (service.Actor, error) {
	if actor, ok := s[token]; ok {
		return actor, nil
	}
	return service.Actor{}, fmt.Errorf("Invalid or expired token: %w", service.ErrUnauthenticated)
}

// stubAttempts overrides only the calls these tests make; anything else panics on the nil interface.
type stubAttempts struct {
	service.AttemptService
	active    map[uint]bool // examID -> already started
	submitted map[uint]bool
	lastSave  dto.SaveProgressRequest
}

func (s *stubAttempts) Start(_ context.Context, actor service.Actor, examID uint) (*dto.AttemptResponse, bool, error) {
	if examID == 404 {
		return nil, false, fmt.Errorf("Exam not available: %w", service.ErrUnavailable)
	}
	created := !s.active[examID]
	s.active[examID] = true
	return &dto.AttemptResponse{ID: examID * 10, UserID: actor.UserID, State: model.StateInProgress, Status: "in_progress"}, created, nil
}

func (s *stubAttempts) SaveProgress(_ context.Context, _ service.Actor, id uint, req dto.SaveProgressRequest) (*dto.AttemptResponse, error) {
	s.lastSave = req
	return &dto.AttemptResponse{ID: id, LastSavedIndex: req.CurrentIndex}, nil
}

func (s *stubAttempts) Submit(_ context.Context, _ service.Actor, id uint, req dto.SubmitAttemptRequest) (*dto.AttemptResponse, error) {
	if s.submitted[id] {
		return nil, fmt.Errorf("Attempt already submitted: %w", service.ErrInvalidState)
	}
	s.submitted[id] = true
	return &dto.AttemptResponse{ID: id, State: model.StateCompleted, Status: "Pass"}, nil
}

func (s *stubAttempts) Get(_ context.Context, actor service.Actor, id uint) (*dto.AttemptDetailResponse, error) {
	if actor.UserID != 1 && !actor.IsAdmin() {
		return nil, fmt.Errorf("Not authorized to view this attempt: %w", service.ErrForbidden)
	}
	return nil, fmt.Errorf("Attempt not found: %w", service.ErrNotFound)
}

func (s *stubAttempts) UpsertAssignmentStatus(_ context.Context, _ service.Actor, req dto.AssignmentStatusRequest) (*dto.AssignmentStatusResponse, error) {
	return &dto.AssignmentStatusResponse{Success: true, Attempt: dto.AttemptResponse{Status: req.Status}}, nil
}

type stubResults struct {
	service.ResultsService
}

func (stubResults) ExportExamResults(_ context.Context, examID uint) ([]byte, string, error) {
	if examID != 10 {
		return nil, "", fmt.Errorf("Exam not found: %w", service.ErrNotFound)
	}
	return []byte("PK"), "exam-10-results.xlsx", nil
}

type stubUsers struct {
	service.UserService
}

func (stubUsers) ListUsers(context.Context) ([]dto.UserResponse, error) {
	return nil, errors.New("db down")
}

func (stubUsers) EmailExists(_ context.Context, email string) (bool, error) {
	return email == "asha@example.com", nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubAttempts) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if err := dto.RegisterValidators(); err != nil {
		t.Fatalf("RegisterValidators: %v", err)
	}

	attempts := &stubAttempts{active: map[uint]bool{}, submitted: map[uint]bool{}}
	users := stubUsers{}
	r := gin.New()
	Register(r, stubValidator{
		"student": {UserID: 1, Role: model.RoleStudent},
		"other":   {UserID: 2, Role: model.RoleStudent},
		"admin":   {UserID: 9, Role: model.RoleAdmin},
	}, Handlers{
		Attempts:   user.NewAttemptController(attempts),
		Exams:      user.NewExamController(nil),
		Auth:       user.NewAuthController(nil, users),
		AdminExams: admin.NewAdminExamController(nil, stubResults{}, realtime.NewHub(), &config.Config{}),
		AdminUsers: admin.NewAdminUserController(users),
	})
	return r, attempts
}

func do(r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	if w := do(r, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStartReturnsCreatedThenOK(t *testing.T) {
	r, _ := newTestRouter(t)
	body := dto.StartAttemptRequest{ExamID: 7}

	if w := do(r, http.MethodPost, "/api/attempts/start", "student", body); w.Code != http.StatusCreated {
		t.Fatalf("first start = %d, want 201: %s", w.Code, w.Body.String())
	}
	w := do(r, http.MethodPost, "/api/attempts/start", "student", body)
	if w.Code != http.StatusOK {
		t.Fatalf("resume = %d, want 200", w.Code)
	}
	var resp dto.AttemptResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != 70 || resp.Status != "in_progress" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestStartRequiresTokenAndExam(t *testing.T) {
	r, _ := newTestRouter(t)

	if w := do(r, http.MethodPost, "/api/attempts/start", "", dto.StartAttemptRequest{ExamID: 7}); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/attempts/start", "student", map[string]int{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing exam_id = %d", w.Code)
	}
	w := do(r, http.MethodPost, "/api/attempts/start", "student", dto.StartAttemptRequest{ExamID: 404})
	if w.Code != http.StatusBadRequest || decodeError(t, w).Message != "Exam not available: unavailable" {
		t.Fatalf("unavailable exam = %d %s", w.Code, w.Body.String())
	}
}

func TestSubmitTwiceIsBadRequest(t *testing.T) {
	r, _ := newTestRouter(t)

	if w := do(r, http.MethodPost, "/api/attempts/5/submit", "student", nil); w.Code != http.StatusOK {
		t.Fatalf("submit without body = %d: %s", w.Code, w.Body.String())
	}
	w := do(r, http.MethodPost, "/api/attempts/5/submit", "student", dto.SubmitAttemptRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("second submit = %d, want 400", w.Code)
	}
}

func TestSaveProgressBindsBody(t *testing.T) {
	r, attempts := newTestRouter(t)
	opt := 2
	body := dto.SaveProgressRequest{
		Answers:      []dto.AnswerInput{{QuestionIndex: 0, SelectedOption: &opt}},
		CurrentIndex: 3,
	}
	if w := do(r, http.MethodPost, "/api/attempts/5/progress", "student", body); w.Code != http.StatusOK {
		t.Fatalf("save = %d: %s", w.Code, w.Body.String())
	}
	if attempts.lastSave.CurrentIndex != 3 || len(attempts.lastSave.Answers) != 1 {
		t.Fatalf("service saw %+v", attempts.lastSave)
	}

	bad := map[string]interface{}{"answers": []map[string]int{{"question_index": -1}}}
	if w := do(r, http.MethodPost, "/api/attempts/5/progress", "student", bad); w.Code != http.StatusBadRequest {
		t.Fatalf("negative index = %d, want 400", w.Code)
	}
	negative := map[string]interface{}{"answers": []map[string]int{{"question_index": 0, "selected_option": -1}}}
	if w := do(r, http.MethodPost, "/api/attempts/5/progress", "student", negative); w.Code != http.StatusOK {
		t.Fatalf("negative option = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := attempts.lastSave.Answers[0].SelectedOption; got == nil || *got != -1 {
		t.Fatalf("negative option reached service as %v", got)
	}
	if w := do(r, http.MethodPost, "/api/attempts/abc/progress", "student", body); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d, want 400", w.Code)
	}
}

func TestGetAttemptErrorMapping(t *testing.T) {
	r, _ := newTestRouter(t)
	if w := do(r, http.MethodGet, "/api/attempts/3", "other", nil); w.Code != http.StatusForbidden {
		t.Fatalf("other user = %d, want 403", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/attempts/3", "student", nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing = %d, want 404", w.Code)
	}
}

func TestAssignmentStatusValidation(t *testing.T) {
	r, _ := newTestRouter(t)
	req := dto.AssignmentStatusRequest{AssignmentID: "hw-1", SubjectID: "bio", Status: "Pass"}
	if w := do(r, http.MethodPost, "/api/attempts/assignment-status", "student", req); w.Code != http.StatusOK {
		t.Fatalf("valid status = %d: %s", w.Code, w.Body.String())
	}
	req.Status = "graded"
	if w := do(r, http.MethodPost, "/api/attempts/assignment-status", "student", req); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status = %d, want 400", w.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	if w := do(r, http.MethodGet, "/api/admin/users", "student", nil); w.Code != http.StatusForbidden {
		t.Fatalf("student on admin route = %d", w.Code)
	}
	w := do(r, http.MethodGet, "/api/admin/users", "admin", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("failing list = %d, want 500", w.Code)
	}
	if resp := decodeError(t, w); resp.Message != "Failed to list users" || len(resp.Details) != 1 {
		t.Fatalf("error body = %+v", resp)
	}

	w = do(r, http.MethodGet, "/api/admin/exams/10/results/export", "admin", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="exam-10-results.xlsx"` {
		t.Fatalf("Content-Disposition = %q", got)
	}
	if w := do(r, http.MethodGet, "/api/admin/exams/11/results/export", "admin", nil); w.Code != http.StatusNotFound {
		t.Fatalf("export missing exam = %d", w.Code)
	}
}

func TestCheckEmailIsPublic(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/api/users/check/asha@example.com", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp dto.EmailCheckResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || !resp.Exists {
		t.Fatalf("resp = %+v, %v", resp, err)
	}
}
