package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lshigami/examdesk/internal/dto"
)

func TestClientSendsTokenAndDecodes(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody dto.SubmitAttemptRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth, gotPath = r.Header.Get("Authorization"), r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		score := 4.0
		_ = json.NewEncoder(w).Encode(dto.AttemptResponse{ID: 12, Status: "Pass", Score: &score})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok")
	opt := 1
	resp, err := c.SubmitAttempt(context.Background(), 12, dto.SubmitAttemptRequest{
		Answers: []dto.AnswerInput{{QuestionIndex: 0, SelectedOption: &opt}},
	})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if gotAuth != "Bearer tok" || gotPath != "/api/attempts/12/submit" {
		t.Fatalf("auth=%q path=%q", gotAuth, gotPath)
	}
	if len(gotBody.Answers) != 1 || *gotBody.Answers[0].SelectedOption != 1 {
		t.Fatalf("server received %+v", gotBody)
	}
	if resp.ID != 12 || *resp.Score != 4 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestClientDecodesErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Message: "Attempt already submitted"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, "tok").SubmitAttempt(context.Background(), 3, dto.SubmitAttemptRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "Attempt already submitted" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestLoginKeepsToken(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path+" "+r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/auth/login":
			_ = json.NewEncoder(w).Encode(dto.AuthResponse{Token: "fresh"})
		case "/api/attempts/exam/10":
			_ = json.NewEncoder(w).Encode([]dto.AttemptResponse{})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if _, err := c.Login(context.Background(), "asha@example.com", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	attempts, err := c.ListExamAttempts(context.Background(), 10)
	if err != nil || len(attempts) != 0 {
		t.Fatalf("ListExamAttempts = %v, %v", attempts, err)
	}
	if calls[1] != "GET /api/attempts/exam/10 Bearer fresh" {
		t.Fatalf("calls = %v", calls)
	}
}
