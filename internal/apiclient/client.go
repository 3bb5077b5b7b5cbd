// Package apiclient talks to the exam API over JSON/HTTP on behalf of an exam-taking client.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lshigami/examdesk/internal/dto"
)

// APIError is a non-2xx response decoded from dto.ErrorResponse.
type APIError struct {
	StatusCode int
	Message    string
	Details    []string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New returns a client for the server at baseURL (without the /api prefix).
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*dto.AuthResponse, error) {
	var out dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", dto.LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	c.Token = out.Token
	return &out, nil
}

func (c *Client) GetExam(ctx context.Context, examID uint) (*dto.ExamResponseDTO, error) {
	var out dto.ExamResponseDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/exams/%d", examID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListExamAttempts returns the caller's attempts on an exam.
func (c *Client) ListExamAttempts(ctx context.Context, examID uint) ([]dto.AttemptResponse, error) {
	var out []dto.AttemptResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/attempts/exam/%d", examID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StartAttempt(ctx context.Context, examID uint) (*dto.AttemptResponse, error) {
	var out dto.AttemptResponse
	if err := c.do(ctx, http.MethodPost, "/api/attempts/start", dto.StartAttemptRequest{ExamID: examID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SaveProgress(ctx context.Context, attemptID uint, req dto.SaveProgressRequest) (*dto.AttemptResponse, error) {
	var out dto.AttemptResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/attempts/%d/progress", attemptID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitAttempt(ctx context.Context, attemptID uint, req dto.SubmitAttemptRequest) (*dto.AttemptResponse, error) {
	var out dto.AttemptResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/attempts/%d/submit", attemptID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateAttempt(ctx context.Context, req dto.CreateAttemptRequest) (*dto.AttemptResponse, error) {
	var out dto.AttemptResponse
	if err := c.do(ctx, http.MethodPost, "/api/attempts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload dto.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Message
			apiErr.Details = payload.Details
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
