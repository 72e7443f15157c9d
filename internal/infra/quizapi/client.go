package quizapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"ipzy-gateway/internal/domain"
)

// Client talks to the quiz service. Every response is wrapped in {success, data, error}.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for upstream diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends the request and decodes data into out. fallback is the message used when the
// upstream gives none.
func (c *Client) do(ctx context.Context, method, path string, body any, out any, fallback string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range ForwardedCookies(ctx) {
		req.AddCookie(cookie)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 400 {
		apiErr := &domain.APIError{Status: resp.StatusCode, Message: fallback}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			if env.Error.Message != "" {
				apiErr.Message = env.Error.Message
			}
		}
		c.logger.Debug("quiz service error", zap.String("method", method), zap.String("path", path), zap.Error(apiErr))
		return apiErr
	}
	if decodeErr != nil {
		return &domain.APIError{Status: resp.StatusCode, Message: fallback + ": malformed response"}
	}
	if env.Error != nil || !env.Success {
		apiErr := &domain.APIError{Status: resp.StatusCode, Message: fallback}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &domain.APIError{Status: resp.StatusCode, Message: fallback + ": empty data"}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &domain.APIError{Message: fallback + ": " + err.Error()}
	}
	return nil
}

// ListQuizzes returns active quizzes ordered by display order.
func (c *Client) ListQuizzes(ctx context.Context) ([]domain.QuizMetadata, error) {
	var quizzes []domain.QuizMetadata
	if err := c.do(ctx, http.MethodGet, "/api/quizzes", nil, &quizzes, "failed to load quizzes"); err != nil {
		return nil, err
	}
	sort.SliceStable(quizzes, func(i, j int) bool { return quizzes[i].DisplayOrder < quizzes[j].DisplayOrder })
	return quizzes, nil
}

type apiOption struct {
	OptionID     int64   `json:"optionId"`
	Text         string  `json:"text"`
	Value        string  `json:"value"`
	ImageURL     *string `json:"imageUrl"`
	DisplayOrder int     `json:"displayOrder"`
}

type apiQuestion struct {
	QuestionID   int64       `json:"questionId"`
	Text         string      `json:"text"`
	Type         string      `json:"type"`
	Required     bool        `json:"required"`
	DisplayOrder int         `json:"displayOrder"`
	Options      []apiOption `json:"options"`
}

// FetchQuestions returns the ordered question set of a quiz.
func (c *Client) FetchQuestions(ctx context.Context, quizID int64) ([]domain.QuizQuestion, error) {
	var raw []apiQuestion
	path := fmt.Sprintf("/api/quizzes/%d/questions", quizID)
	if err := c.do(ctx, http.MethodGet, path, nil, &raw, "failed to load questions"); err != nil {
		return nil, err
	}
	return toQuestions(raw), nil
}

func toQuestions(raw []apiQuestion) []domain.QuizQuestion {
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].DisplayOrder < raw[j].DisplayOrder })
	out := make([]domain.QuizQuestion, 0, len(raw))
	for _, q := range raw {
		opts := append([]apiOption(nil), q.Options...)
		sort.SliceStable(opts, func(i, j int) bool { return opts[i].DisplayOrder < opts[j].DisplayOrder })
		mapped := domain.QuizQuestion{ID: q.QuestionID, Prompt: q.Text, Options: make([]domain.QuizOption, 0, len(opts))}
		for _, o := range opts {
			mapped.Options = append(mapped.Options, domain.QuizOption{Value: o.Value, Label: o.Text})
		}
		out = append(out, mapped)
	}
	return out
}

func (c *Client) StartSession(ctx context.Context, quizID int64) (domain.SessionHandle, error) {
	var h domain.SessionHandle
	path := fmt.Sprintf("/api/quizzes/%d/sessions", quizID)
	err := c.do(ctx, http.MethodPost, path, nil, &h, "failed to start session")
	return h, err
}

func (c *Client) SubmitAnswer(ctx context.Context, sessionID, questionID int64, values []string) (domain.AnswerAck, error) {
	var ack domain.AnswerAck
	body := map[string]any{"questionId": questionID, "selectedOptions": values}
	path := fmt.Sprintf("/api/quiz-sessions/%d/answers", sessionID)
	err := c.do(ctx, http.MethodPost, path, body, &ack, "failed to save answer")
	return ack, err
}

func (c *Client) CompleteSession(ctx context.Context, sessionID int64) (domain.CompletionRecord, error) {
	var rec domain.CompletionRecord
	path := fmt.Sprintf("/api/quiz-sessions/%d/complete", sessionID)
	err := c.do(ctx, http.MethodPost, path, nil, &rec, "failed to complete session")
	return rec, err
}

func (c *Client) Progress(ctx context.Context, sessionID int64) (domain.Progress, error) {
	var p domain.Progress
	path := fmt.Sprintf("/api/quiz-sessions/%d/progress", sessionID)
	err := c.do(ctx, http.MethodGet, path, nil, &p, "failed to load progress")
	return p, err
}

func (c *Client) GenerateRecommendations(ctx context.Context, sessionID int64) ([]domain.RecommendationGeneration, error) {
	return c.recommendations(ctx, http.MethodPost, sessionID, "/generate", "failed to request recommendations")
}

func (c *Client) Recommendations(ctx context.Context, sessionID int64) ([]domain.RecommendationGeneration, error) {
	return c.recommendations(ctx, http.MethodGet, sessionID, "", "failed to load recommendations")
}

func (c *Client) RegenerateRecommendations(ctx context.Context, sessionID int64) ([]domain.RecommendationGeneration, error) {
	return c.recommendations(ctx, http.MethodPost, sessionID, "/regenerate", "failed to regenerate recommendations")
}

func (c *Client) recommendations(ctx context.Context, method string, sessionID int64, suffix, fallback string) ([]domain.RecommendationGeneration, error) {
	var out []domain.RecommendationGeneration
	path := fmt.Sprintf("/api/recommendations/sessions/%d%s", sessionID, suffix)
	if err := c.do(ctx, method, path, nil, &out, fallback); err != nil {
		return nil, err
	}
	return out, nil
}

type meResponse struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type adminMeResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Me returns the signed-in member.
func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var me meResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &me, "failed to fetch current user"); err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: fmt.Sprint(me.UserID), Email: me.Email, Name: me.Name, Role: domain.RoleUser}, nil
}

// AdminMe returns the signed-in administrator.
func (c *Client) AdminMe(ctx context.Context) (domain.User, error) {
	var me adminMeResponse
	if err := c.do(ctx, http.MethodGet, "/api/admin/auth/me", nil, &me, "failed to fetch current admin"); err != nil {
		return domain.User{}, err
	}
	role := domain.RoleAdmin
	if strings.EqualFold(me.Role, "super_admin") {
		role = domain.RoleSuperAdmin
	}
	return domain.User{ID: fmt.Sprint(me.ID), Email: me.Email, Name: me.Name, Role: role}, nil
}

// Logout ends the upstream member or admin session.
func (c *Client) Logout(ctx context.Context, admin bool) error {
	path := "/api/auth/logout"
	if admin {
		path = "/api/admin/auth/logout"
	}
	return c.do(ctx, http.MethodPost, path, nil, nil, "logout failed")
}

// IsUnauthorized reports whether err is an upstream 401/419.
func IsUnauthorized(err error) bool {
	var apiErr *domain.APIError
	return errors.As(err, &apiErr) && apiErr.IsUnauthorized()
}
