package quizapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ipzy-gateway/internal/domain"
)

func writeEnvelope(w http.ResponseWriter, status int, data any, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"success": code == "", "data": data}
	if code != "" {
		body["error"] = map[string]string{"code": code, "message": message}
	}
	_ = json.NewEncoder(w).Encode(body)
}

func TestFetchQuestionsMapsAndOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/quizzes/3/questions", r.URL.Path)
		writeEnvelope(w, http.StatusOK, []map[string]any{
			{"questionId": 32, "text": "선호하는 스타일은?", "displayOrder": 2, "options": []map[string]any{
				{"optionId": 2, "text": "미니멀", "value": "minimal", "displayOrder": 2},
				{"optionId": 1, "text": "캐주얼", "value": "casual", "displayOrder": 1},
			}},
			{"questionId": 31, "text": "어떤 자리에 입고 가시나요?", "displayOrder": 1, "options": []map[string]any{
				{"optionId": 3, "text": "데이트", "value": "date", "displayOrder": 1},
			}},
		}, "", "")
	}))
	defer srv.Close()

	questions, err := NewClient(srv.URL).FetchQuestions(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, int64(31), questions[0].ID)
	assert.Equal(t, "어떤 자리에 입고 가시나요?", questions[0].Prompt)
	assert.Equal(t, []domain.QuizOption{{Value: "casual", Label: "캐주얼"}, {Value: "minimal", Label: "미니멀"}}, questions[1].Options)
}

func TestListQuizzesSortsByDisplayOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, []domain.QuizMetadata{
			{QuizID: 2, DisplayOrder: 5},
			{QuizID: 1, DisplayOrder: 1},
		}, "", "")
	}))
	defer srv.Close()

	quizzes, err := NewClient(srv.URL).ListQuizzes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), quizzes[0].QuizID)
}

func TestEnvelopeErrorsBecomeAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/quizzes/1/sessions":
			writeEnvelope(w, http.StatusInternalServerError, nil, "QUIZ_500", "boom")
		case "/api/quiz-sessions/9/complete":
			writeEnvelope(w, http.StatusOK, nil, "SESSION_001", "already completed")
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	_, err := client.StartSession(context.Background(), 1)
	var apiErr *domain.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 500, apiErr.Status)
	assert.Equal(t, "QUIZ_500", apiErr.Code)
	assert.Equal(t, "HTTP 500: QUIZ_500: boom", apiErr.Error())

	_, err = client.CompleteSession(context.Background(), 9)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.Status, "envelope failures keep the response status")
	assert.Equal(t, "SESSION_001: already completed", apiErr.Error())
	assert.False(t, apiErr.IsUnauthorized())

	_, err = client.Recommendations(context.Background(), 9)
	assert.True(t, IsUnauthorized(err))
}

func TestSubmitAnswerForwardsCookiesAndBody(t *testing.T) {
	var gotBody map[string]any
	var gotCookies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/quiz-sessions/5/answers", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		for _, c := range r.Cookies() {
			gotCookies = append(gotCookies, c.Name)
		}
		writeEnvelope(w, http.StatusOK, domain.AnswerAck{QuestionID: 7, SelectedOptions: []string{"date"}}, "", "")
	}))
	defer srv.Close()

	ctx := WithCookies(context.Background(), []*http.Cookie{
		{Name: "JSESSIONID", Value: "abc"},
		{Name: "ipzy_tab", Value: "secret"},
	}, "ipzy_tab")
	ack, err := NewClient(srv.URL).SubmitAnswer(ctx, 5, 7, []string{"date"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), ack.QuestionID)
	assert.Equal(t, float64(7), gotBody["questionId"])
	assert.Equal(t, []any{"date"}, gotBody["selectedOptions"])
	assert.Equal(t, []string{"JSESSIONID"}, gotCookies)
}

func TestMissingDataIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, nil, "", "")
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Progress(context.Background(), 1)
	require.Error(t, err)
}
