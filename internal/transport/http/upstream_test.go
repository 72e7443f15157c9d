package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"ipzy-gateway/internal/domain"
)

const authCookie = "ACCESS_TOKEN"

// fakeUpstream is an in-process quiz service with two questions and cookie-based auth.
type fakeUpstream struct {
	mu            sync.Mutex
	nextSession   int64
	answers       map[int64]map[int64]string
	completed     map[int64]bool
	generated     map[int64]bool
	logouts       int
	recsStatus    int
	forwardedTabs int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		nextSession: 100,
		answers:     map[int64]map[int64]string{},
		completed:   map[int64]bool{},
		generated:   map[int64]bool{},
	}
}

func (u *fakeUpstream) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/quizzes", func(w http.ResponseWriter, r *http.Request) {
		u.seen(r)
		envelopeOK(w, []domain.QuizMetadata{{QuizID: 1, Title: "스타일 퀴즈", DisplayOrder: 1}})
	})
	mux.HandleFunc("GET /api/quizzes/{id}/questions", func(w http.ResponseWriter, r *http.Request) {
		envelopeOK(w, []map[string]any{
			{"questionId": 11, "text": "어떤 자리에 입고 가시나요?", "displayOrder": 1, "options": []map[string]any{
				{"optionId": 1, "text": "데이트", "value": "date", "displayOrder": 1},
				{"optionId": 2, "text": "출근", "value": "work", "displayOrder": 2},
			}},
			{"questionId": 12, "text": "선호하는 스타일은?", "displayOrder": 2, "options": []map[string]any{
				{"optionId": 3, "text": "미니멀", "value": "minimal", "displayOrder": 1},
				{"optionId": 4, "text": "캐주얼", "value": "casual", "displayOrder": 2},
			}},
		})
	})
	mux.HandleFunc("POST /api/quizzes/{id}/sessions", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.nextSession++
		id := u.nextSession
		u.answers[id] = map[int64]string{}
		u.mu.Unlock()
		quizID, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		envelopeOK(w, domain.SessionHandle{SessionID: id, QuizID: quizID, CreatedAt: time.Now()})
	})
	mux.HandleFunc("POST /api/quiz-sessions/{id}/answers", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		var body struct {
			QuestionID      int64    `json:"questionId"`
			SelectedOptions []string `json:"selectedOptions"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		u.mu.Lock()
		if u.answers[id] == nil {
			u.answers[id] = map[int64]string{}
		}
		if len(body.SelectedOptions) > 0 {
			u.answers[id][body.QuestionID] = body.SelectedOptions[0]
		}
		u.mu.Unlock()
		envelopeOK(w, domain.AnswerAck{QuestionID: body.QuestionID, SelectedOptions: body.SelectedOptions})
	})
	mux.HandleFunc("POST /api/quiz-sessions/{id}/complete", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		u.mu.Lock()
		u.completed[id] = true
		u.mu.Unlock()
		envelopeOK(w, domain.CompletionRecord{SessionID: id, Completed: true, CompletedAt: time.Now()})
	})
	mux.HandleFunc("POST /api/recommendations/sessions/{id}/generate", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		u.mu.Lock()
		u.generated[id] = true
		u.mu.Unlock()
		envelopeOK(w, []domain.RecommendationGeneration{{DisplayOrder: 1, Status: "PENDING", JobID: fmt.Sprintf("job-%d", id)}})
	})
	mux.HandleFunc("GET /api/recommendations/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		status := u.recsStatus
		u.mu.Unlock()
		if status != 0 {
			envelopeErr(w, status, "AUTH_001", "unauthorized")
			return
		}
		envelopeOK(w, []domain.RecommendationGeneration{{DisplayOrder: 1, Style: "minimal", Status: "COMPLETED", JobID: "job"}})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if !signedIn(r) {
			envelopeErr(w, http.StatusUnauthorized, "AUTH_001", "unauthorized")
			return
		}
		envelopeOK(w, map[string]any{"userId": 7, "email": "user@ipzy.kr", "name": "입지"})
	})
	mux.HandleFunc("GET /api/admin/auth/me", func(w http.ResponseWriter, r *http.Request) {
		envelopeErr(w, http.StatusUnauthorized, "AUTH_001", "unauthorized")
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.logouts++
		u.mu.Unlock()
		envelopeOK(w, nil)
	})
	return mux
}

// seen counts requests that leaked the gateway's own tab cookie.
func (u *fakeUpstream) seen(r *http.Request) {
	if _, err := r.Cookie("ipzy_tab"); err == nil {
		u.mu.Lock()
		u.forwardedTabs++
		u.mu.Unlock()
	}
}

func (u *fakeUpstream) completedSession() (int64, map[int64]string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for id, done := range u.completed {
		if done {
			out := map[int64]string{}
			for q, v := range u.answers[id] {
				out[q] = v
			}
			return id, out, true
		}
	}
	return 0, nil, false
}

func (u *fakeUpstream) count(field *int) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return *field
}

func (u *fakeUpstream) failRecommendations(status int) {
	u.mu.Lock()
	u.recsStatus = status
	u.mu.Unlock()
}

func (u *fakeUpstream) wasGenerated(id int64) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.generated[id]
}

func signedIn(r *http.Request) bool {
	c, err := r.Cookie(authCookie)
	return err == nil && c.Value == "ok"
}

func envelopeOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func envelopeErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}
