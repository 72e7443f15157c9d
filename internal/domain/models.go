package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// QuizMetadata describes one active quiz as listed by the quiz service.
type QuizMetadata struct {
	QuizID       int64  `json:"quizId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"displayOrder"`
}

// QuizOption is a selectable answer for a question.
type QuizOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// QuizQuestion is immutable once fetched.
type QuizQuestion struct {
	ID      int64        `json:"id"`
	Prompt  string       `json:"prompt"`
	Options []QuizOption `json:"options"`
}

// HasOption reports whether value is one of the question's options.
func (q QuizQuestion) HasOption(value string) bool {
	for _, opt := range q.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// SessionHandle is the client-side identity of a remote quiz session.
type SessionHandle struct {
	SessionID int64     `json:"sessionId"`
	QuizID    int64     `json:"quizId"`
	UserID    *int64    `json:"userId"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// CompletionRecord is returned when a remote session is marked complete.
type CompletionRecord struct {
	SessionID   int64     `json:"sessionId"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completedAt"`
}

// AnswerAck echoes a mirrored answer.
type AnswerAck struct {
	QuestionID      int64    `json:"questionId"`
	SelectedOptions []string `json:"selectedOptions"`
}

// Progress is the remote view of a session's answers.
type Progress struct {
	SessionID      int64            `json:"sessionId"`
	TotalQuestions int              `json:"totalQuestions"`
	AnsweredCount  int              `json:"answeredCount"`
	Completed      bool             `json:"completed"`
	Answers        []ProgressAnswer `json:"answers"`
}

// ProgressAnswer is one answer recorded remotely.
type ProgressAnswer struct {
	QuestionID  int64  `json:"questionId"`
	OptionValue string `json:"optionValue"`
}

// AnswerMap maps a question id to the selected option value.
type AnswerMap map[int64]string

// Clone returns an independent copy.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the map as an object keyed by decimal question ids.
func (m AnswerMap) MarshalJSON() ([]byte, error) {
	raw := make(map[string]string, len(m))
	for k, v := range m {
		raw[strconv.FormatInt(k, 10)] = v
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes an object keyed by decimal question ids.
func (m *AnswerMap) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("answers: expected object")
	}
	out := make(AnswerMap, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return fmt.Errorf("answers: invalid question id %q", k)
		}
		out[id] = v
	}
	*m = out
	return nil
}

// QuestionIDs returns the keys in ascending order.
func (m AnswerMap) QuestionIDs() []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Role is the privilege level reported by the identity provider.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// User is the authenticated principal.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// IsAdmin reports whether the user may enter admin views.
func (u *User) IsAdmin() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleSuperAdmin)
}

// Navigation instructs the client to go to Path, optionally carrying transient state.
type Navigation struct {
	Path    string         `json:"path"`
	State   map[string]any `json:"state,omitempty"`
	Replace bool           `json:"replace"`
}

// AttemptState is the lifecycle position of one quiz attempt.
type AttemptState string

const (
	StateNotStarted   AttemptState = "not_started"
	StateInProgress   AttemptState = "in_progress"
	StateAwaitingAuth AttemptState = "awaiting_auth"
	StateCompleting   AttemptState = "completing"
	StateCompleted    AttemptState = "completed"
)

// RecommendationItemPosition places an item on the composite image.
type RecommendationItemPosition struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RecommendationItem is one product in an outfit.
type RecommendationItem struct {
	ProductID int64                      `json:"productId"`
	Category  string                     `json:"category"`
	Name      string                     `json:"name"`
	Brand     string                     `json:"brand"`
	Price     int64                      `json:"price"`
	ImageURL  *string                    `json:"imageUrl"`
	LinkURL   string                     `json:"linkUrl"`
	Position  RecommendationItemPosition `json:"position"`
}

// RecommendationResult is a finished outfit.
type RecommendationResult struct {
	Success           bool                 `json:"success"`
	Message           string               `json:"message"`
	CompositeImageURL string               `json:"compositeImageUrl"`
	ImageWidth        int                  `json:"imageWidth"`
	ImageHeight       int                  `json:"imageHeight"`
	TotalPrice        int64                `json:"totalPrice"`
	Items             []RecommendationItem `json:"items"`
}

// RecommendationGeneration tracks one asynchronous generation job.
type RecommendationGeneration struct {
	DisplayOrder int                   `json:"displayOrder"`
	Occasion     string                `json:"occasion"`
	Season       string                `json:"season"`
	Style        string                `json:"style"`
	Reason       string                `json:"reason"`
	Status       string                `json:"status"`
	JobID        string                `json:"jobId"`
	CreatedAt    time.Time             `json:"createdAt"`
	CompletedAt  *time.Time            `json:"completedAt"`
	Result       *RecommendationResult `json:"result"`
	Error        *string               `json:"error"`
}
