package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"ipzy-gateway/internal/domain"
)

// QuestionLoader reads the quiz catalog from Postgres. Question sets live in the JSONB data column.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

// catalogData is the shape of quizzes.data.
type catalogData struct {
	Questions []catalogQuestion `json:"questions"`
}

type catalogQuestion struct {
	ID           int64           `json:"id"`
	Prompt       string          `json:"prompt"`
	DisplayOrder int             `json:"displayOrder"`
	Options      []catalogOption `json:"options"`
}

type catalogOption struct {
	Value        string `json:"value"`
	Label        string `json:"label"`
	DisplayOrder int    `json:"displayOrder"`
}

func (l *QuestionLoader) ListQuizzes(ctx context.Context) ([]domain.QuizMetadata, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, title, description, display_order
		FROM quizzes
		WHERE active
		ORDER BY display_order, id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []domain.QuizMetadata
	for rows.Next() {
		var q domain.QuizMetadata
		if err := rows.Scan(&q.QuizID, &q.Title, &q.Description, &q.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		quizzes = append(quizzes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes, nil
}

func (l *QuestionLoader) FetchQuestions(ctx context.Context, quizID int64) ([]domain.QuizQuestion, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1 AND active`, quizID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz %d: %w", quizID, err)
	}
	var data catalogData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal quiz %d: %w", quizID, err)
	}
	return data.toQuestions(), nil
}

func (d catalogData) toQuestions() []domain.QuizQuestion {
	questions := append([]catalogQuestion(nil), d.Questions...)
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].DisplayOrder < questions[j].DisplayOrder })

	out := make([]domain.QuizQuestion, 0, len(questions))
	for _, q := range questions {
		options := append([]catalogOption(nil), q.Options...)
		sort.SliceStable(options, func(i, j int) bool { return options[i].DisplayOrder < options[j].DisplayOrder })
		mapped := domain.QuizQuestion{ID: q.ID, Prompt: q.Prompt, Options: make([]domain.QuizOption, 0, len(options))}
		for _, o := range options {
			mapped.Options = append(mapped.Options, domain.QuizOption{Value: o.Value, Label: o.Label})
		}
		out = append(out, mapped)
	}
	return out
}
