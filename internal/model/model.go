package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound is returned by the store when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by the store when a write violates a unique constraint.
	ErrDuplicate = errors.New("duplicate")
	// ErrInvalid marks input rejected before it reaches the database.
	ErrInvalid = errors.New("invalid input")
)

var validate = NewValidator()

// NewValidator returns a validator that also understands the "category" tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).Known()
	})
	return v
}

// Category selects the rubric a question is graded with.
type Category string

const (
	CategoryNone        Category = ""
	CategoryFactual     Category = "factual"
	CategoryInferential Category = "inferential"
	CategoryCritical    Category = "critical"
	CategoryCreative    Category = "creative"
)

// categoryAliases maps the Korean category labels to categories.
var categoryAliases = map[string]Category{
	"사실적 독해": CategoryFactual,
	"추론적 독해": CategoryInferential,
	"비판적 독해": CategoryCritical,
	"창의적 독해": CategoryCreative,
	"사실적":    CategoryFactual,
	"추론적":    CategoryInferential,
	"비판적":    CategoryCritical,
	"창의적":    CategoryCreative,
}

// ParseCategory normalizes user input into a Category. Unknown values are
// returned lower-cased and fail Known.
func ParseCategory(s string) Category {
	s = strings.TrimSpace(s)
	if c, ok := categoryAliases[s]; ok {
		return c
	}
	return Category(strings.ToLower(s))
}

// Known reports whether c is one of the defined categories (the empty category included).
func (c Category) Known() bool {
	switch c {
	case CategoryNone, CategoryFactual, CategoryInferential, CategoryCritical, CategoryCreative:
		return true
	}
	return false
}

// Student is a registered student.
type Student struct {
	ID            int64  `db:"id" json:"id"`
	Name          string `db:"name" json:"name" validate:"required,max=200"`
	School        string `db:"school" json:"school" validate:"max=200"`
	StudentNumber string `db:"student_number" json:"student_number" validate:"max=50"`
}

// Validate checks the student's fields.
func (s *Student) Validate() error {
	return validate.Struct(s)
}

// Passage is a reading text shared by its questions.
type Passage struct {
	ID    int64  `db:"id" json:"id"`
	Title string `db:"title" json:"title" validate:"required,max=500"`
	Body  string `db:"body" json:"body" validate:"required"`
}

// Validate checks the passage's fields.
func (p *Passage) Validate() error {
	return validate.Struct(p)
}

// Question is a comprehension question attached to one passage.
type Question struct {
	ID          int64    `db:"id" json:"id"`
	PassageID   int64    `db:"passage_id" json:"passage_id" validate:"required,gt=0"`
	Text        string   `db:"question" json:"question" validate:"required"`
	ModelAnswer string   `db:"model_answer" json:"model_answer" validate:"required"`
	Category    Category `db:"category" json:"category" validate:"category"`
}

// Validate checks the question's fields.
func (q *Question) Validate() error {
	return validate.Struct(q)
}

// validateContent checks everything but the owning passage, which is not
// known before the passage is stored.
func (q *Question) validateContent() error {
	return validate.StructExcept(q, "PassageID")
}

// Answer is one student's response to one question. At most one exists per
// (StudentID, QuestionID).
type Answer struct {
	ID         int64     `db:"id" json:"id"`
	StudentID  int64     `db:"student_id" json:"student_id"`
	QuestionID int64     `db:"question_id" json:"question_id"`
	Text       string    `db:"answer_text" json:"answer_text"`
	Score      *int      `db:"score" json:"score,omitempty"`
	Feedback   *string   `db:"feedback" json:"feedback,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// PendingItem is an answered question waiting for evaluation.
type PendingItem struct {
	AnswerID    int64    `db:"answer_id"`
	StudentID   int64    `db:"student_id"`
	QuestionID  int64    `db:"question_id"`
	Question    string   `db:"question"`
	ModelAnswer string   `db:"model_answer"`
	Category    Category `db:"category"`
	AnswerText  string   `db:"answer_text"`
}

// ReportRow is one line of a student's report for a passage.
type ReportRow struct {
	QuestionID  int64   `db:"question_id" json:"question_id"`
	Question    string  `db:"question" json:"question"`
	ModelAnswer string  `db:"model_answer" json:"model_answer"`
	AnswerText  string  `db:"answer_text" json:"answer_text"`
	Score       *int    `db:"score" json:"score,omitempty"`
	Feedback    *string `db:"feedback" json:"feedback,omitempty"`
}

// Report collects everything rendered for one (student, passage) pair.
type Report struct {
	Student Student     `json:"student"`
	Passage Passage     `json:"passage"`
	Rows    []ReportRow `json:"rows"`
}

// Total returns the sum of scores and the number of scored rows.
func (r Report) Total() (sum, scored int) {
	for _, row := range r.Rows {
		if row.Score != nil {
			sum += *row.Score
			scored++
		}
	}
	return sum, scored
}

// Average returns the mean score over the scored rows.
func (r Report) Average() float64 {
	sum, scored := r.Total()
	if scored == 0 {
		return 0
	}
	return float64(sum) / float64(scored)
}

// Range returns the lowest and highest score; ok is false when nothing is scored.
func (r Report) Range() (lo, hi int, ok bool) {
	for _, row := range r.Rows {
		if row.Score == nil {
			continue
		}
		if !ok {
			lo, hi, ok = *row.Score, *row.Score, true
			continue
		}
		lo = min(lo, *row.Score)
		hi = max(hi, *row.Score)
	}
	return lo, hi, ok
}

// PassageImport is used for loading passages with their questions from JSON.
type PassageImport struct {
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Questions []QuestionImport `json:"questions"`
}

// QuestionImport is a question inside a PassageImport.
type QuestionImport struct {
	Question    string `json:"question"`
	ModelAnswer string `json:"model_answer"`
	Category    string `json:"category"`
}

// Convert validates the import and returns the passage with its questions.
// Categories may use the Korean labels.
func (pi PassageImport) Convert() (Passage, []Question, error) {
	p := Passage{Title: strings.TrimSpace(pi.Title), Body: pi.Body}
	if err := p.Validate(); err != nil {
		return Passage{}, nil, fmt.Errorf("%w: passage %q: %w", ErrInvalid, pi.Title, err)
	}
	qs := make([]Question, 0, len(pi.Questions))
	for i, qi := range pi.Questions {
		q := Question{
			Text:        strings.TrimSpace(qi.Question),
			ModelAnswer: qi.ModelAnswer,
			Category:    ParseCategory(qi.Category),
		}
		if err := q.validateContent(); err != nil {
			return Passage{}, nil, fmt.Errorf("%w: passage %q question %d: %w", ErrInvalid, pi.Title, i+1, err)
		}
		qs = append(qs, q)
	}
	return p, qs, nil
}
