package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/literable/internal/evaluation"
	"github.com/pavelanni/literable/internal/model"
	"github.com/pavelanni/literable/internal/store"
)

const maxBodyBytes = 10 << 20

// Evaluator runs a batch evaluation for one student and passage.
type Evaluator interface {
	Run(ctx context.Context, studentID, passageID int64, opts evaluation.Options) (*evaluation.Summary, error)
}

// Config holds request defaults.
type Config struct {
	// Concurrency is used when an evaluate request does not set one.
	Concurrency int
	// DryRun forces every evaluate request to stop before saving.
	DryRun bool
	// ChartFont is a TrueType font for chart labels.
	ChartFont string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	evaluator Evaluator
	config    Config
	validate  *validator.Validate
}

// New creates a new Handler. evaluator may be nil, in which case evaluate
// requests fail with 503.
func New(s *store.Store, e Evaluator, cfg Config) *Handler {
	return &Handler{
		store:     s,
		evaluator: e,
		config:    cfg,
		validate:  model.NewValidator(),
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/students", h.handleListStudents)
		r.Post("/students", h.handleCreateStudent)
		r.Get("/students/{id}", h.handleGetStudent)
		r.Put("/students/{id}", h.handleUpdateStudent)
		r.Delete("/students/{id}", h.handleDeleteStudent)
		r.Get("/students/{id}/answers", h.handleListAnswers)
		r.Put("/students/{id}/answers/{qid}", h.handleSaveAnswer)
		r.Post("/students/{id}/passages/{pid}/evaluate", h.handleEvaluate)

		r.Get("/passages", h.handleListPassages)
		r.Post("/passages", h.handleCreatePassage)
		r.Get("/passages/{id}", h.handleGetPassage)
		r.Put("/passages/{id}", h.handleUpdatePassage)
		r.Delete("/passages/{id}", h.handleDeletePassage)
		r.Get("/passages/{id}/questions", h.handleListQuestions)
		r.Post("/passages/{id}/questions", h.handleCreateQuestion)

		r.Get("/questions/{id}", h.handleGetQuestion)
		r.Put("/questions/{id}", h.handleUpdateQuestion)
		r.Delete("/questions/{id}", h.handleDeleteQuestion)

		r.Get("/answers/{id}", h.handleGetAnswer)
		r.Delete("/answers/{id}", h.handleDeleteAnswer)

		r.Post("/import", h.handleImport)
		r.Get("/export", h.handleExport)

		r.Get("/stats", h.handleOverallStats)
		r.Get("/stats/students/{id}", h.handleStudentStats)
		r.Get("/stats/passages/{id}", h.handlePassageStats)
	})

	r.Get("/reports/{id}/{pid}", h.handleReport)
	r.Get("/stats/chart.png", h.handleChart)
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps err onto an HTTP status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &verrs), errors.Is(err, model.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrDuplicate):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	http.Error(w, err.Error(), status)
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", model.ErrInvalid, err)
	}
	return nil
}

// decodeValid reads a JSON body into v, lets fill set fields taken from the
// URL, and validates the result.
func (h *Handler) decodeValid(r *http.Request, v any, fill func()) error {
	if err := decode(r, v); err != nil {
		return err
	}
	if fill != nil {
		fill()
	}
	return h.validate.Struct(v)
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad %s %q", model.ErrInvalid, name, chi.URLParam(r, name))
	}
	return id, nil
}
