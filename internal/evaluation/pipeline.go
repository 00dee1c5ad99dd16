package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/literable/internal/llm"
	"github.com/pavelanni/literable/internal/llm/prompts"
	"github.com/pavelanni/literable/internal/metrics"
	"github.com/pavelanni/literable/internal/model"
)

// Status is the state of one batch item.
type Status string

const (
	StatusPending       Status = "pending"
	StatusEvaluating    Status = "evaluating"
	StatusScored        Status = "scored"
	StatusParseFailed   Status = "parse_failed"
	StatusCallFailed    Status = "call_failed"
	StatusConfigFailed  Status = "config_failed"
	StatusPersisted     Status = "persisted"
	StatusPersistFailed Status = "persist_failed"
)

// Failed reports whether s is a terminal failure.
func (s Status) Failed() bool {
	switch s {
	case StatusParseFailed, StatusCallFailed, StatusConfigFailed, StatusPersistFailed:
		return true
	}
	return false
}

// MaxConcurrency bounds the number of items evaluated at once.
const MaxConcurrency = 8

// Store is the storage the pipeline reads pending answers from and writes results to.
type Store interface {
	PendingAnswers(studentID, passageID int64, rescore bool) ([]model.PendingItem, error)
	SaveEvaluation(studentID, questionID int64, score int, feedback string, answerText *string) error
}

// Item is one answer moving through the pipeline.
type Item struct {
	QuestionID int64          `json:"question_id"`
	Question   string         `json:"question"`
	Category   model.Category `json:"category,omitempty"`
	Rubric     string         `json:"rubric,omitempty"`
	Status     Status         `json:"status"`
	Score      *int           `json:"score,omitempty"`
	Feedback   string         `json:"feedback,omitempty"`
	Error      string         `json:"error,omitempty"`
	Raw        string         `json:"raw,omitempty"`
	Err        error          `json:"-"`

	pending model.PendingItem
}

// ProgressFunc is called once per item, in question order, when the item is done.
type ProgressFunc func(done, total int, item Item)

// Options control one batch run.
type Options struct {
	// DryRun stops every item at StatusScored; nothing is written.
	DryRun bool
	// Rescore includes answers that already carry a score.
	Rescore bool
	// Concurrency is the number of items evaluated at once, clamped to [1, MaxConcurrency].
	Concurrency int
	Progress    ProgressFunc
}

// Summary is the outcome of a batch run.
type Summary struct {
	RunID     string         `json:"run_id"`
	StudentID int64          `json:"student_id"`
	PassageID int64          `json:"passage_id"`
	DryRun    bool           `json:"dry_run"`
	Items     []Item         `json:"items"`
	Counts    map[Status]int `json:"counts"`
	Duration  time.Duration  `json:"duration_ns"`
}

// Total is the number of items in the batch.
func (s *Summary) Total() int { return len(s.Items) }

// Count returns the number of items that ended in st.
func (s *Summary) Count(st Status) int { return s.Counts[st] }

// Resolved is the number of items that did not fail.
func (s *Summary) Resolved() int {
	n := 0
	for _, it := range s.Items {
		if !it.Status.Failed() {
			n++
		}
	}
	return n
}

// Complete reports whether every item reached its final success state.
func (s *Summary) Complete() bool {
	return s.Resolved() == len(s.Items)
}

// Partial reports whether some, but not all, items succeeded.
func (s *Summary) Partial() bool {
	r := s.Resolved()
	return r > 0 && r < len(s.Items)
}

// Pipeline runs batches: prompt, model call, parse and save for every pending answer.
type Pipeline struct {
	store     Store
	builder   *prompts.Builder
	completer llm.Completer
	parser    *Parser
}

// New creates a Pipeline.
func New(store Store, builder *prompts.Builder, completer llm.Completer, parser *Parser) *Pipeline {
	if parser == nil {
		parser = NewParser(DefaultMarkers())
	}
	return &Pipeline{store: store, builder: builder, completer: completer, parser: parser}
}

// Run evaluates the pending answers of a student for a passage. The returned
// error is set only when the batch could not be assembled; per-item failures
// are recorded in the summary.
func (p *Pipeline) Run(ctx context.Context, studentID, passageID int64, opts Options) (*Summary, error) {
	pending, err := p.store.PendingAnswers(studentID, passageID, opts.Rescore)
	if err != nil {
		return nil, fmt.Errorf("load pending answers: %w", err)
	}

	sum := &Summary{
		RunID:     uuid.NewString(),
		StudentID: studentID,
		PassageID: passageID,
		DryRun:    opts.DryRun,
		Items:     make([]Item, len(pending)),
		Counts:    make(map[Status]int),
	}
	for i, pi := range pending {
		sum.Items[i] = Item{
			QuestionID: pi.QuestionID,
			Question:   pi.Question,
			Category:   pi.Category,
			Status:     StatusPending,
			pending:    pi,
		}
	}

	log := slog.With("run_id", sum.RunID, "student_id", studentID, "passage_id", passageID)
	log.Info("evaluation started", "items", len(pending), "dry_run", opts.DryRun, "concurrency", clampConcurrency(opts.Concurrency))
	start := time.Now()

	p.runItems(ctx, log, sum.Items, opts)

	sum.Duration = time.Since(start)
	for _, it := range sum.Items {
		sum.Counts[it.Status]++
		metrics.EvaluationsTotal.WithLabelValues(string(it.Status)).Inc()
	}
	log.Info("evaluation finished",
		"total", sum.Total(), "resolved", sum.Resolved(),
		"call_failed", sum.Count(StatusCallFailed), "parse_failed", sum.Count(StatusParseFailed),
		"config_failed", sum.Count(StatusConfigFailed), "persist_failed", sum.Count(StatusPersistFailed),
		"duration", sum.Duration)
	return sum, nil
}

func (p *Pipeline) runItems(ctx context.Context, log *slog.Logger, items []Item, opts Options) {
	done := make([]chan struct{}, len(items))
	for i := range done {
		done[i] = make(chan struct{})
	}

	reported := make(chan struct{})
	go func() {
		defer close(reported)
		for i := range items {
			<-done[i]
			if opts.Progress != nil {
				opts.Progress(i+1, len(items), items[i])
			}
		}
	}()

	var g errgroup.Group
	g.SetLimit(clampConcurrency(opts.Concurrency))
	for i := range items {
		if err := ctx.Err(); err != nil {
			fail(&items[i], StatusCallFailed, newItemError(ErrTransient, err))
			close(done[i])
			continue
		}
		g.Go(func() error {
			defer close(done[i])
			p.evaluate(ctx, log, &items[i], opts.DryRun)
			return nil
		})
	}
	_ = g.Wait()
	<-reported
}

func (p *Pipeline) evaluate(ctx context.Context, log *slog.Logger, it *Item, dryRun bool) {
	it.Status = StatusEvaluating
	log = log.With("question_id", it.QuestionID)

	prompt, err := p.builder.Build(prompts.Input{
		Question:    it.pending.Question,
		ModelAnswer: it.pending.ModelAnswer,
		Answer:      it.pending.AnswerText,
		Category:    it.pending.Category,
	})
	if err != nil {
		fail(it, StatusConfigFailed, newItemError(ErrConfiguration, err))
		log.Error("building prompt", "error", err)
		return
	}
	it.Rubric = prompt.Rubric

	raw, err := p.completer.Complete(ctx, prompt.System, prompt.User)
	if err != nil {
		fail(it, StatusCallFailed, newItemError(ErrTransient, err))
		log.Warn("model call failed", "error", err)
		return
	}

	res, err := p.parser.Parse(raw)
	if err != nil {
		fail(it, StatusParseFailed, err)
		it.Raw = raw
		log.Warn("unparseable model reply", "error", err)
		return
	}
	score := res.Score
	it.Score = &score
	it.Feedback = res.Feedback
	it.Status = StatusScored
	metrics.ScoreHistogram.Observe(float64(score))

	if dryRun {
		return
	}
	if err := p.store.SaveEvaluation(it.pending.StudentID, it.QuestionID, score, res.Feedback, nil); err != nil {
		fail(it, StatusPersistFailed, newItemError(ErrPersistence, err))
		log.Error("saving evaluation", "error", err)
		return
	}
	it.Status = StatusPersisted
	log.Debug("evaluation saved", "score", score)
}

func fail(it *Item, st Status, err error) {
	it.Status = st
	it.Err = err
	it.Error = err.Error()
}

func clampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

// Kind returns the failure kind wrapped by err, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrConfiguration, ErrTransient, ErrParse, ErrPersistence} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
