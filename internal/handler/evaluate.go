package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pavelanni/literable/internal/evaluation"
	"github.com/pavelanni/literable/internal/model"
)

type evaluateRequest struct {
	DryRun      bool `json:"dry_run"`
	Rescore     bool `json:"rescore"`
	Concurrency int  `json:"concurrency" validate:"gte=0,lte=8"`
}

// handleEvaluate runs a batch for one student and passage and returns the
// summary. Per-item failures are part of a 200 response.
func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if h.evaluator == nil {
		http.Error(w, "evaluation is not configured", http.StatusServiceUnavailable)
		return
	}
	studentID, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	passageID, err := idParam(r, "pid")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req evaluateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, fmt.Errorf("%w: decode body: %v", model.ErrInvalid, err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Concurrency == 0 {
		req.Concurrency = h.config.Concurrency
	}

	if _, err := h.store.GetStudent(studentID); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.store.GetPassage(passageID); err != nil {
		writeError(w, r, err)
		return
	}

	sum, err := h.evaluator.Run(r.Context(), studentID, passageID, evaluation.Options{
		DryRun:      req.DryRun || h.config.DryRun,
		Rescore:     req.Rescore,
		Concurrency: req.Concurrency,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
