package handler

import (
	"net/http"

	"github.com/pavelanni/literable/internal/model"
)

func (h *Handler) handleListPassages(w http.ResponseWriter, r *http.Request) {
	passages, err := h.store.ListPassages(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, passages)
}

// passageRequest creates a passage, optionally with its questions.
type passageRequest struct {
	model.Passage
	Questions []model.QuestionImport `json:"questions"`
}

func (h *Handler) handleCreatePassage(w http.ResponseWriter, r *http.Request) {
	var req passageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, qs, err := model.PassageImport{Title: req.Title, Body: req.Body, Questions: req.Questions}.Convert()
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.store.CreatePassageWithQuestions(p, qs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p.ID = id
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleGetPassage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.store.GetPassage(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleUpdatePassage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p model.Passage
	if err := h.decodeValid(r, &p, func() { p.ID = id }); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.UpdatePassage(p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeletePassage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeletePassage(id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.store.GetPassage(id); err != nil {
		writeError(w, r, err)
		return
	}
	questions, err := h.store.ListQuestions(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	passageID, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var q model.Question
	fill := func() {
		q.PassageID = passageID
		q.Category = model.ParseCategory(string(q.Category))
	}
	if err := h.decodeValid(r, &q, fill); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.store.InsertQuestion(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q.ID = id
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.store.GetQuestion(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	current, err := h.store.GetQuestion(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var q model.Question
	fill := func() {
		q.ID = id
		q.PassageID = current.PassageID
		q.Category = model.ParseCategory(string(q.Category))
	}
	if err := h.decodeValid(r, &q, fill); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.UpdateQuestion(q); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteQuestion(id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
