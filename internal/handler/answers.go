package handler

import (
	"net/http"
	"strconv"
)

type saveAnswerRequest struct {
	Text string `json:"answer_text" validate:"max=20000"`
}

func (h *Handler) handleSaveAnswer(w http.ResponseWriter, r *http.Request) {
	studentID, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	questionID, err := idParam(r, "qid")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req saveAnswerRequest
	if err := h.decodeValid(r, &req, nil); err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.store.SaveAnswer(studentID, questionID, req.Text); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.store.GetAnswerFor(studentID, questionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleListAnswers(w http.ResponseWriter, r *http.Request) {
	studentID, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var passageID int64
	if p := r.URL.Query().Get("passage"); p != "" {
		passageID, err = strconv.ParseInt(p, 10, 64)
		if err != nil {
			http.Error(w, "invalid passage ID", http.StatusBadRequest)
			return
		}
	}
	if _, err := h.store.GetStudent(studentID); err != nil {
		writeError(w, r, err)
		return
	}
	answers, err := h.store.ListAnswers(studentID, passageID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

func (h *Handler) handleGetAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.store.GetAnswer(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleDeleteAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteAnswer(id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
