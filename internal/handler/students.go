package handler

import (
	"net/http"

	"github.com/pavelanni/literable/internal/model"
)

func (h *Handler) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.store.ListStudents(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (h *Handler) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var st model.Student
	if err := h.decodeValid(r, &st, nil); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.store.CreateStudent(st)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st.ID = id
	writeJSON(w, http.StatusCreated, st)
}

func (h *Handler) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.store.GetStudent(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var st model.Student
	if err := h.decodeValid(r, &st, func() { st.ID = id }); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.UpdateStudent(st); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteStudent(id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
