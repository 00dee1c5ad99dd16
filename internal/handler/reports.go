package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/pavelanni/literable/internal/i18n"
	"github.com/pavelanni/literable/internal/report"
)

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
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

	rep, err := h.store.GetReport(studentID, passageID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.Page(rep, time.Now()).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleOverallStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.OverallStats()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleStudentStats(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := h.store.StudentStats(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handlePassageStats(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := h.store.PassageStats(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleChart(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.OverallStats()
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	opts := report.ChartOptions{
		Title:    i18n.T(r.Context(), "GradeDistribution"),
		FontPath: h.config.ChartFont,
	}
	if err := report.GradeChart(&buf, stats.GradeDistribution, opts); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
