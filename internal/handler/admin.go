package handler

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/pavelanni/literable/internal/report"
)

// handleImport loads passages from an uploaded JSON file (multipart field
// "passages_file") or from a raw JSON body named by the "source" parameter.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	var (
		source string
		data   []byte
		err    error
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			http.Error(w, "file too large", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("passages_file")
		if err != nil {
			http.Error(w, "no file uploaded", http.StatusBadRequest)
			return
		}
		defer file.Close()
		source = header.Filename
		data, err = io.ReadAll(file)
		if err != nil {
			http.Error(w, "failed to read file", http.StatusInternalServerError)
			return
		}
	} else {
		source = r.URL.Query().Get("source")
		if source == "" {
			http.Error(w, "source parameter required", http.StatusBadRequest)
			return
		}
		data, err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
	}

	res, err := h.store.ImportPassages(source, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("passages uploaded", "source", source, "passages", res.Passages, "skipped", res.Skipped)

	status := http.StatusCreated
	if res.Skipped {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	exp, err := h.store.ExportResults()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="results-`+time.Now().Format("20060102")+`.json"`)
	if err := report.WriteJSON(w, exp); err != nil {
		slog.Error("export error", "error", err)
	}
}
