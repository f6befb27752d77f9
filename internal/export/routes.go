package export

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the export endpoint under /api/export.
func RegisterRoutes(r chi.Router, exporter *Exporter) {
	r.Post("/api/export", handleExport(exporter))
}

type exportRequest struct {
	Title  string `json:"title"`
	Format Format `json:"format"`
}

func handleExport(exporter *Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Format == "" {
			req.Format = FormatMarkdown
		}

		report, err := exporter.Export(r.Context(), req.Title, req.Format)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrUnsupportedFormat) {
				status = http.StatusBadRequest
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(report)
	}
}
