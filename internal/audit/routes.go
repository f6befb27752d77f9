package audit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts audit endpoints under /api/audit on the given router.
func RegisterRoutes(r chi.Router, auditLog *Log) {
	r.Route("/api/audit", func(r chi.Router) {
		r.Get("/", handleQuery(auditLog))
		r.Get("/{id}", handleGetByID(auditLog))
	})
}

func handleQuery(auditLog *Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := Filter{Text: q.Get("q")}
		if v := q.Get("kind"); v != "" {
			filter.Kind = EventKind(v)
		}
		if v := q.Get("actor"); v != "" {
			filter.Actor = Actor(v)
		}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}

		events, err := auditLog.Query(r.Context(), filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []Event{}
		}

		writeJSON(w, http.StatusOK, events)
	}
}

func handleGetByID(auditLog *Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
			return
		}

		event, err := auditLog.GetByID(r.Context(), id)
		if err != nil {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, event)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
