package query

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the query endpoint under /api/query.
func RegisterRoutes(r chi.Router, router *Router) {
	r.Post("/api/query", handleAsk(router))
}

type askRequest struct {
	Query string `json:"query"`
}

func handleAsk(router *Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		resp, err := router.Ask(r.Context(), req.Query)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrEmptyQuery) {
				status = http.StatusBadRequest
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}
