package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts task endpoints under /api/tasks.
func RegisterRoutes(r chi.Router, p *Pipeline) {
	r.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", handleSubmit(p))
		r.Get("/", handleList(p))
		r.Get("/{id}", handleGet(p))
		r.Post("/{id}/analyze", handleAnalyze(p))
		r.Post("/{id}/execute", handleExecute(p))
		r.Post("/{id}/chain", handleChain(p))
	})
}

type submitRequest struct {
	Input       string   `json:"input"`
	DocumentIDs []string `json:"document_ids"`
}

func handleSubmit(p *Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		task, err := p.Submit(r.Context(), req.Input, req.DocumentIDs)
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, task)
	}
}

func handleList(p *Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, p.List(r.Context()))
	}
}

func handleGet(p *Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := p.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

func handleAnalyze(p *Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := p.Analyze(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

func handleExecute(p *Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The execution outlives this request, so it must not inherit the
		// request context. Returns 202 with the task in the executing
		// stage; completion is observed via GET or the event feed.
		task, err := p.Execute(context.Background(), chi.URLParam(r, "id"))
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, task)
	}
}

type chainRequest struct {
	Input string `json:"input"`
}

func handleChain(p *Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chainRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		task, err := p.Chain(r.Context(), chi.URLParam(r, "id"), req.Input)
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, task)
	}
}

func writeTaskError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrEmptyInput):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrParentNotCompleted):
		status = http.StatusConflict
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
