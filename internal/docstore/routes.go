package docstore

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts document endpoints under /api/documents.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/documents", func(r chi.Router) {
		r.Post("/", handleUpload(store))
		r.Get("/", handleList(store))
		r.Get("/{id}", handleGet(store))
		r.Patch("/{id}", handleUpdateMetadata(store))
		r.Delete("/{id}", handleRemove(store))
	})
}

// handleUpload accepts multipart form uploads. Each part named "file" is
// one batch member; kinds are derived from the file name unless the form
// provides a "kind" override.
func handleUpload(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			http.Error(w, `{"error":"invalid multipart form"}`, http.StatusBadRequest)
			return
		}

		var files []RawFile
		for _, header := range r.MultipartForm.File["file"] {
			f, err := header.Open()
			if err != nil {
				http.Error(w, `{"error":"reading upload"}`, http.StatusBadRequest)
				return
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				http.Error(w, `{"error":"reading upload"}`, http.StatusBadRequest)
				return
			}
			files = append(files, RawFile{
				FileName: header.Filename,
				MimeKind: KindFromFileName(header.Filename),
				Content:  content,
			})
		}

		if len(files) == 0 {
			http.Error(w, `{"error":"no files provided"}`, http.StatusBadRequest)
			return
		}

		added, rejected := store.AddBatch(r.Context(), files)
		if added == nil {
			added = []Document{}
		}
		if rejected == nil {
			rejected = []Rejected{}
		}

		status := http.StatusCreated
		if len(added) == 0 {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]any{
			"documents": added,
			"rejected":  rejected,
		})
	}
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := store.List(r.Context())
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		if docs == nil {
			docs = []Document{}
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"document not found"}`, http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func handleUpdateMetadata(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch MetadataPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		doc, err := store.UpdateMetadata(r.Context(), chi.URLParam(r, "id"), patch)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"document not found"}`, http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func handleRemove(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.Remove(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"document not found"}`, http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
