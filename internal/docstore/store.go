package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/audit"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/db"
)

var (
	// ErrUnsupportedFileKind is returned when a file's declared kind is
	// not on the upload allow-list.
	ErrUnsupportedFileKind = errors.New("unsupported file kind")

	// ErrNotFound is returned when no document has the given id.
	ErrNotFound = errors.New("document not found")
)

// Store owns uploaded documents and their metadata. Raw bytes are written
// under contentDir keyed by document id; the database holds metadata only.
// Every accepted upload is recorded in the audit log; metadata edits are
// deliberately not audited.
type Store struct {
	db         *db.DB
	auditLog   *audit.Log
	contentDir string
	seq        atomic.Int64
}

// NewStore creates a document store. contentDir may be empty, in which
// case raw bytes are not persisted (metadata only).
func NewStore(database *db.DB, auditLog *audit.Log, contentDir string) (*Store, error) {
	s := &Store{db: database, auditLog: auditLog, contentDir: contentDir}

	var maxSeq sql.NullInt64
	if err := database.QueryRow("SELECT MAX(seq) FROM documents").Scan(&maxSeq); err != nil {
		return nil, fmt.Errorf("seeding document sequence: %w", err)
	}
	if maxSeq.Valid {
		s.seq.Store(maxSeq.Int64)
	}

	if contentDir != "" {
		if err := os.MkdirAll(contentDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating content directory: %w", err)
		}
	}

	return s, nil
}

// KindFromFileName guesses the file kind from the extension. Returns an
// empty kind when the extension is unrecognized.
func KindFromFileName(name string) FileKind {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "pdf":
		return KindPDF
	case "docx", "doc":
		return KindDOCX
	case "xlsx", "xls":
		return KindXLSX
	case "json":
		return KindJSON
	}
	return ""
}

// Add validates and stores a single file, emitting one upload audit
// event. Rejection leaves no partial state behind.
func (s *Store) Add(ctx context.Context, file RawFile, docType DocumentType, level IntelligenceLevel, definition string) (*Document, error) {
	doc, err := s.insert(ctx, file, docType, level, definition)
	if err != nil {
		return nil, err
	}

	s.auditLog.Record(ctx, audit.Event{
		Kind:        audit.KindUpload,
		Actor:       audit.ActorUser,
		Title:       "Document Upload",
		Description: fmt.Sprintf("Uploaded %s for analysis", doc.FileName),
		SourceFiles: []string{doc.FileName},
		Metadata:    audit.Metadata{RecordsProcessed: audit.IntPtr(1)},
		Status:      audit.StatusCompleted,
	})

	return doc, nil
}

// AddBatch stores every valid file in the batch and reports the invalid
// ones. A single upload audit event lists all accepted members; a batch
// with no accepted files records nothing.
func (s *Store) AddBatch(ctx context.Context, files []RawFile) ([]Document, []Rejected) {
	var (
		added    []Document
		rejected []Rejected
	)

	for _, file := range files {
		doc, err := s.insert(ctx, file, TypeEvidence, LevelMedium, "")
		if err != nil {
			rejected = append(rejected, Rejected{FileName: file.FileName, Reason: err.Error()})
			continue
		}
		added = append(added, *doc)
	}

	if len(added) > 0 {
		names := make([]string, len(added))
		for i, doc := range added {
			names[i] = doc.FileName
		}
		s.auditLog.Record(ctx, audit.Event{
			Kind:        audit.KindUpload,
			Actor:       audit.ActorUser,
			Title:       "Document Upload",
			Description: fmt.Sprintf("Uploaded %d investigation documents for analysis", len(added)),
			SourceFiles: names,
			Metadata:    audit.Metadata{RecordsProcessed: audit.IntPtr(len(added))},
			Status:      audit.StatusCompleted,
		})
	}

	return added, rejected
}

func (s *Store) insert(ctx context.Context, file RawFile, docType DocumentType, level IntelligenceLevel, definition string) (*Document, error) {
	if !allowedKinds[file.MimeKind] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileKind, file.MimeKind)
	}
	if docType == "" {
		docType = TypeEvidence
	}
	if level == "" {
		level = LevelMedium
	}

	doc := &Document{
		ID:                uuid.New().String(),
		FileName:          file.FileName,
		MimeKind:          file.MimeKind,
		SizeBytes:         int64(len(file.Content)),
		DocumentType:      docType,
		IntelligenceLevel: level,
		Definition:        definition,
		IngestedAt:        time.Now().UTC(),
	}

	if s.contentDir != "" && len(file.Content) > 0 {
		path := s.contentPath(doc.ID, doc.MimeKind)
		if err := os.WriteFile(path, file.Content, 0o644); err != nil {
			return nil, fmt.Errorf("writing document content: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, file_name, mime_kind, size_bytes, document_type, intelligence_level, definition, ingested_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.FileName, string(doc.MimeKind), doc.SizeBytes,
		string(doc.DocumentType), string(doc.IntelligenceLevel), doc.Definition,
		doc.IngestedAt.Format(time.RFC3339Nano), s.seq.Add(1),
	)
	if err != nil {
		// Keep the content dir consistent with the database.
		if s.contentDir != "" {
			os.Remove(s.contentPath(doc.ID, doc.MimeKind))
		}
		return nil, fmt.Errorf("inserting document: %w", err)
	}

	return doc, nil
}

// UpdateMetadata merges the provided fields into the document's metadata.
func (s *Store) UpdateMetadata(ctx context.Context, id string, patch MetadataPatch) (*Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.FileName != nil {
		doc.FileName = *patch.FileName
	}
	if patch.DocumentType != nil {
		doc.DocumentType = *patch.DocumentType
	}
	if patch.IntelligenceLevel != nil {
		doc.IntelligenceLevel = *patch.IntelligenceLevel
	}
	if patch.Definition != nil {
		doc.Definition = *patch.Definition
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE documents SET file_name = ?, document_type = ?, intelligence_level = ?, definition = ?
		WHERE id = ?`,
		doc.FileName, string(doc.DocumentType), string(doc.IntelligenceLevel), doc.Definition, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating document metadata: %w", err)
	}

	return doc, nil
}

// Remove deletes a document and its stored content. Audit events that
// reference the document keep their snapshot file names untouched.
func (s *Store) Remove(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("removing document: %w", err)
	}

	if s.contentDir != "" {
		os.Remove(s.contentPath(doc.ID, doc.MimeKind))
	}

	return nil
}

// Get retrieves a single document.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, file_name, mime_kind, size_bytes, document_type, intelligence_level, definition, ingested_at
		FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// GetMany retrieves the documents for the given ids, skipping any that no
// longer exist. Pipeline operations use this to resolve a task's context
// snapshot at call time.
func (s *Store) GetMany(ctx context.Context, ids []string) ([]Document, error) {
	var docs []Document
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// List returns all documents in insertion order.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_name, mime_kind, size_bytes, document_type, intelligence_level, definition, ingested_at
		FROM documents ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (s *Store) contentPath(id string, kind FileKind) string {
	return filepath.Join(s.contentDir, id+"."+string(kind))
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (*Document, error) {
	var (
		doc                  Document
		kind, docType, level string
		ingestedAt           string
	)
	err := sc.Scan(&doc.ID, &doc.FileName, &kind, &doc.SizeBytes, &docType, &level, &doc.Definition, &ingestedAt)
	if err != nil {
		return nil, err
	}
	doc.MimeKind = FileKind(kind)
	doc.DocumentType = DocumentType(docType)
	doc.IntelligenceLevel = IntelligenceLevel(level)
	if t, parseErr := time.Parse(time.RFC3339Nano, ingestedAt); parseErr == nil {
		doc.IngestedAt = t
	}
	return &doc, nil
}
