package docstore

import "time"

// FileKind is the declared format of an uploaded document. Only kinds in
// the allow-list are accepted; content is never interpreted beyond this.
type FileKind string

const (
	KindPDF  FileKind = "pdf"
	KindDOCX FileKind = "docx"
	KindXLSX FileKind = "xlsx"
	KindJSON FileKind = "json"
)

// allowedKinds is the upload allow-list.
var allowedKinds = map[FileKind]bool{
	KindPDF:  true,
	KindDOCX: true,
	KindXLSX: true,
	KindJSON: true,
}

// DocumentType classifies a document's investigative role.
type DocumentType string

const (
	TypeEvidence      DocumentType = "Evidence"
	TypeReport        DocumentType = "Report"
	TypeStatement     DocumentType = "Statement"
	TypeFinancial     DocumentType = "Financial"
	TypeCommunication DocumentType = "Communication"
)

// IntelligenceLevel grades how sensitive or significant a document is.
type IntelligenceLevel string

const (
	LevelLow      IntelligenceLevel = "Low"
	LevelMedium   IntelligenceLevel = "Medium"
	LevelHigh     IntelligenceLevel = "High"
	LevelCritical IntelligenceLevel = "Critical"
)

// Document is an uploaded source artifact and its metadata. The raw
// content is immutable once stored; only the metadata fields below are
// editable via UpdateMetadata.
type Document struct {
	ID                string            `json:"id"`
	FileName          string            `json:"file_name"`
	MimeKind          FileKind          `json:"mime_kind"`
	SizeBytes         int64             `json:"size_bytes"`
	DocumentType      DocumentType      `json:"document_type"`
	IntelligenceLevel IntelligenceLevel `json:"intelligence_level"`
	Definition        string            `json:"definition"`
	IngestedAt        time.Time         `json:"ingested_at"`
}

// RawFile is the boundary input to Add: raw bytes plus a declared kind.
type RawFile struct {
	FileName string
	MimeKind FileKind
	Content  []byte
}

// MetadataPatch carries the editable fields for UpdateMetadata. Nil
// fields are left unchanged.
type MetadataPatch struct {
	FileName          *string            `json:"file_name,omitempty"`
	DocumentType      *DocumentType      `json:"document_type,omitempty"`
	IntelligenceLevel *IntelligenceLevel `json:"intelligence_level,omitempty"`
	Definition        *string            `json:"definition,omitempty"`
}

// Rejected describes a batch member that failed validation.
type Rejected struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}
