package contract

import "time"

// SourceKind identifies the binary format a contract was extracted from.
type SourceKind string

const (
	SourceWord SourceKind = "word"
	SourcePDF  SourceKind = "pdf"
)

// Document is the flattened text of a contract plus its structure.
// It is produced once by the parser and never modified afterwards.
type Document struct {
	Text       string       // Non-empty paragraphs (or PDF text blocks) joined by a blank line
	Paragraphs []string     // Ordered non-empty paragraphs / text blocks
	Tables     [][][]string // Tables as row-major grids of trimmed cell text (Word only)
	Info       DocumentInfo // Structural counts
}

// DocumentInfo carries structural counts about the source document.
type DocumentInfo struct {
	SourceKind     SourceKind `json:"source_kind"`
	ParagraphCount int        `json:"paragraph_count"`
	// PageOrTableCount is the table count for Word documents and the page count for PDFs.
	PageOrTableCount int `json:"page_or_table_count"`
}

// Check is a single concrete review action produced by the planner stage.
type Check struct {
	Point string `json:"point"`
	Logic string `json:"logic"`
}

// Checklist is the structured output of the planner stage.
type Checklist struct {
	FocusDimensions []string `json:"contract_focus"`
	Checks          []Check  `json:"specific_checks"`
}

// Sections is the coarse triage of contract lines produced by the section classifier.
type Sections struct {
	General []string `json:"general"`
	Core    []string `json:"core"`
	Other   []string `json:"other"`
}

// SectionCounts summarises Sections for metadata and logging.
type SectionCounts struct {
	General int `json:"general"`
	Core    int `json:"core"`
	Other   int `json:"other"`
}

// Counts returns the number of lines in each bucket.
func (s Sections) Counts() SectionCounts {
	return SectionCounts{General: len(s.General), Core: len(s.Core), Other: len(s.Other)}
}

// Metadata is the job-scoped description of a review handed to the renderer.
// It is assembled once by the coordinator and treated as read-only afterwards.
type Metadata struct {
	ContractName string        `json:"contract_name"`
	ContractFile string        `json:"contract_file,omitempty"` // client-facing file name, never a server path
	ClientRole   string        `json:"client_role"`
	ContractType string        `json:"contract_type"`
	UserConcerns string        `json:"user_concerns"`
	Checklist    Checklist     `json:"checklist"`
	Document     DocumentInfo  `json:"document_info"`
	Sections     SectionCounts `json:"sections"`
	ReviewedAt   time.Time     `json:"reviewed_at"`
}
