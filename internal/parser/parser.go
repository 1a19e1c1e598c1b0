package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgallion1/contractreview/internal/contract"
)

var (
	// ErrUnsupportedFormat is returned for file extensions other than .docx and .pdf.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptyDocument is returned when a document yields no text at all.
	ErrEmptyDocument = errors.New("no text extracted from document")
)

// ParseError wraps a failure of the underlying document library.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parser converts a contract file on disk into a contract.Document.
type Parser interface {
	Parse(path string) (*contract.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".docx": true,
	".pdf":  true,
}

// ForFile returns the appropriate parser for a filename. The decision is made
// on the extension alone; the file is not touched.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".docx":
		return &DOCXParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// ExtractFile selects a parser by extension and extracts the document.
func ExtractFile(path string, opts ...Option) (*contract.Document, error) {
	p, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if pp, ok := p.(*PDFParser); ok {
		pp.FallbackPdftotext = o.pdftotext
	}
	return p.Parse(path)
}

type options struct {
	pdftotext bool
}

// Option tunes ExtractFile.
type Option func(*options)

// WithPdftotextFallback enables the pdftotext binary when the Go PDF reader fails.
func WithPdftotextFallback(enabled bool) Option {
	return func(o *options) { o.pdftotext = enabled }
}

func parseErr(path string, err error) error {
	return &ParseError{Path: path, Err: err}
}
