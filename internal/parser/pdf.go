package parser

import (
	"fmt"
	"math"
	"os/exec"
	"strings"

	"github.com/dgallion1/contractreview/internal/contract"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if enabled and available.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(path string) (*contract.Document, error) {
	blocks, pages, err := extractPDFBlocks(path)
	if err != nil && p.FallbackPdftotext {
		blocks, pages, err = extractPdftotext(path)
	}
	if err != nil {
		return nil, parseErr(path, fmt.Errorf("extract pdf text: %w", err))
	}

	return &contract.Document{
		Text:       strings.Join(blocks, "\n\n"),
		Paragraphs: blocks,
		Info: contract.DocumentInfo{
			SourceKind:       contract.SourcePDF,
			ParagraphCount:   len(blocks),
			PageOrTableCount: pages,
		},
	}, nil
}

// extractPDFBlocks returns the text blocks of every page in order and the page count.
func extractPDFBlocks(path string) (texts []string, pages int, err error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	// The pdf reader panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			texts, pages, err = nil, 0, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	pages = reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, 0, fmt.Errorf("page %d: %w", i, err)
		}
		texts = append(texts, rowBlocks(rows)...)
	}
	return texts, pages, nil
}

// rowBlocks groups the rows of a page into blocks separated by vertical gaps
// wider than 1.5 line heights. Blank rows are dropped.
func rowBlocks(rows pdflib.Rows) []string {
	var blocks []string
	var current strings.Builder
	var lastY int64
	lastHeight := 12.0
	for i, row := range rows {
		var line strings.Builder
		for _, t := range row.Content {
			line.WriteString(t.S)
		}
		text := strings.TrimSpace(line.String())
		if text == "" {
			continue
		}
		if i > 0 && current.Len() > 0 && math.Abs(float64(lastY-row.Position)) > lastHeight*1.5 {
			blocks = append(blocks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(text)
		lastY = row.Position
		if len(row.Content) > 0 && row.Content[0].FontSize > 0 {
			lastHeight = row.Content[0].FontSize
		}
	}
	if current.Len() > 0 {
		blocks = append(blocks, current.String())
	}
	return blocks
}

func extractPdftotext(path string) ([]string, int, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, 0, fmt.Errorf("pdftotext: %w", err)
	}
	pages := splitPages(string(out))
	var blocks []string
	for _, page := range pages {
		for _, b := range strings.Split(page, "\n\n") {
			if b = strings.TrimSpace(b); b != "" {
				blocks = append(blocks, b)
			}
		}
	}
	return blocks, len(pages), nil
}

func splitPages(text string) []string {
	pages := strings.Split(text, "\f")
	// pdftotext terminates the last page with a form feed.
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages
}
